package grpc

import (
	"errors"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/dmitrijs2005/redactvault/internal/common"
)

// toStatus maps service errors onto the small set of codes clients see.
// Anything unexpected becomes Unavailable "try again".
func toStatus(err error) error {
	var locked *common.LockedError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &locked):
		st := status.New(codes.ResourceExhausted, common.ErrLocked.Error())
		if locked.RetryAfter > 0 {
			if withDetails, derr := st.WithDetails(&errdetails.RetryInfo{
				RetryDelay: durationpb.New(locked.RetryAfter),
			}); derr == nil {
				st = withDetails
			}
		}
		return st.Err()
	case errors.Is(err, common.ErrDenied):
		return status.Error(codes.PermissionDenied, "denied")
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, common.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Unavailable, common.ErrTryAgain.Error())
	}
}
