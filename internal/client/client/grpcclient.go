package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/redactvault/internal/api"
	"github.com/dmitrijs2005/redactvault/internal/common"
)

// retryBase is the first backoff step for retried reads.
var retryBase = 200 * time.Millisecond

type GRPCClient struct {
	endpointURL    string
	accessToken    string
	maxMessageSize int
	retries        uint64
	conn           *grpc.ClientConn
	client         api.VaultClient
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Delete(common.AccessTokenHeaderName)
	md.Set(common.AccessTokenHeaderName, token)

	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if s.accessToken != "" {
		ctx = withAccessToken(ctx, s.accessToken)
	}
	return invoker(ctx, method, req, reply, cc, opts...)
}

// NewVaultClientService dials endpointURL lazily. accessToken may be empty.
func NewVaultClientService(endpointURL, accessToken string, maxMessageSize int, retries uint64) (*GRPCClient, error) {
	c := &GRPCClient{
		endpointURL:    endpointURL,
		accessToken:    accessToken,
		maxMessageSize: maxMessageSize,
		retries:        retries,
	}
	if err := c.InitGRPCClient(); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *GRPCClient) InitGRPCClient() error {
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(s.accessTokenInterceptor),
	}
	if s.maxMessageSize > 0 {
		opts = append(opts, grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(s.maxMessageSize),
			grpc.MaxCallSendMsgSize(s.maxMessageSize),
		))
	}

	conn, err := grpc.NewClient(s.endpointURL, opts...)
	if err != nil {
		return err
	}
	s.conn = conn
	s.client = api.NewVaultClient(conn)
	return nil
}

func (s *GRPCClient) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// retryReads runs fn again with exponential backoff while the server answers
// Unavailable. Only calls without side effects go through here; Upload and
// Unlock are never replayed.
func (s *GRPCClient) retryReads(ctx context.Context, fn func(ctx context.Context) error) error {
	b := retry.WithMaxRetries(s.retries, retry.NewExponential(retryBase))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := fn(ctx)
		if status.Code(err) == codes.Unavailable {
			return retry.RetryableError(err)
		}
		return err
	})
}

func (s *GRPCClient) Upload(ctx context.Context, req *api.UploadRequest) (*api.UploadResponse, error) {
	resp, err := s.client.Upload(ctx, req)
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp, nil
}

func (s *GRPCClient) GetPreview(ctx context.Context, docID string) (*api.GetPreviewResponse, error) {
	var resp *api.GetPreviewResponse
	err := s.retryReads(ctx, func(ctx context.Context) error {
		var err error
		resp, err = s.client.GetPreview(ctx, &api.GetPreviewRequest{DocID: docID})
		return err
	})
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp, nil
}

func (s *GRPCClient) FetchArtifact(ctx context.Context, docID string) ([]byte, error) {
	var resp *api.FetchArtifactResponse
	err := s.retryReads(ctx, func(ctx context.Context) error {
		var err error
		resp, err = s.client.FetchArtifact(ctx, &api.FetchArtifactRequest{DocID: docID})
		return err
	})
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp.Data, nil
}

func (s *GRPCClient) Unlock(ctx context.Context, docID string, password []byte) ([]byte, error) {
	resp, err := s.client.Unlock(ctx, &api.UnlockRequest{DocID: docID, Password: password})
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp.Original, nil
}

func (s *GRPCClient) ListDocuments(ctx context.Context) ([]api.Document, error) {
	var resp *api.ListDocumentsResponse
	err := s.retryReads(ctx, func(ctx context.Context) error {
		var err error
		resp, err = s.client.ListDocuments(ctx, &api.ListDocumentsRequest{})
		return err
	})
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp.Documents, nil
}

func (s *GRPCClient) Ping(ctx context.Context) error {
	resp, err := s.client.Ping(ctx, &api.PingRequest{})
	if err != nil {
		return s.mapError(err)
	}

	if resp.Status != "OK" {
		return ErrUnavailable
	}

	return nil
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unauthenticated:
		return ErrUnauthorized
	case codes.PermissionDenied:
		return common.ErrDenied
	case codes.NotFound:
		return common.ErrorNotFound
	case codes.ResourceExhausted:
		// gRPC reports its own message size limits with the same code
		if delay, ok := retryAfter(st); ok || st.Message() == common.ErrLocked.Error() {
			return &common.LockedError{RetryAfter: delay}
		}
		return fmt.Errorf("%w: %s", ErrTooLarge, st.Message())
	case codes.InvalidArgument:
		msg := strings.TrimPrefix(st.Message(), common.ErrInvalidInput.Error()+": ")
		return fmt.Errorf("%w: %s", common.ErrInvalidInput, msg)
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}

func retryAfter(st *status.Status) (time.Duration, bool) {
	for _, d := range st.Details() {
		if ri, ok := d.(*errdetails.RetryInfo); ok && ri.RetryDelay != nil {
			return ri.RetryDelay.AsDuration(), true
		}
	}
	return 0, false
}
