package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/dmitrijs2005/redactvault/internal/api"
	"github.com/dmitrijs2005/redactvault/internal/common"
)

type fakeVault struct {
	api.VaultClient

	previewCalls int
	previewErrs  []error
	previewResp  *api.GetPreviewResponse

	unlockCalls int
	unlockErr   error
	lastUnlock  *api.UnlockRequest

	listResp *api.ListDocumentsResponse
	listErr  error
}

func (f *fakeVault) GetPreview(ctx context.Context, in *api.GetPreviewRequest, opts ...grpc.CallOption) (*api.GetPreviewResponse, error) {
	f.previewCalls++
	if len(f.previewErrs) > 0 {
		err := f.previewErrs[0]
		f.previewErrs = f.previewErrs[1:]
		return nil, err
	}
	return f.previewResp, nil
}

func (f *fakeVault) Unlock(ctx context.Context, in *api.UnlockRequest, opts ...grpc.CallOption) (*api.UnlockResponse, error) {
	f.unlockCalls++
	f.lastUnlock = in
	if f.unlockErr != nil {
		return nil, f.unlockErr
	}
	return &api.UnlockResponse{Original: []byte("original")}, nil
}

func (f *fakeVault) ListDocuments(ctx context.Context, in *api.ListDocumentsRequest, opts ...grpc.CallOption) (*api.ListDocumentsResponse, error) {
	return f.listResp, f.listErr
}

func newTestClient(f *fakeVault, retries uint64) *GRPCClient {
	return &GRPCClient{client: f, retries: retries}
}

func fastRetries(t *testing.T) {
	old := retryBase
	retryBase = time.Millisecond
	t.Cleanup(func() { retryBase = old })
}

func TestInterceptor_AttachesTokenWhenSet(t *testing.T) {
	c := &GRPCClient{accessToken: "A1"}

	invoker := func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		md, _ := metadata.FromOutgoingContext(ctx)
		toks := md.Get(common.AccessTokenHeaderName)
		require.Equal(t, []string{"A1"}, toks)
		return nil
	}

	require.NoError(t, c.accessTokenInterceptor(context.Background(), api.MethodListDocuments, nil, nil, nil, invoker))
}

func TestInterceptor_AnonymousWithoutToken(t *testing.T) {
	c := &GRPCClient{}

	invoker := func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		md, _ := metadata.FromOutgoingContext(ctx)
		require.Empty(t, md.Get(common.AccessTokenHeaderName))
		return nil
	}

	require.NoError(t, c.accessTokenInterceptor(context.Background(), api.MethodUpload, nil, nil, nil, invoker))
}

func TestWithAccessToken_ReplacesExisting(t *testing.T) {
	ctx := metadata.AppendToOutgoingContext(context.Background(), common.AccessTokenHeaderName, "old", "x-other", "keep")
	ctx = withAccessToken(ctx, "new")

	md, _ := metadata.FromOutgoingContext(ctx)
	assert.Equal(t, []string{"new"}, md.Get(common.AccessTokenHeaderName))
	assert.Equal(t, []string{"keep"}, md.Get("x-other"))
}

func TestGetPreview_RetriesUnavailable(t *testing.T) {
	fastRetries(t)
	f := &fakeVault{
		previewErrs: []error{
			status.Error(codes.Unavailable, "try again"),
			status.Error(codes.Unavailable, "try again"),
		},
		previewResp: &api.GetPreviewResponse{DocID: "d1", Filename: "a.txt"},
	}
	c := newTestClient(f, 3)

	p, err := c.GetPreview(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, "a.txt", p.Filename)
	assert.Equal(t, 3, f.previewCalls)
}

func TestGetPreview_GivesUpAfterRetries(t *testing.T) {
	fastRetries(t)
	f := &fakeVault{previewErrs: []error{
		status.Error(codes.Unavailable, "try again"),
		status.Error(codes.Unavailable, "try again"),
		status.Error(codes.Unavailable, "try again"),
	}}
	c := newTestClient(f, 1)

	_, err := c.GetPreview(context.Background(), "d1")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 2, f.previewCalls)
}

func TestGetPreview_NotFoundIsNotRetried(t *testing.T) {
	fastRetries(t)
	f := &fakeVault{previewErrs: []error{status.Error(codes.NotFound, "not found")}}
	c := newTestClient(f, 3)

	_, err := c.GetPreview(context.Background(), "d1")
	assert.ErrorIs(t, err, common.ErrorNotFound)
	assert.Equal(t, 1, f.previewCalls)
}

func TestUnlock_NeverRetried(t *testing.T) {
	fastRetries(t)
	f := &fakeVault{unlockErr: status.Error(codes.Unavailable, "try again")}
	c := newTestClient(f, 3)

	_, err := c.Unlock(context.Background(), "d1", []byte("pw"))
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 1, f.unlockCalls)
	assert.Equal(t, []byte("pw"), f.lastUnlock.Password)
}

func TestUnlock_Success(t *testing.T) {
	c := newTestClient(&fakeVault{}, 0)

	original, err := c.Unlock(context.Background(), "d1", []byte("pw"))
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), original)
}

func TestListDocuments(t *testing.T) {
	f := &fakeVault{listResp: &api.ListDocumentsResponse{Documents: []api.Document{{DocID: "d1"}}}}
	c := newTestClient(f, 0)

	docs, err := c.ListDocuments(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)

	f.listErr = status.Error(codes.Unauthenticated, "missing token")
	_, err = c.ListDocuments(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestMapError(t *testing.T) {
	c := &GRPCClient{}

	locked, err := status.New(codes.ResourceExhausted, "locked").WithDetails(&errdetails.RetryInfo{
		RetryDelay: durationpb.New(4 * time.Minute),
	})
	require.NoError(t, err)

	var le *common.LockedError
	mapped := c.mapError(locked.Err())
	require.ErrorAs(t, mapped, &le)
	assert.Equal(t, 4*time.Minute, le.RetryAfter)
	assert.ErrorIs(t, mapped, common.ErrLocked)

	mapped = c.mapError(status.Error(codes.ResourceExhausted, "locked"))
	require.ErrorAs(t, mapped, &le)
	assert.Zero(t, le.RetryAfter)

	tooLarge := c.mapError(status.Error(codes.ResourceExhausted,
		"grpc: trying to send message larger than max (44739295 vs. 41943040)"))
	assert.ErrorIs(t, tooLarge, ErrTooLarge)
	assert.False(t, errors.Is(tooLarge, common.ErrLocked))

	assert.ErrorIs(t, c.mapError(status.Error(codes.PermissionDenied, "denied")), common.ErrDenied)
	assert.ErrorIs(t, c.mapError(status.Error(codes.DeadlineExceeded, "slow")), ErrUnavailable)

	inv := c.mapError(status.Error(codes.InvalidArgument, "invalid input: password is required"))
	assert.ErrorIs(t, inv, common.ErrInvalidInput)
	assert.Equal(t, "invalid input: password is required", inv.Error())

	other := c.mapError(status.Error(codes.Internal, "boom"))
	assert.Contains(t, other.Error(), "rpc error")

	assert.NoError(t, c.mapError(nil))
	assert.False(t, errors.Is(c.mapError(status.Error(codes.Internal, "boom")), ErrUnavailable))
}

func TestNewVaultClientService_Close(t *testing.T) {
	c, err := NewVaultClientService("127.0.0.1:50051", "", 1<<20, 0)
	require.NoError(t, err)
	require.NoError(t, c.Close())
}
