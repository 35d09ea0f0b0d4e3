package api

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "redactvault.v1.VaultService"

// Full method names, as seen by interceptors.
const (
	MethodUpload        = "/" + ServiceName + "/Upload"
	MethodGetPreview    = "/" + ServiceName + "/GetPreview"
	MethodFetchArtifact = "/" + ServiceName + "/FetchArtifact"
	MethodUnlock        = "/" + ServiceName + "/Unlock"
	MethodListDocuments = "/" + ServiceName + "/ListDocuments"
	MethodPing          = "/" + ServiceName + "/Ping"
)

// VaultServer is implemented by the gRPC server.
type VaultServer interface {
	Upload(context.Context, *UploadRequest) (*UploadResponse, error)
	GetPreview(context.Context, *GetPreviewRequest) (*GetPreviewResponse, error)
	FetchArtifact(context.Context, *FetchArtifactRequest) (*FetchArtifactResponse, error)
	Unlock(context.Context, *UnlockRequest) (*UnlockResponse, error)
	ListDocuments(context.Context, *ListDocumentsRequest) (*ListDocumentsResponse, error)
	Ping(context.Context, *PingRequest) (*PingResponse, error)
}

func RegisterVaultServer(s grpc.ServiceRegistrar, srv VaultServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// unary adapts a typed VaultServer method to a grpc.MethodHandler.
func unary[Req, Resp any](fullMethod string, call func(VaultServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(VaultServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(VaultServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*VaultServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Upload", Handler: unary(MethodUpload, VaultServer.Upload)},
		{MethodName: "GetPreview", Handler: unary(MethodGetPreview, VaultServer.GetPreview)},
		{MethodName: "FetchArtifact", Handler: unary(MethodFetchArtifact, VaultServer.FetchArtifact)},
		{MethodName: "Unlock", Handler: unary(MethodUnlock, VaultServer.Unlock)},
		{MethodName: "ListDocuments", Handler: unary(MethodListDocuments, VaultServer.ListDocuments)},
		{MethodName: "Ping", Handler: unary(MethodPing, VaultServer.Ping)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "redactvault/v1/vault",
}
