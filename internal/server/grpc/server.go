// Package grpc exposes the vault service over gRPC.
package grpc

import (
	"context"
	"net"

	"google.golang.org/grpc"

	"github.com/dmitrijs2005/redactvault/internal/api"
	"github.com/dmitrijs2005/redactvault/internal/logging"
	"github.com/dmitrijs2005/redactvault/internal/server/services"
)

type GRPCServer struct {
	address        string
	vault          *services.VaultService
	logger         logging.Logger
	jwtSecret      []byte
	maxMessageSize int
}

func NewGRPCServer(a string, l logging.Logger, vs *services.VaultService, secretKey []byte, maxMessageSize int) *GRPCServer {
	return &GRPCServer{
		address:        a,
		logger:         l.With("module", "grpc_server"),
		vault:          vs,
		jwtSecret:      secretKey,
		maxMessageSize: maxMessageSize,
	}
}

func (s *GRPCServer) newServer() *grpc.Server {
	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor),
	}
	if s.maxMessageSize > 0 {
		opts = append(opts, grpc.MaxRecvMsgSize(s.maxMessageSize), grpc.MaxSendMsgSize(s.maxMessageSize))
	}
	srv := grpc.NewServer(opts...)
	api.RegisterVaultServer(srv, s)
	return srv
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve serves on lis until ctx is cancelled, then stops gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil {
		return err
	}
	return nil
}
