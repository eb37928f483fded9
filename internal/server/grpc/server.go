// Package grpc exposes the record service over gRPC.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/lifedash/internal/logging"
	"github.com/dmitrijs2005/lifedash/internal/models"
	"github.com/dmitrijs2005/lifedash/internal/rpc"
	"github.com/dmitrijs2005/lifedash/internal/server/services"
	"google.golang.org/grpc"
)

// EntryService is the business layer behind the handlers.
type EntryService interface {
	List(ctx context.Context, userID, domain, scope string) ([]models.Entry, error)
	Create(ctx context.Context, userID string, draft models.Entry, scope string) (models.Entry, error)
	Update(ctx context.Context, userID, id string, patch models.Patch) (models.Entry, error)
	Delete(ctx context.Context, userID, id string) (int64, error)
	PresignUpload(ctx context.Context, userID, entryID, contentType string) (services.Presigned, error)
	PresignDownload(ctx context.Context, userID, entryID, key string) (services.Presigned, error)
}

type GRPCServer struct {
	rpc.UnimplementedEntryServiceServer
	address   string
	entries   EntryService
	logger    logging.Logger
	jwtSecret []byte
}

func NewGRPCServer(address string, l logging.Logger, es EntryService, secretKey string) *GRPCServer {
	return &GRPCServer{
		address:   address,
		logger:    l.With("module", "grpc_server"),
		entries:   es,
		jwtSecret: []byte(secretKey),
	}
}

// NewServer returns a grpc.Server with the auth interceptor and the entry
// service registered.
func (s *GRPCServer) NewServer(opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(s.accessTokenInterceptor)}, opts...)
	srv := grpc.NewServer(opts...)
	rpc.RegisterEntryServiceServer(srv, s)
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := s.NewServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", s.address)

	if err := srv.Serve(listen); err != nil {
		return err
	}
	return nil
}
