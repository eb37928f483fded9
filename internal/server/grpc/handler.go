package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/lifedash/internal/common"
	"github.com/dmitrijs2005/lifedash/internal/rpc"
	"github.com/dmitrijs2005/lifedash/internal/server/services"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func (s *GRPCServer) Ping(ctx context.Context, req *rpc.PingRequest) (*rpc.PingResponse, error) {
	return &rpc.PingResponse{Status: "OK"}, nil
}

func (s *GRPCServer) List(ctx context.Context, req *rpc.ListRequest) (*rpc.ListResponse, error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	list, err := s.entries.List(ctx, userID, req.Domain, req.Scope)
	if err != nil {
		return nil, s.toStatus(ctx, "list", err)
	}
	return &rpc.ListResponse{Entries: list}, nil
}

func (s *GRPCServer) Create(ctx context.Context, req *rpc.CreateRequest) (*rpc.EntryResponse, error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	e, err := s.entries.Create(ctx, userID, req.Entry, req.Scope)
	if err != nil {
		return nil, s.toStatus(ctx, "create", err)
	}
	s.logger.Info(ctx, "entry created", "id", e.ID, "domain", e.Domain, "user", userID)
	return &rpc.EntryResponse{Entry: e}, nil
}

func (s *GRPCServer) Update(ctx context.Context, req *rpc.UpdateRequest) (*rpc.EntryResponse, error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	e, err := s.entries.Update(ctx, userID, req.ID, req.Patch)
	if err != nil {
		return nil, s.toStatus(ctx, "update", err)
	}
	return &rpc.EntryResponse{Entry: e}, nil
}

func (s *GRPCServer) Delete(ctx context.Context, req *rpc.DeleteRequest) (*rpc.DeleteResponse, error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	n, err := s.entries.Delete(ctx, userID, req.ID)
	if err != nil {
		return nil, s.toStatus(ctx, "delete", err)
	}
	return &rpc.DeleteResponse{Deleted: n}, nil
}

func (s *GRPCServer) PresignUpload(ctx context.Context, req *rpc.PresignUploadRequest) (*rpc.PresignResponse, error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	p, err := s.entries.PresignUpload(ctx, userID, req.EntryID, req.ContentType)
	if err != nil {
		return nil, s.toStatus(ctx, "presign upload", err)
	}
	return &rpc.PresignResponse{Key: p.Key, URL: p.URL, ExpiresAt: p.ExpiresAt}, nil
}

func (s *GRPCServer) PresignDownload(ctx context.Context, req *rpc.PresignDownloadRequest) (*rpc.PresignResponse, error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	p, err := s.entries.PresignDownload(ctx, userID, req.EntryID, req.Key)
	if err != nil {
		return nil, s.toStatus(ctx, "presign download", err)
	}
	return &rpc.PresignResponse{Key: p.Key, URL: p.URL, ExpiresAt: p.ExpiresAt}, nil
}

func caller(ctx context.Context) (string, error) {
	userID, ok := UserIDFromContext(ctx)
	if !ok {
		return "", status.Error(codes.Unauthenticated, "unauthenticated")
	}
	return userID, nil
}

func (s *GRPCServer) toStatus(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, common.ErrNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, services.ErrInvalidEntry):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrAuthRequired):
		return status.Error(codes.Unauthenticated, "unauthenticated")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	s.logger.Error(ctx, "request failed", "op", op, "error", err)
	return status.Error(codes.Internal, "internal error")
}
