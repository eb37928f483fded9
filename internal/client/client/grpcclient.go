package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/dmitrijs2005/lifedash/internal/auth"
	"github.com/dmitrijs2005/lifedash/internal/common"
	"github.com/dmitrijs2005/lifedash/internal/logging"
	"github.com/dmitrijs2005/lifedash/internal/models"
	"github.com/dmitrijs2005/lifedash/internal/netx"
	"github.com/dmitrijs2005/lifedash/internal/rpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	client      rpc.EntryServiceClient
	logger      logging.Logger

	mu          sync.RWMutex
	accessToken string
	principal   string
}

var _ Client = (*GRPCClient)(nil)

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AccessTokenHeaderName, token)

	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if token := s.token(); token != "" {
		ctx = withAccessToken(ctx, token)
	}
	return invoker(ctx, method, req, reply, cc, opts...)
}

// NewGRPCClient creates a client for endpointURL. The connection is lazy: no
// network traffic happens until the first call.
func NewGRPCClient(endpointURL string, logger logging.Logger, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL, logger: logger.With("module", "remote")}

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.accessTokenInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(endpointURL, dialOpts...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	c.client = rpc.NewEntryServiceClient(conn)
	return c, nil
}

func (s *GRPCClient) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// SetToken replaces the bearer token. An empty token logs out.
func (s *GRPCClient) SetToken(token string) error {
	principal := ""
	if token != "" {
		p, err := auth.PrincipalFromToken(token)
		if err != nil {
			return err
		}
		principal = p
	}

	s.mu.Lock()
	s.accessToken = token
	s.principal = principal
	s.mu.Unlock()
	return nil
}

func (s *GRPCClient) token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

func (s *GRPCClient) Token() string { return s.token() }

func (s *GRPCClient) Authenticated() bool {
	return s.Principal() != ""
}

func (s *GRPCClient) Principal() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.principal
}

func (s *GRPCClient) Ping(ctx context.Context) error {
	resp, err := s.client.Ping(ctx, &rpc.PingRequest{})
	if err != nil {
		return s.mapError("ping", err)
	}
	if resp.Status != "OK" {
		return &common.RemoteError{Op: "ping", Err: common.ErrUnavailable}
	}
	return nil
}

// List returns the caller's entries of domain ("" for every domain) in scope.
// Without a principal it returns an empty list.
func (s *GRPCClient) List(ctx context.Context, domain string, scope string) ([]models.Entry, error) {
	if !s.Authenticated() {
		s.logger.Warn(ctx, "list skipped, not authenticated", "domain", domain)
		return []models.Entry{}, nil
	}

	resp, err := s.client.List(ctx, &rpc.ListRequest{Domain: domain, Scope: models.ScopeOrDefault(scope)})
	if err != nil {
		return nil, s.mapError("list", err)
	}
	if resp.Entries == nil {
		return []models.Entry{}, nil
	}
	return resp.Entries, nil
}

// Create sends entry as a draft; the server assigns id, owner and timestamps
// and tags the row with scope.
func (s *GRPCClient) Create(ctx context.Context, entry models.Entry, scope string) (models.Entry, error) {
	if !s.Authenticated() {
		return models.Entry{}, common.ErrAuthRequired
	}

	draft := models.Entry{
		Domain:      entry.Domain,
		Title:       entry.Title,
		Description: entry.Description,
		Metadata:    entry.Metadata,
	}
	resp, err := s.client.Create(ctx, &rpc.CreateRequest{Entry: draft, Scope: models.ScopeOrDefault(scope)})
	if err != nil {
		return models.Entry{}, s.mapError("create", err)
	}
	return resp.Entry, nil
}

func (s *GRPCClient) Update(ctx context.Context, id string, patch models.Patch) (models.Entry, error) {
	if !s.Authenticated() {
		return models.Entry{}, common.ErrAuthRequired
	}

	resp, err := s.client.Update(ctx, &rpc.UpdateRequest{ID: id, Patch: patch})
	if err != nil {
		return models.Entry{}, s.mapError("update", err)
	}
	return resp.Entry, nil
}

// Delete removes id. A deleted count other than one is logged, not returned:
// the row may already be gone or belong to someone else.
func (s *GRPCClient) Delete(ctx context.Context, id string) error {
	if !s.Authenticated() {
		return common.ErrAuthRequired
	}

	resp, err := s.client.Delete(ctx, &rpc.DeleteRequest{ID: id})
	if err != nil {
		return s.mapError("delete", err)
	}
	if resp.Deleted != 1 {
		s.logger.Warn(ctx, "delete affected unexpected number of rows", "id", id, "deleted", resp.Deleted)
	}
	return nil
}

func (s *GRPCClient) PresignUpload(ctx context.Context, entryID, contentType string) (Presigned, error) {
	if !s.Authenticated() {
		return Presigned{}, common.ErrAuthRequired
	}
	resp, err := s.client.PresignUpload(ctx, &rpc.PresignUploadRequest{EntryID: entryID, ContentType: contentType})
	if err != nil {
		return Presigned{}, s.mapError("presign upload", err)
	}
	return Presigned{Key: resp.Key, URL: resp.URL, ExpiresAt: resp.ExpiresAt}, nil
}

func (s *GRPCClient) PresignDownload(ctx context.Context, entryID, key string) (Presigned, error) {
	if !s.Authenticated() {
		return Presigned{}, common.ErrAuthRequired
	}
	resp, err := s.client.PresignDownload(ctx, &rpc.PresignDownloadRequest{EntryID: entryID, Key: key})
	if err != nil {
		return Presigned{}, s.mapError("presign download", err)
	}
	return Presigned{Key: resp.Key, URL: resp.URL, ExpiresAt: resp.ExpiresAt}, nil
}

// UploadToPresignedURL stores body at a URL obtained from PresignUpload.
func UploadToPresignedURL(ctx context.Context, p Presigned, contentType string, body []byte) error {
	return netx.UploadToPresignedURL(ctx, http.DefaultClient, p.URL, contentType, body)
}

func (s *GRPCClient) mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return &common.RemoteError{Op: op, Err: fmt.Errorf("%w: %w", common.ErrUnavailable, err)}
		}
		return &common.RemoteError{Op: op, Err: err}
	}
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return common.ErrAuthRequired
	case codes.NotFound:
		return common.ErrNotFound
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled:
		return &common.RemoteError{Op: op, Err: fmt.Errorf("%w: %s", common.ErrUnavailable, st.Message())}
	default:
		return &common.RemoteError{Op: op, Err: fmt.Errorf("%s: %s", st.Code(), st.Message())}
	}
}
