package realtime

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/dmitrijs2005/lifedash/internal/common"
	"github.com/dmitrijs2005/lifedash/internal/logging"
)

const writeTimeout = 5 * time.Second

// TokenVerifier maps a bearer token to the caller's user id.
type TokenVerifier func(token string) (string, error)

// Server exposes the hub at /realtime?domain=<d>.
type Server struct {
	addr   string
	hub    *Hub
	verify TokenVerifier
	logger logging.Logger
}

func NewServer(addr string, hub *Hub, verify TokenVerifier, logger logging.Logger) *Server {
	return &Server{addr: addr, hub: hub, verify: verify, logger: logger.With("module", "realtime")}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/realtime", s.handleRealtime)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}

// Run serves until ctx is done and then shuts the listener down.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "realtime server listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("realtime shutdown: %w", err)
	}
	s.logger.Info(ctx, "realtime server stopped")
	return nil
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get(common.AuthorizationHeader); strings.HasPrefix(h, common.BearerPrefix) {
		return strings.TrimPrefix(h, common.BearerPrefix)
	}
	return r.URL.Query().Get(common.AccessTokenHeaderName)
}

func (s *Server) handleRealtime(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	userID, err := s.verify(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn(r.Context(), "websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	domain := r.URL.Query().Get("domain")
	changes, cancel := s.hub.Subscribe(userID, domain)
	defer cancel()

	s.logger.Debug(r.Context(), "subscriber connected", "user", userID, "domain", domain)

	// Clients never send; CloseRead cancels ctx once the peer goes away.
	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusGoingAway, "")
			return
		case c, ok := <-changes:
			if !ok {
				return
			}
			wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, conn, c)
			wcancel()
			if err != nil {
				s.logger.Debug(ctx, "subscriber write failed", "user", userID, "error", err)
				return
			}
		}
	}
}
