package realtime

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/dmitrijs2005/lifedash/internal/common"
	"github.com/dmitrijs2005/lifedash/internal/models"
)

const readLimit = 1 << 20

// WebSocketFeed subscribes to "<baseURL>/realtime?domain=..&scope=..",
// authenticating with the bearer token returned by Token at dial time.
type WebSocketFeed struct {
	BaseURL    string
	Token      func() string
	HTTPClient *http.Client
}

func (f *WebSocketFeed) Subscribe(ctx context.Context, domain, scope string) (Stream, error) {
	q := url.Values{}
	if domain != "" {
		q.Set("domain", domain)
	}
	q.Set("scope", models.ScopeOrDefault(scope))
	u := strings.TrimRight(f.BaseURL, "/") + "/realtime?" + q.Encode()

	opts := &websocket.DialOptions{HTTPClient: f.HTTPClient, HTTPHeader: http.Header{}}
	if f.Token != nil {
		if tok := f.Token(); tok != "" {
			opts.HTTPHeader.Set(common.AuthorizationHeader, common.BearerPrefix+tok)
		}
	}

	conn, resp, err := websocket.Dial(ctx, u, opts)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("realtime dial: %w", common.ErrAuthRequired)
		}
		return nil, fmt.Errorf("realtime dial: %w", err)
	}
	conn.SetReadLimit(readLimit)
	return &wsStream{conn: conn}, nil
}

type wsStream struct {
	conn *websocket.Conn
}

func (s *wsStream) Recv(ctx context.Context) (models.Change, error) {
	var c models.Change
	err := wsjson.Read(ctx, s.conn, &c)
	return c, err
}

func (s *wsStream) Close() error {
	return s.conn.Close(websocket.StatusNormalClosure, "")
}
