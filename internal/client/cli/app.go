package cli

import (
	"bufio"
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/lifedash/internal/client/cache"
	"github.com/dmitrijs2005/lifedash/internal/client/client"
	"github.com/dmitrijs2005/lifedash/internal/client/config"
	"github.com/dmitrijs2005/lifedash/internal/client/engine"
	"github.com/dmitrijs2005/lifedash/internal/client/events"
	"github.com/dmitrijs2005/lifedash/internal/client/realtime"
	"github.com/dmitrijs2005/lifedash/internal/client/scope"
	"github.com/dmitrijs2005/lifedash/internal/logging"
	"github.com/dmitrijs2005/lifedash/internal/models"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// entryStore is the part of *engine.Store the commands use.
type entryStore interface {
	Open(ctx context.Context, domain string)
	List(domain string) []models.Entry
	Get(domain, id string) (models.Entry, bool)
	Create(ctx context.Context, domain string, in engine.NewEntry) (models.Entry, error)
	Update(ctx context.Context, domain, id string, patch models.Patch) (models.Entry, error)
	Delete(ctx context.Context, domain, id string) error
	DeleteMany(ctx context.Context, domain string, ids []string) engine.BatchResult
	ReloadDomain(ctx context.Context, domain string) error
	SwitchScope(ctx context.Context, scope string)
	ResolveScope(ctx context.Context) string
	Refresh(ctx context.Context)
	Scope() string
	SubscribeAll(fn events.Handler) (unsubscribe func())
}

// session is the part of *client.GRPCClient the commands use.
type session interface {
	Ping(ctx context.Context) error
	SetToken(token string) error
	Principal() string
	PresignUpload(ctx context.Context, entryID, contentType string) (client.Presigned, error)
}

type settingsStore interface {
	Settings(ctx context.Context) (scope.Settings, error)
	Save(s scope.Settings) error
	SetActiveScope(ctx context.Context, scope string) error
}

type App struct {
	config   *config.Config
	store    entryStore
	session  session
	settings settingsStore
	logger   logging.Logger
	reader   *bufio.Reader
	out      io.Writer

	// upload and readFile are test seams for attachments.
	upload   func(ctx context.Context, p client.Presigned, contentType string, body []byte) error
	readFile func(name string) ([]byte, error)

	mu   sync.Mutex
	Mode Mode

	outMu sync.Mutex

	closers []func(ctx context.Context)
}

// NewApp builds the whole client stack from c. The cache falls back to memory
// and a missing token only means the app starts signed out, so NewApp fails
// only if the gRPC client cannot be created.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	kv := cache.Open(ctx, cache.Config{Path: c.CachePath, Passphrase: c.CachePassphrase}, logger)
	debouncer := cache.NewDebouncer(kv, c.SettingsDebounce)
	settings := scope.NewCacheSettings(c.CachePrefix, debouncer)

	apiClient, err := client.NewGRPCClient(c.ServerEndpointAddr, logger)
	if err != nil {
		_ = kv.Close()
		return nil, err
	}
	if c.AccessToken != "" {
		if err := apiClient.SetToken(c.AccessToken); err != nil {
			logger.Warn(ctx, "configured access token rejected, starting signed out", "error", err)
		}
	}

	bus := events.NewBus(logger, 0)

	var feed realtime.Feed
	if c.RealtimeURL != "" {
		feed = &realtime.WebSocketFeed{BaseURL: c.RealtimeURL, Token: apiClient.Token}
	}

	store := engine.New(ctx, engine.Config{
		Remote:   apiClient,
		Cache:    kv,
		Bus:      bus,
		Resolver: scope.NewResolver(settings, logger),
		Feed:     feed,
		Logger:   logger,
		Options:  engine.Options{CachePrefix: c.CachePrefix},
	})

	a := &App{
		config:   c,
		store:    store,
		session:  apiClient,
		settings: settings,
		logger:   logger.With("module", "cli"),
		reader:   bufio.NewReader(os.Stdin),
		out:      os.Stdout,
		upload:   client.UploadToPresignedURL,
		readFile: os.ReadFile,
	}
	a.closers = []func(ctx context.Context){
		func(context.Context) { store.Close() },
		func(context.Context) { bus.Close() },
		debouncer.Flush,
		func(context.Context) { _ = kv.Close() },
		func(context.Context) { _ = apiClient.Close() },
	}
	return a, nil
}

// Close releases everything NewApp created, flushing pending settings writes.
func (a *App) Close(ctx context.Context) {
	for _, fn := range a.closers {
		fn(ctx)
	}
	a.closers = nil
}

func (a *App) setMode(mode Mode) {
	a.mu.Lock()
	changed := a.Mode != mode
	a.Mode = mode
	a.mu.Unlock()

	if changed {
		a.logger.Info(context.Background(), "connectivity changed", "mode", mode)
	}
}

func (a *App) mode() Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Mode
}

func (a *App) isLoggedIn() bool {
	return a.session.Principal() != ""
}

// Run prints engine events, starts the connectivity watcher and blocks in the
// REPL until the user exits or stdin closes.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	unsubscribe := a.store.SubscribeAll(a.printEvent)
	defer unsubscribe()

	go a.StartOnlineStatusWatcher(ctx, a.config.OnlineCheckInterval)

	a.printf("Welcome to lifedash CLI (type 'help' for commands)\n")
	runREPL(ctx, a, a.getStatus, bufio.NewScanner(a.reader))
}

func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := a.session.Ping(pingCtx)
			cancel()

			if err != nil {
				a.setMode(ModeOffline)
			} else {
				a.setMode(ModeOnline)
			}

		case <-ctx.Done():
			return
		}
	}
}
