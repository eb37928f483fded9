// Package server wires the reference record service: PostgreSQL storage,
// the gRPC entry service and the realtime change feed.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/dmitrijs2005/lifedash/internal/auth"
	"github.com/dmitrijs2005/lifedash/internal/logging"
	"github.com/dmitrijs2005/lifedash/internal/server/config"
	"github.com/dmitrijs2005/lifedash/internal/server/realtime"
	"github.com/dmitrijs2005/lifedash/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/lifedash/internal/server/services"
	"golang.org/x/sync/errgroup"

	gs "github.com/dmitrijs2005/lifedash/internal/server/grpc"
)

// openDB is a seam for tests.
var openDB = func(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", dsn)
}

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	grpc     *gs.GRPCServer
	realtime *realtime.Server
}

// NewApp connects to the database, applies migrations and builds both
// servers. Nothing listens until Run.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	db, err := openDB(c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db migration error: %w", err)
	}

	hub := realtime.NewHub(logger, 0)
	es := services.NewEntryService(db, rm, c, hub, logger)

	secret := []byte(c.SecretKey)
	verify := func(token string) (string, error) {
		return auth.GetUserIDFromToken(token, secret)
	}

	return &App{
		config:   c,
		logger:   logger,
		db:       db,
		grpc:     gs.NewGRPCServer(c.EndpointAddrGRPC, logger, es, c.SecretKey),
		realtime: realtime.NewServer(c.RealtimeAddr, hub, verify, logger),
	}, nil
}

// Run serves gRPC and the realtime feed until ctx is done or either server
// fails, then closes the database.
func (app *App) Run(ctx context.Context) error {
	app.logger.Info(ctx, "Starting app...")
	defer func() {
		if err := app.db.Close(); err != nil {
			app.logger.Error(ctx, "db close failed", "error", err)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.grpc.Run(gctx) })
	g.Go(func() error { return app.realtime.Run(gctx) })

	err := g.Wait()
	app.logger.Info(ctx, "App stopped")
	return err
}

// MintToken writes a signed access token for c.MintToken to w.
func MintToken(w io.Writer, c *config.Config) error {
	if c.MintToken == "" {
		return fmt.Errorf("empty user id")
	}
	tok, err := auth.GenerateToken(c.MintToken, []byte(c.SecretKey), c.AccessTokenValidityDuration)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, tok)
	return err
}
