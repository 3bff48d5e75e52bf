// Package app wires the nearme server runtime: config, logging, stores, HTTP
// routes and middleware.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"nearme/cmd/identity"
	"nearme/cmd/internal/api"
	"nearme/cmd/internal/invite"
	"nearme/cmd/internal/nearby"
	"nearme/cmd/security/password"
)

// Store is a small app-level lifecycle abstraction.
// It exists to allow DB-backed resources to be closed gracefully.
type Store interface {
	Close(ctx context.Context) error
}

// nopStore is used for in-memory store mode.
type nopStore struct{}

func (nopStore) Close(_ context.Context) error { return nil }

// dbStore owns the pool; the Postgres stores only borrow it.
type dbStore struct {
	pool *pgxpool.Pool
}

func (s dbStore) Close(_ context.Context) error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// App is the nearme server runtime.
type App struct {
	cfg Config
	log Logger

	store     Store
	db        Pinger
	dbEnabled bool

	api *api.Handler
}

// stores bundles the persistence chosen by newStores.
type stores struct {
	lifecycle Store
	db        Pinger
	users     identity.Store
	invites   invite.Store
}

// New constructs a fully wired App instance from config and logger.
func New(ctx context.Context, cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	pw, err := password.FromEnv()
	if err != nil {
		return nil, fmt.Errorf("password config: %w", err)
	}

	st, err := newStores(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	handler, err := newAPI(cfg, log, st, pw)
	if err != nil {
		_ = st.lifecycle.Close(ctx)
		return nil, err
	}

	return &App{
		cfg:       cfg,
		log:       log,
		store:     st.lifecycle,
		db:        st.db,
		dbEnabled: st.db != nil,
		api:       handler,
	}, nil
}

func newAPI(cfg Config, log Logger, st stores, pw password.Config) (*api.Handler, error) {
	users, err := identity.NewService(st.users, identity.WithPasswordConfig(pw))
	if err != nil {
		return nil, err
	}
	near, err := nearby.NewService(st.users, nearby.WithRadiusPolicy(nearby.RadiusPolicy{
		DefaultMeters: cfg.NearbyDefaultRadiusM,
		MaxMeters:     cfg.NearbyMaxRadiusM,
		Strict:        cfg.NearbyRadiusStrict,
	}))
	if err != nil {
		return nil, err
	}
	invites, err := invite.NewService(st.invites, invite.WithUsernames(st.users))
	if err != nil {
		return nil, err
	}
	return api.NewHandler(log, api.Config{MaxBodyBytes: cfg.MaxBodyBytes}, users, near, invites)
}

// Handler returns the fully wrapped HTTP handler.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.db, a.dbEnabled, a.api)
	return buildHandler(mux, a.log, a.cfg)
}

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start",
		"addr", a.cfg.HTTPAddr,
		"url", runtimeBaseURL(a.cfg.HTTPAddr),
		"db_enabled", a.dbEnabled,
		"radius_strict", a.cfg.NearbyRadiusStrict,
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		_ = a.store.Close(context.Background())
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	if err := a.store.Close(shutdownCtx); err != nil {
		a.log.Error("store.close.fail", "err", err)
	}

	a.log.Info("server.stopped")
	return nil
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// runtimeBaseURL turns a listen address into a URL a local client can dial.
func runtimeBaseURL(addr string) string {
	host, port, err := net.SplitHostPort(strings.TrimSpace(addr))
	if err != nil {
		return "http://" + addr
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// newStores decides between Postgres-backed persistence and the in-memory stores.
func newStores(ctx context.Context, cfg Config, log Logger) (stores, error) {
	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.inmemory_store")
		users := identity.NewMemoryStore(identity.WithGridCellMeters(float64(cfg.MemoryGridCellM)))
		return stores{
			lifecycle: nopStore{},
			users:     users,
			invites:   invite.NewMemoryStore(),
		}, nil
	}

	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return stores{}, err
	}
	fail := func(err error) (stores, error) {
		pool.Close()
		return stores{}, err
	}

	users, err := identity.NewPostgresStore(pool, identity.WithSchema(cfg.DBSchema))
	if err != nil {
		return fail(err)
	}
	invites, err := invite.NewPostgresStore(pool, invite.WithSchema(cfg.DBSchema))
	if err != nil {
		return fail(err)
	}

	if cfg.DBAutoMigrate {
		migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := users.EnsureSchema(migrateCtx); err != nil {
			return fail(fmt.Errorf("ensure users schema: %w", err))
		}
		if err := invites.EnsureSchema(migrateCtx); err != nil {
			return fail(fmt.Errorf("ensure invitations schema: %w", err))
		}
		log.Info("db.schema.ready", "schema", cfg.DBSchema)
	}

	log.Info("db.enabled.postgres_store")
	return stores{
		lifecycle: dbStore{pool: pool},
		db:        poolPinger{pool: pool},
		users:     users,
		invites:   invites,
	}, nil
}
