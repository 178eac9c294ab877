// Package app wires the huddle auth server runtime: config, logging, the
// user store, the session service, and HTTP routes.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"huddle/cmd/identity"
	authapi "huddle/cmd/internal/auth/api"
	"huddle/cmd/internal/auth/session"
	"huddle/cmd/security/fingerprint"
	"huddle/cmd/security/password"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// App is the huddle server runtime.
type App struct {
	cfg Config
	log Logger

	dbPool    *pgxpool.Pool
	dbEnabled bool

	sessions *session.Service
	auth     *authapi.Handler
}

// New constructs a fully wired App instance from config and logger.
// Invalid session or password configuration is fatal here, never a
// per-request failure.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.IsDevelopment())
	}

	store, dbPool, dbEnabled, err := newUserStore(context.Background(), cfg, log)
	if err != nil {
		return nil, err
	}

	sessCfg, err := session.LoadConfigFromEnv()
	if err != nil {
		closePool(dbPool)
		return nil, err
	}
	tokens, err := session.NewJWTManager(sessCfg)
	if err != nil {
		closePool(dbPool)
		return nil, err
	}
	pwCfg, err := password.FromEnv()
	if err != nil {
		closePool(dbPool)
		return nil, err
	}

	prints := fingerprint.FromEnv()
	if !prints.Keyed() {
		log.Warn("auth.fingerprint.unkeyed", "hint", "set "+fingerprint.EnvKey+" for HMAC fingerprints")
	}

	sessions := session.NewService(sessCfg, store, tokens, pwCfg, prints, log)

	authCfg := authapi.LoadConfigFromEnv(cfg.Environment)
	metrics := authapi.NewMetrics(prometheus.DefaultRegisterer)
	auth, err := authapi.NewHandler(log, authCfg, sessions, dbPool, metrics)
	if err != nil {
		closePool(dbPool)
		return nil, err
	}

	return &App{
		cfg:       cfg,
		log:       log,
		dbPool:    dbPool,
		dbEnabled: dbEnabled,
		sessions:  sessions,
		auth:      auth,
	}, nil
}

// SessionService returns the wired session service.
func (a *App) SessionService() *session.Service {
	if a == nil {
		return nil
	}
	return a.sessions
}

// Run starts the HTTP server and blocks until context cancellation or fatal
// server error.
func (a *App) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.dbEnabled, a.auth)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           WithRequestLogging(mux, a.log),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "env", a.cfg.Environment, "db_enabled", a.dbEnabled)

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
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	closePool(a.dbPool)
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

// newUserStore decides between Postgres-backed persistence and the
// in-memory dev store.
func newUserStore(ctx context.Context, cfg Config, log Logger) (identity.Store, *pgxpool.Pool, bool, error) {
	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.inmemory_store")
		return identity.NewMemoryStore(), nil, false, nil
	}

	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return nil, nil, false, err
	}

	store, err := identity.NewPostgresStore(pool)
	if err != nil {
		pool.Close()
		return nil, nil, false, err
	}

	log.Info("db.enabled.postgres_store")
	return store, pool, true, nil
}

func closePool(pool *pgxpool.Pool) {
	if pool != nil {
		pool.Close()
	}
}
