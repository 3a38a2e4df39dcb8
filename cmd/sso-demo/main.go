// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

// sso-demo serves a small site whose pages are protected by Microsoft Entra
// sign-in.  Settings are read from an optional YAML file, then from the
// environment (a .env file in the working directory is loaded first).
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
	"github.com/hashicorp/cap-sso/callback"
	"github.com/hashicorp/cap-sso/config"
	"github.com/hashicorp/cap-sso/hooks"
	"github.com/hashicorp/cap-sso/identity"
	"github.com/hashicorp/cap-sso/identity/gormstore"
	"github.com/hashicorp/cap-sso/session"
	"github.com/hashicorp/cap-sso/sso"
	"github.com/hashicorp/go-hclog"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
)

func main() {
	app := cli.App{
		Name:   "sso-demo",
		Usage:  "Microsoft Entra sign-in demo site",
		Action: run,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "listen",
				Usage:   "address to serve http on",
				Value:   ":8080",
				EnvVars: []string{"SSO_DEMO_LISTEN"},
			},
			&cli.StringFlag{
				Name:    "config",
				Usage:   "path to a YAML settings file",
				EnvVars: []string{"SSO_DEMO_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "user database, sqlite:// or postgres://",
				Value:   "sqlite://data/sso-demo.sqlite",
				EnvVars: []string{"DATABASE_URL"},
			},
			&cli.StringFlag{
				Name:     "session-secret",
				Usage:    "random string used to sign session cookies",
				Required: true,
				EnvVars:  []string{"SESSION_SECRET"},
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "keep sessions in redis instead of cookies",
				EnvVars: []string{"REDIS_URL"},
			},
			&cli.StringFlag{
				Name:    "metrics-listen",
				Usage:   "address to serve prometheus metrics on",
				Value:   ":9090",
				EnvVars: []string{"SSO_DEMO_METRICS_LISTEN"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "log level: trace, debug, info, warn or error",
				Value:   "info",
				EnvVars: []string{"SSO_DEMO_LOG_LEVEL"},
			},
			&cli.BoolFlag{
				Name:    "discovery",
				Usage:   "read the authority's endpoints from its discovery document",
				EnvVars: []string{"SSO_DEMO_DISCOVERY"},
			},
			&cli.BoolFlag{
				Name:    "verify-id-token",
				Usage:   "verify id_token signatures against the authority's key set",
				EnvVars: []string{"SSO_DEMO_VERIFY_ID_TOKEN"},
			},
		},
	}
	app.RunAndExitOnError()
}

func loadSettings(cctx *cli.Context) (*config.Settings, error) {
	settings := config.NewSettings()
	if path := cctx.String("config"); path != "" {
		var err error
		if settings, err = config.Load(path); err != nil {
			return nil, err
		}
	}
	if err := settings.LoadEnv(); err != nil {
		return nil, err
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

func sessionStore(ctx context.Context, cctx *cli.Context, logger hclog.Logger) (sessions.Store, error) {
	secret := []byte(cctx.String("session-secret"))
	redisURL := cctx.String("redis-url")
	if redisURL == "" {
		return session.NewCookieStore(secret), nil
	}
	client, err := session.NewRedisClient(ctx, redisURL)
	if err != nil {
		return nil, err
	}
	logger.Info("keeping sessions in redis")
	return session.NewRedisStore(client, [][]byte{secret}, session.WithLogger(logger.Named("session")))
}

func run(cctx *cli.Context) error {
	ctx, stop := signal.NotifyContext(cctx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	config.SetLogLevel(hclog.LevelFromString(cctx.String("log-level")))
	logger := config.Logger()

	settings, err := loadSettings(cctx)
	if err != nil {
		return fmt.Errorf("unable to load settings: %w", err)
	}

	registry := hooks.NewRegistry()
	if err := registry.RegisterPreLogin(demoPreLogin, preLogin(logger)); err != nil {
		return err
	}
	if err := registry.ValidateSettings(settings); err != nil {
		return fmt.Errorf("invalid hook settings: %w", err)
	}

	db, err := gormstore.Open(cctx.String("database-url"), gormstore.WithLogger(logger.Named("db")))
	if err != nil {
		return err
	}
	users, err := gormstore.New(db)
	if err != nil {
		return err
	}
	if err := users.Migrate(ctx); err != nil {
		return err
	}
	reconciler, err := identity.NewReconciler(users, settings,
		identity.WithLogger(logger.Named("identity")),
		identity.WithNotifier(callback.Notifier(settings)),
	)
	if err != nil {
		return err
	}

	store, err := sessionStore(ctx, cctx, logger)
	if err != nil {
		return err
	}
	sessionManager, err := session.NewManager(store, session.WithLogger(logger.Named("session")))
	if err != nil {
		return err
	}

	providers, err := callback.NewSettingsProviders(settings,
		callback.WithLogger(logger.Named("oidc")),
		callback.WithDiscovery(cctx.Bool("discovery")),
		callback.WithIDTokenVerification(cctx.Bool("verify-id-token")),
	)
	if err != nil {
		return err
	}
	promReg := prometheus.NewRegistry()
	svc, err := sso.New(settings, providers, sessionManager, reconciler, registry,
		sso.WithLogger(logger.Named("sso")),
		sso.WithMetrics(callback.NewMetrics(promReg)),
	)
	if err != nil {
		return err
	}

	site := &site{
		settings: settings,
		sessions: sessionManager,
		users:    users,
		sso:      svc,
		logger:   logger.Named("site"),
	}
	r := chi.NewRouter()
	if err := svc.Register(r); err != nil {
		return err
	}
	site.register(r)

	servers := []*http.Server{
		{Addr: cctx.String("listen"), Handler: r, ReadHeaderTimeout: 10 * time.Second},
		{Addr: cctx.String("metrics-listen"), Handler: promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}), ReadHeaderTimeout: 10 * time.Second},
	}
	errs := make(chan error, len(servers))
	for _, srv := range servers {
		go func(srv *http.Server) {
			logger.Info("starting http server", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errs <- err
			}
		}(srv)
	}

	select {
	case <-ctx.Done():
	case err = <-errs:
		logger.Error("http server failed", "error", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, srv := range servers {
		if serr := srv.Shutdown(shutdownCtx); serr != nil {
			logger.Error("http shutdown", "addr", srv.Addr, "error", serr)
		}
	}
	return err
}
