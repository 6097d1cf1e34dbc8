// Package server wires configuration, storage, secrets and the HTTP
// surface into a runnable application and handles graceful shutdown.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/sigauth/internal/challenge"
	"github.com/dmitrijs2005/sigauth/internal/logging"
	"github.com/dmitrijs2005/sigauth/internal/secrets"
	"github.com/dmitrijs2005/sigauth/internal/server/auth"
	"github.com/dmitrijs2005/sigauth/internal/server/config"
	"github.com/dmitrijs2005/sigauth/internal/server/metrics"
	"github.com/dmitrijs2005/sigauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/sigauth/internal/server/rest"
	"github.com/dmitrijs2005/sigauth/internal/server/services"
)

// MemoryDSN selects the process-local store instead of PostgreSQL.
const MemoryDSN = "memory://"

type App struct {
	config  *config.Config
	logger  logging.Logger
	store   repomanager.Store
	handler http.Handler
	tls     *tls.Config
}

// OpenStore connects the store named by dsn.
func OpenStore(ctx context.Context, dsn string) (repomanager.Store, error) {
	if dsn == MemoryDSN {
		return repomanager.NewMemoryStore(), nil
	}
	return repomanager.OpenPostgres(ctx, dsn)
}

// NewApp builds every dependency. Log output goes to logOut.
func NewApp(ctx context.Context, c *config.Config, logOut io.Writer) (*App, error) {
	logger, err := logging.New(logOut, c.LogFormat, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	secretStore, err := secrets.New(ctx, c.Secrets)
	if err != nil {
		return nil, fmt.Errorf("secrets init error: %w", err)
	}

	keys, err := challenge.LoadKeyPair(ctx, secretStore, c.ChallengeSecretID)
	if err != nil {
		return nil, fmt.Errorf("challenge key error: %w", err)
	}

	var tlsConfig *tls.Config
	if c.TLSSecretID != "" {
		if tlsConfig, err = rest.LoadTLSConfig(ctx, secretStore, c.TLSSecretID); err != nil {
			return nil, fmt.Errorf("tls init error: %w", err)
		}
	}

	store, err := OpenStore(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if c.RunMigrations {
		if err := store.RunMigrations(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("migrations error: %w", err)
		}
	}

	m := metrics.New()
	svc := services.NewAuthService(
		store,
		challenge.NewIssuer(keys),
		auth.NewHMACMinter([]byte(c.TokenSecret), c.TokenValidity),
		logger,
		services.WithMetrics(m),
		services.WithSessionValidity(c.SessionValidity),
	)

	handler := rest.NewHandler(rest.HandlerConfig{
		Auth:           svc,
		Logger:         logger,
		Metrics:        m,
		AllowedOrigins: c.AllowedOrigins,
		CookieDomain:   c.CookieDomain,
		MaxBodyBytes:   c.MaxBodyBytes,
		MaxRequestTime: c.MaxRequestTime,
		ServerTiming:   c.ServerTiming,
		RateLimit:      c.RateLimit,
		RateBurst:      c.RateBurst,

		TrustProxyHeaders: c.TrustProxyHeaders,
	})

	return &App{config: c, logger: logger, store: store, handler: handler, tls: tlsConfig}, nil
}

func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		defer signal.Stop(sigs)
		select {
		case <-sigs:
			cancelFunc()
		case <-ctx.Done():
		}
	}()
}

// Run serves until ctx is cancelled or a termination signal arrives.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(ctx, cancelFunc)

	var (
		wg      sync.WaitGroup
		httpErr error
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		s := rest.NewHTTPServer(app.config.HTTPAddr, app.handler, app.tls, app.logger)
		if err := s.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			httpErr = err
			cancelFunc()
		}
	}()

	wg.Wait()

	app.logger.Info(ctx, "Stopping app...")
	return errors.Join(httpErr, app.store.Close())
}
