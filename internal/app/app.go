// Package app wires configuration, storage, services and the HTTP router, and
// runs the server until the process is asked to stop.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/instastick/storefront-auth/internal/api"
	"github.com/instastick/storefront-auth/internal/api/handler"
	"github.com/instastick/storefront-auth/internal/api/middleware"
	"github.com/instastick/storefront-auth/internal/core/ports"
	"github.com/instastick/storefront-auth/internal/core/service"
	"github.com/instastick/storefront-auth/internal/infrastructure/config"
	mongostore "github.com/instastick/storefront-auth/internal/infrastructure/db/mongo"
	redisstore "github.com/instastick/storefront-auth/internal/infrastructure/db/redis"
	"github.com/instastick/storefront-auth/internal/infrastructure/mail"
	"github.com/instastick/storefront-auth/internal/infrastructure/queue"
	"github.com/instastick/storefront-auth/internal/infrastructure/security"
	"github.com/instastick/storefront-auth/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

// adminSeeder creates the configured admin account when it is missing.
type adminSeeder interface {
	SeedAdmin(ctx context.Context, name, email, password string) error
}

// closer releases one backing store.
type closer struct {
	name string
	fn   func(context.Context) error
}

type App struct {
	cfg        *config.Config
	log        zerolog.Logger
	closers    []closer
	dispatcher *queue.Dispatcher
	seeder     adminSeeder
	echo       *echo.Echo
}

// New connects to every backing store and builds the object graph. Close
// must be called when New succeeds.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logger.Component("app")

	client, db, err := mongostore.Connect(ctx, mongostore.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		return nil, err
	}
	a := &App{cfg: cfg, log: log}
	a.closers = append(a.closers, closer{name: "mongo", fn: client.Disconnect})

	users := mongostore.NewUserRepository(db)
	pending := mongostore.NewPendingSignupRepository(db, cfg.AuthPolicy().OTP.SignupTTL)
	if err := mongostore.EnsureIndexes(ctx, users, pending); err != nil {
		a.Close(ctx)
		return nil, err
	}

	health := map[string]handler.Pinger{"mongodb": mongostore.Pinger{Client: client}}
	var limiter *redisstore.RateLimiter
	if cfg.Limits.Enabled {
		rdb, err := redisstore.Connect(ctx, redisstore.Config{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
		if err != nil {
			a.Close(ctx)
			return nil, err
		}
		a.closers = append(a.closers, closer{name: "redis", fn: func(context.Context) error { return rdb.Close() }})
		limiter = redisstore.NewRateLimiter(rdb)
		health["redis"] = redisstore.Pinger{Client: rdb}
	}

	notifier, err := newNotifier(cfg.SMTP)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.dispatcher = queue.NewDispatcher(cfg.Workers.Notifications, notifier, logger.Component("notifications"))

	hasher := security.NewBcryptHasher(cfg.Password.BcryptCost)
	tokens := security.NewJWTIssuer(security.JWTConfig{
		AccessSecret:  cfg.JWT.AccessSecret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
	})

	clientIP, err := middleware.ClientIP(cfg.TrustedProxies)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	policy := cfg.AuthPolicy()
	auth := service.NewAuthService(users, pending, hasher, tokens, notifier, a.dispatcher, policy, logger.Component("auth"))
	userService := service.NewUserService(users, hasher, logger.Component("users"))

	deps := api.Deps{
		Auth:  auth,
		Users: userService,
		AuthOptions: handler.AuthOptions{
			Cookies: handler.CookieSettings{
				AccessTTL:  cfg.Cookie.AccessTTL,
				RefreshTTL: cfg.Cookie.RefreshTTL,
				Secure:     cfg.IsProduction(),
			},
			OTPTTL: policy.OTP.TTL,
			Brand:  cfg.SMTP.Brand,
		},
		Health:      health,
		Limits:      rateLimits(cfg.Limits),
		ClientIP:    clientIP,
		FrontendURL: cfg.FrontendURL,
		Debug:       !cfg.IsProduction(),
		Log:         logger.Component("http"),
	}
	if limiter != nil {
		deps.Limiter = limiter
	}
	a.seeder = auth
	a.echo = api.NewRouter(deps)

	return a, nil
}

// newNotifier picks SMTP delivery when a host is configured and falls back to
// logging the rendered message otherwise.
func newNotifier(cfg config.SMTPConfig) (ports.Notifier, error) {
	renderer, err := mail.NewRenderer(cfg.Brand)
	if err != nil {
		return nil, err
	}
	if cfg.Host == "" {
		mailLog := logger.Component("mail")
		mailLog.Warn().Msg("SMTP_HOST not set, emails are logged instead of sent")
		return mail.NewLogNotifier(renderer, logger.Component("mail")), nil
	}
	return mail.NewSMTPNotifier(mail.SMTPConfig{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.Username,
		Password: cfg.Password,
		From:     cfg.From,
		Brand:    cfg.Brand,
	}, renderer, logger.Component("mail"))
}

func rateLimits(cfg config.RateLimitConfig) api.RateLimits {
	l := api.DefaultRateLimits()
	l.API.Max, l.API.Window = cfg.APIMax, cfg.APIWindow
	l.Auth.Max, l.Auth.Window = cfg.AuthMax, cfg.AuthWindow
	l.OTP.Max, l.OTP.Window = cfg.OTPMax, cfg.OTPWindow
	l.Email.Max, l.Email.Window = cfg.EmailMax, cfg.EmailWindow
	return l
}

// Run seeds the admin account, starts the notification workers and serves
// HTTP until SIGINT or SIGTERM, then drains both.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.seeder.SeedAdmin(ctx, a.cfg.Admin.Name, a.cfg.Admin.Email, a.cfg.Admin.Password); err != nil {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.Close(closeCtx)
		return err
	}

	workersCtx, stopWorkers := context.WithCancel(context.Background())
	a.dispatcher.Start(workersCtx)

	serveErr := make(chan error, 1)
	go func() {
		addr := ":" + a.cfg.Port
		a.log.Info().Str("addr", addr).Str("env", a.cfg.Env).Msg("http server listening")
		if err := a.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	runErr := a.waitForStop(ctx, serveErr)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.echo.Shutdown(shutdownCtx); err != nil {
		a.log.Error().Err(err).Msg("http shutdown")
	}

	stopWorkers()
	a.dispatcher.Wait()
	a.Close(shutdownCtx)

	a.log.Info().Msg("stopped")
	return runErr
}

// waitForStop blocks until ctx is cancelled or the server goroutine reports.
// A closed channel without an error is an unexpected but clean stop.
func (a *App) waitForStop(ctx context.Context, serveErr <-chan error) error {
	select {
	case <-ctx.Done():
		a.log.Info().Msg("shutdown signal received")
		return nil
	case err, ok := <-serveErr:
		if !ok {
			a.log.Warn().Msg("http server stopped unexpectedly")
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	}
}

// Close releases the store connections in reverse order of acquisition.
func (a *App) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(ctx); err != nil {
			a.log.Warn().Err(err).Str("store", c.name).Msg("close")
		}
	}
	a.closers = nil
}
