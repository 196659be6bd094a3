package main

import (
	"context"
	"os"

	"github.com/instastick/storefront-auth/internal/app"
	"github.com/instastick/storefront-auth/internal/infrastructure/config"
	"github.com/instastick/storefront-auth/pkg/logger"
)

// @title                       Storefront Auth API
// @version                     1.0
// @description                 Signup with emailed OTP, JWT sessions with refresh rotation, lockout and password flows.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	ctx := context.Background()

	cfg, err := config.Load(ctx)
	if err != nil {
		bootLog := logger.New(logger.Options{})
		bootLog.Fatal().Err(err).Msg("load config")
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: "storefront-auth",
	})

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("init app")
	}

	if err := a.Run(ctx); err != nil {
		log.Error().Err(err).Msg("app stopped with error")
		os.Exit(1)
	}
}
