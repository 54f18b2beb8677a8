package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"videojobs/internal/bootstrap"
	"videojobs/internal/http/handlers"
	"videojobs/internal/http/httpapi"
	"videojobs/internal/infra"
	"videojobs/internal/middleware"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv).With().Str("cmd", "api").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger, bootstrap.Options{RelayEvents: !cfg.EmbeddedWorkers})
	if err != nil {
		logger.Fatal().Err(err).Msg("api: bootstrap failed")
	}
	defer app.Close()

	var lookup middleware.CountryLookup
	if app.GeoIP != nil {
		lookup = app.GeoIP.CountryCode
	}
	api := &handlers.App{Jobs: app.Service, Events: app.Events, Logger: logger}
	if app.Statuses != nil {
		api.Statuses = app.Statuses
	}
	router := httpapi.NewRouter(
		api,
		httpapi.Options{
			JWTSecret:       cfg.JWTSecret,
			DefaultLanguage: app.Settings.DefaultLanguage,
			CountryLookup:   lookup,
			RateLimitPerMin: cfg.RateLimitPerMin,
			CORSOrigins:     cfg.CORSOrigins,
			Logger:          logger,
		},
	)
	server := infra.NewHTTPServer(cfg, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("port", cfg.Port).Msg("api: listening")
		return server.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if cfg.EmbeddedWorkers {
		g.Go(func() error { return app.Pool.Run(gctx) })
	} else {
		g.Go(func() error { return app.RelayRedis(gctx) })
	}

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("api: stopped with error")
		return
	}
	logger.Info().Msg("api: stopped")
}
