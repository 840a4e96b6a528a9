package main

import (
	"context"
	_ "time/tzdata"

	"agenda/internal/bootstrap"
	"agenda/pkg/app"
	"agenda/pkg/config"
	"agenda/pkg/middleware"
)

const ServiceName = "agenda"

func main() {
	cfg := config.Load(ServiceName)
	cfg.Log.Info("Starting Agenda service")

	backend, err := bootstrap.NewBackend(cfg)
	if err != nil {
		cfg.Log.Fatal("Failed to initialize backend", "error", err)
	}
	publisher, closePublisher, err := bootstrap.NewPublisher(cfg)
	if err != nil {
		cfg.Log.Fatal("Failed to initialize schedule events", "error", err)
	}

	engine := bootstrap.NewEngine(cfg, backend, publisher)

	opts := app.Options{
		Handlers: bootstrap.NewHandlers(cfg, backend, engine),
		Checks:   backend.Checks,
		Closers:  []func(ctx context.Context) error{closePublisher, backend.Close},
	}
	if cfg.Client.Redis != nil {
		opts.IdempotencyStore = middleware.NewRedisIdempotencyStore(cfg.Client.Redis, ServiceName, cfg.IdempotencyTTL)
		opts.RateLimiter = middleware.NewRedisRateLimiter(cfg.Client.Redis, ServiceName, cfg.RateLimitRequests, cfg.RateLimitWindow)
		cfg.Log.Info("Using Redis for idempotency and rate limiting")
	}

	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(opts)
	serverApp.Run()
}
