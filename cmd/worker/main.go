package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"agenda/internal/events"
	"agenda/pkg/client"
	"agenda/pkg/config"
	"agenda/pkg/kafka"
	kafka_config "agenda/pkg/kafka/config"
	kafkamiddleware "agenda/pkg/kafka/middleware"
)

const (
	ServiceName = "agenda-worker"

	healthWait     = 2 * time.Minute
	metricsEvery   = time.Minute
	requestTimeout = 30 * time.Second
)

func main() {
	cfg := config.Load(ServiceName)
	defer cfg.GracefulShutdown()

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log.Info)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	agenda := client.NewAgendaClient(cfg.AgendaAPIURL, requestTimeout)
	cfg.Log.Info("Waiting for agenda API", "url", cfg.AgendaAPIURL)
	if err := agenda.WaitForHealthy(ctx, healthWait); err != nil {
		cfg.Log.Fatal("Agenda API is not healthy", "url", cfg.AgendaAPIURL, "error", err)
	}

	handler, err := events.NewRegenerationHandler(agenda, cfg.Horizon, cfg.MaxQueryWindow, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create regeneration handler", "error", err)
	}

	consumer, err := kafka.NewConsumer(
		kafkaCfg,
		kafkaCfg.Topics.RegenerationRequests,
		kafkaCfg.ConsumerGroup,
		kafkaCfg.Topics.DeadLetter,
		handler.Handle,
		cfg.Log,
	)
	if err != nil {
		cfg.Log.Fatal("Failed to create kafka consumer", "error", err)
	}
	metrics := kafkamiddleware.NewMetrics()
	if kafkaCfg.EnableMiddleware {
		consumer.Use(kafkamiddleware.LoggingConsumerMiddleware(cfg.Log))
		consumer.Use(metrics.ConsumerMiddleware())
		go reportMetrics(ctx, cfg, metrics)
	}

	cfg.Log.Info("Consuming regeneration requests",
		"topic", kafkaCfg.Topics.RegenerationRequests,
		"group", kafkaCfg.ConsumerGroup,
		"dlq", kafkaCfg.Topics.DeadLetter,
	)
	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		cfg.Log.Error("Consumer stopped", "error", err)
	}

	if err := consumer.Close(); err != nil {
		cfg.Log.Error("Failed to close kafka consumer", "error", err)
	}
	cfg.Log.Info("Worker stopped", metrics.Snapshot().LogValues()...)
}

func reportMetrics(ctx context.Context, cfg *config.Config, metrics *kafkamiddleware.Metrics) {
	ticker := time.NewTicker(metricsEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cfg.Log.Info("Kafka consumer metrics", metrics.Snapshot().LogValues()...)
		}
	}
}
