package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"agenda/internal/bootstrap"
	bookingservice "agenda/internal/bookings/service"
	"agenda/internal/schedule"
	"agenda/pkg/config"
	"agenda/pkg/logger"

	"github.com/robfig/cron/v3"
)

const (
	ServiceName = "agenda-maintenance"

	expireBatch = 500
	taskTimeout = 10 * time.Minute
)

type flagConfig struct {
	once             bool
	clearOccurrences bool
}

func parseFlags() flagConfig {
	var f flagConfig
	flag.BoolVar(&f.once, "once", false, "Run every maintenance task once and exit")
	flag.BoolVar(&f.clearOccurrences, "clear-occurrences", false, "Delete all occurrences and free slots, then exit")
	flag.Parse()
	return f
}

type maintenance struct {
	engine   *schedule.Engine
	bookings bookingservice.BookingService
	log      *logger.Logger
}

func main() {
	flags := parseFlags()
	cfg := config.Load(ServiceName)

	backend, err := bootstrap.NewBackend(cfg)
	if err != nil {
		cfg.Log.Fatal("Failed to initialize backend", "error", err)
	}
	publisher, closePublisher, err := bootstrap.NewPublisher(cfg)
	if err != nil {
		cfg.Log.Fatal("Failed to initialize schedule events", "error", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := closePublisher(ctx); err != nil {
			cfg.Log.Error("Failed to close publisher", "error", err)
		}
		if err := backend.Close(ctx); err != nil {
			cfg.Log.Error("Failed to close backend", "error", err)
		}
		cfg.GracefulShutdown()
	}()

	engine := bootstrap.NewEngine(cfg, backend, publisher)
	m := &maintenance{
		engine:   engine,
		bookings: bootstrap.NewBookingService(cfg, backend, engine),
		log:      cfg.Log,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case flags.clearOccurrences:
		if _, err := engine.ClearOccurrences(ctx); err != nil {
			cfg.Log.Error("Clear occurrences failed", "error", err)
		}
	case flags.once:
		if err := m.runAll(ctx); err != nil {
			cfg.Log.Error("Maintenance finished with errors", "error", err)
		}
	default:
		m.schedule(ctx, cfg)
	}
}

func (m *maintenance) schedule(ctx context.Context, cfg *config.Config) {
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cronLogger{log: m.log}),
		cron.WithChain(cron.Recover(cronLogger{log: m.log}), cron.SkipIfStillRunning(cronLogger{log: m.log})),
	)
	if _, err := c.AddFunc(cfg.MaintenanceCron, func() {
		if err := m.runAll(ctx); err != nil {
			m.log.Error("Maintenance run finished with errors", "error", err)
		}
	}); err != nil {
		m.log.Fatal("Invalid maintenance schedule", "cron", cfg.MaintenanceCron, "error", err)
	}

	m.log.Info("Maintenance scheduled", "cron", cfg.MaintenanceCron)
	c.Start()
	<-ctx.Done()

	m.log.Info("Waiting for running maintenance to finish")
	<-c.Stop().Done()
}

// runAll expires stale requests first so their time is released by the
// recreation that follows.
func (m *maintenance) runAll(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, taskTimeout)
	defer cancel()

	start := time.Now()
	var errs []error

	expired, err := m.bookings.ExpireStale(ctx, expireBatch)
	if err != nil {
		errs = append(errs, err)
	}
	if err := m.engine.RecreateAll(ctx, m.engine.HorizonWindow()); err != nil {
		errs = append(errs, err)
	}
	cleared, err := m.engine.ClearOldSlots(ctx)
	if err != nil {
		errs = append(errs, err)
	}

	m.log.Info("Maintenance run completed",
		"expired_bookings", expired,
		"cleared_slots", cleared,
		"failed", len(errs),
		"duration", time.Since(start),
	)
	return errors.Join(errs...)
}

// cronLogger adapts the service logger to cron.Logger.
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
