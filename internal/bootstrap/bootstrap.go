// Package bootstrap assembles the storage, lock and engine of a service
// from its configuration.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	availabilityhandler "agenda/internal/availabilities/handler"
	availabilityrepo "agenda/internal/availabilities/repository"
	availabilityservice "agenda/internal/availabilities/service"
	availabilityvalidator "agenda/internal/availabilities/validator"
	bookinghandler "agenda/internal/bookings/handler"
	bookingrepo "agenda/internal/bookings/repository"
	bookingservice "agenda/internal/bookings/service"
	bookingvalidator "agenda/internal/bookings/validator"
	"agenda/internal/events"
	"agenda/internal/health"
	"agenda/internal/schedule"
	mongostore "agenda/internal/storage/mongo"
	"agenda/internal/storage/sqlite"
	timeslothandler "agenda/internal/timeslots/handler"
	"agenda/pkg/config"
	"agenda/pkg/contracts"
	"agenda/pkg/kafka"
	kafka_config "agenda/pkg/kafka/config"
	kafkamiddleware "agenda/pkg/kafka/middleware"
	"agenda/pkg/lock"
)

const LockPrefix = "agenda:lock:"

// Backend is the persistence side of a service.
type Backend struct {
	Availabilities availabilityrepo.AvailabilityRepository
	Bookings       bookingrepo.BookingRepository
	Store          schedule.Store
	Locker         lock.Locker

	// Checks are readiness probes for every connection the backend opened.
	Checks map[string]health.Check
	// Closers release what the backend opened, outside of cfg.Client.
	Closers []func(ctx context.Context) error
}

// NewBackend opens the configured storage and lock backends. Connections
// held by cfg.Client are opened here as needed.
func NewBackend(cfg *config.Config) (*Backend, error) {
	b := &Backend{Checks: make(map[string]health.Check)}

	if cfg.UsesMongo() && cfg.Client.Mongo == nil {
		cfg.SetMongo()
	}
	if cfg.LockBackend == config.LockRedis && cfg.Client.Redis == nil {
		cfg.SetRedis()
	}

	switch cfg.StorageBackend {
	case config.StorageSQLite:
		store, err := sqlite.Open(cfg.SQLitePath, cfg.Log)
		if err != nil {
			return nil, err
		}
		b.Availabilities = store.Availabilities()
		b.Bookings = store.Bookings()
		b.Store = store
		b.Checks["sqlite"] = store.Ping
		b.Closers = append(b.Closers, func(context.Context) error { return store.Close() })
	case config.StorageMongo:
		b.Availabilities = availabilityrepo.NewMongoAvailabilityRepository(cfg)
		b.Bookings = bookingrepo.NewMongoBookingRepository(cfg)
		store := mongostore.NewStore(cfg, b.Availabilities)
		b.Store = store
		b.Checks["mongo"] = store.Ping
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}

	switch cfg.LockBackend {
	case config.LockLocal:
		b.Locker = lock.NewLocal()
	case config.LockRedis:
		b.Locker = lock.NewRedis(cfg.Client.Redis, LockPrefix, cfg.LockTTL, cfg.Log)
		rdb := cfg.Client.Redis
		b.Checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	case config.LockMongo:
		b.Locker = lock.NewMongo(cfg.Client.Mongo.Database(cfg.MongoDatabaseName), cfg.LockTTL, cfg.Log)
		if _, ok := b.Checks["mongo"]; !ok {
			mc := cfg.Client.Mongo
			b.Checks["mongo"] = func(ctx context.Context) error { return mc.Ping(ctx, nil) }
		}
	default:
		return nil, fmt.Errorf("unknown lock backend %q", cfg.LockBackend)
	}

	cfg.Log.Info("Backend initialized", "storage", cfg.StorageBackend, "lock", cfg.LockBackend)
	return b, nil
}

// Close runs the closers in order and returns the first error.
func (b *Backend) Close(ctx context.Context) error {
	var first error
	for _, closeFn := range b.Closers {
		if err := closeFn(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// EngineOptions maps the configuration onto engine options.
func EngineOptions(cfg *config.Config) schedule.Options {
	return schedule.Options{
		Horizon:          cfg.Horizon,
		MaxPadding:       cfg.MaxPadding,
		AllowOverlap:     cfg.AllowOverlap,
		AllowUnscheduled: cfg.AllowUnscheduled,
		MaxOccurrences:   cfg.MaxOccurrences,
	}
}

// NewEngine builds the schedule engine over the backend. publisher may be
// nil.
func NewEngine(cfg *config.Config, b *Backend, publisher schedule.Publisher) *schedule.Engine {
	return schedule.NewEngine(schedule.Config{
		Store:        b.Store,
		Reservations: bookingrepo.NewReservationSource(b.Bookings),
		Padding:      schedule.BookingPadding{Default: time.Duration(cfg.DefaultPaddingMin) * time.Minute},
		Locker:       b.Locker,
		Publisher:    publisher,
		Log:          cfg.Log,
		Options:      EngineOptions(cfg),
	})
}

// NewPublisher connects the schedule-changed producer when events are
// enabled. It returns a nil publisher and a no-op closer otherwise. The
// closer logs the producer metrics before closing it.
func NewPublisher(cfg *config.Config) (schedule.Publisher, func(ctx context.Context) error, error) {
	if !cfg.ScheduleEvents {
		return nil, func(context.Context) error { return nil }, nil
	}

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		return nil, nil, err
	}
	kafkaCfg.LogConfiguration(cfg.Log.Info)

	producer, err := kafka.NewProducer(kafkaCfg, kafkaCfg.Topics.ScheduleChanged, kafkaCfg.Topics.DeadLetter, cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	metrics := kafkamiddleware.NewMetrics()
	if kafkaCfg.EnableMiddleware {
		producer.Use(kafkamiddleware.LoggingProducerMiddleware(cfg.Log))
		producer.Use(metrics.ProducerMiddleware())
	}

	cfg.Log.Info("Schedule change events enabled", "topic", producer.Topic())
	closeFn := func(context.Context) error {
		cfg.Log.Info("Kafka producer metrics", metrics.Snapshot().LogValues()...)
		return producer.Close()
	}
	return events.NewKafkaPublisher(producer), closeFn, nil
}

// NewBookingService builds the booking service over the backend and engine.
func NewBookingService(cfg *config.Config, b *Backend, engine *schedule.Engine) bookingservice.BookingService {
	return bookingservice.NewBookingService(
		b.Bookings,
		engine,
		bookingvalidator.NewBookingValidator(cfg.Log),
		cfg,
	)
}

// NewHandlers builds the HTTP handlers of the agenda API.
func NewHandlers(cfg *config.Config, b *Backend, engine *schedule.Engine) []contracts.Handler {
	availabilityService := availabilityservice.NewAvailabilityService(
		b.Availabilities,
		engine,
		availabilityvalidator.NewAvailabilityValidator(cfg.Log),
		cfg,
	)
	bookingService := NewBookingService(cfg, b, engine)

	cfg.Log.Info("Services initialized", "storage", cfg.StorageBackend)
	return []contracts.Handler{
		availabilityhandler.NewAvailabilityHandler(availabilityService, cfg.Log),
		bookinghandler.NewBookingHandler(bookingService, cfg.Log),
		timeslothandler.NewTimeSlotHandler(engine, cfg.MaxQueryWindow, cfg.Log),
	}
}
