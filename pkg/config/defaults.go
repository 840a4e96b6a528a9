package config

import "time"

const (
	StorageMongo  = "mongo"
	StorageSQLite = "sqlite"

	LockLocal = "local"
	LockRedis = "redis"
	LockMongo = "mongo"
)

const (
	DefaultStorageBackend = StorageSQLite

	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "agenda"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultSQLitePath = "agenda.db"

	DefaultLockBackend = LockLocal
	DefaultLockTTL     = 30 * time.Second
	DefaultRedisAddr   = "localhost:6379"

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultRateLimitRequests = 120
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultHorizon         = 100 * 24 * time.Hour
	DefaultPaddingMin      = 0
	DefaultMaxPadding      = 24 * time.Hour
	DefaultMaxOccurrences  = 5000
	DefaultMaxQueryWindow  = 366 * 24 * time.Hour
	DefaultMaintenanceCron = "*/15 * * * *"
	DefaultPaginationLimit = 100
	DefaultScheduleEvents  = false
	DefaultAgendaAPIURL    = "http://localhost:8080"
)
