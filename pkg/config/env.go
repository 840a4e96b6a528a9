package config

const (
	EnvConfigFile = "AGENDA_CONFIG_FILE"

	EnvStorageBackend = "STORAGE_BACKEND"

	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvSQLitePath = "SQLITE_PATH"

	EnvLockBackend   = "LOCK_BACKEND"
	EnvLockTTL       = "LOCK_TTL"
	EnvRedisAddr     = "REDIS_ADDR"
	EnvRedisPassword = "REDIS_PASSWORD"
	EnvRedisDB       = "REDIS_DB"
	EnvRedisTLS      = "REDIS_TLS"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvHorizon          = "AGENDA_HORIZON"
	EnvDefaultPadding   = "AGENDA_DEFAULT_PADDING_MIN"
	EnvMaxPadding       = "AGENDA_MAX_PADDING"
	EnvAllowOverlap     = "AGENDA_ALLOW_OVERLAP"
	EnvAllowUnscheduled = "AGENDA_ALLOW_UNSCHEDULED"
	EnvMaxOccurrences   = "AGENDA_MAX_OCCURRENCES"
	EnvMaxQueryWindow   = "AGENDA_MAX_QUERY_WINDOW"

	EnvMaintenanceCron = "MAINTENANCE_CRON"

	EnvScheduleEvents = "SCHEDULE_EVENTS_ENABLED"

	EnvAgendaAPIURL = "AGENDA_API_URL"
)
