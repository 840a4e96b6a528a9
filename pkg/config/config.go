package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"agenda/pkg/client"
	"agenda/pkg/logger"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

type Config struct {
	StorageBackend string

	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	SQLitePath string

	LockBackend   string
	LockTTL       time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTLS      bool

	Port     string
	LogLevel string

	RateLimitRequests int
	RateLimitWindow   time.Duration

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	Horizon           time.Duration
	DefaultPaddingMin int
	MaxPadding        time.Duration
	AllowOverlap      bool
	AllowUnscheduled  bool
	MaxOccurrences    int
	MaxQueryWindow    time.Duration

	MaintenanceCron string
	ScheduleEvents  bool

	// AgendaAPIURL is where the worker forwards regeneration requests.
	AgendaAPIURL string

	Log    *logger.Logger
	Client *client.Client
}

// Load reads the configuration and exits the process if it is invalid.
func Load(serviceName string) *Config {
	cfg, err := Parse(serviceName)
	if err != nil {
		logger.New(logger.Config{Service: serviceName}).Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

// Parse layers defaults, a .env file, the YAML file named by
// AGENDA_CONFIG_FILE and the process environment, in that order, and
// validates the result.
func Parse(serviceName string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := defaults()
	if path := os.Getenv(EnvConfigFile); path != "" {
		fc, err := readFile(path)
		if err != nil {
			return nil, err
		}
		if err := fc.apply(cfg); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	cfg.Log = logger.New(logger.Config{
		Level:     cfg.LogLevel,
		Format:    logger.JSON,
		AddSource: true,
		Service:   serviceName,
	})
	cfg.Client = client.NewClient(cfg.Log)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		StorageBackend: DefaultStorageBackend,

		MongoURI:          DefaultMongoURI,
		MongoDatabaseName: DefaultMongoDatabaseName,
		MongoConnTimeout:  DefaultMongoConnTimeout,

		SQLitePath: DefaultSQLitePath,

		LockBackend: DefaultLockBackend,
		LockTTL:     DefaultLockTTL,
		RedisAddr:   DefaultRedisAddr,

		Port:     DefaultPort,
		LogLevel: DefaultLogLevel,

		RateLimitRequests: DefaultRateLimitRequests,
		RateLimitWindow:   DefaultRateLimitWindow,

		RequestTimeout: DefaultRequestTimeout,
		IdempotencyTTL: DefaultIdempotencyTTL,
		MaxRequestSize: DefaultMaxRequestSize,

		ReadTimeout:     DefaultReadTimeout,
		WriteTimeout:    DefaultWriteTimeout,
		IdleTimeout:     DefaultIdleTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,

		Horizon:           DefaultHorizon,
		DefaultPaddingMin: DefaultPaddingMin,
		MaxPadding:        DefaultMaxPadding,
		MaxOccurrences:    DefaultMaxOccurrences,
		MaxQueryWindow:    DefaultMaxQueryWindow,

		MaintenanceCron: DefaultMaintenanceCron,
		ScheduleEvents:  DefaultScheduleEvents,

		AgendaAPIURL: DefaultAgendaAPIURL,
	}
}

func (cfg *Config) applyEnv() {
	cfg.StorageBackend = getEnvStr(EnvStorageBackend, cfg.StorageBackend)

	cfg.MongoURI = getEnvStr(EnvMongoURI, cfg.MongoURI)
	cfg.MongoDatabaseName = getEnvStr(EnvMongoDatabaseName, cfg.MongoDatabaseName)
	cfg.MongoConnTimeout = getEnvDuration(EnvMongoConnTimeout, cfg.MongoConnTimeout)

	cfg.SQLitePath = getEnvStr(EnvSQLitePath, cfg.SQLitePath)

	cfg.LockBackend = getEnvStr(EnvLockBackend, cfg.LockBackend)
	cfg.LockTTL = getEnvDuration(EnvLockTTL, cfg.LockTTL)
	cfg.RedisAddr = getEnvStr(EnvRedisAddr, cfg.RedisAddr)
	cfg.RedisPassword = getEnvStr(EnvRedisPassword, cfg.RedisPassword)
	cfg.RedisDB = getEnvNum(EnvRedisDB, cfg.RedisDB)
	cfg.RedisTLS = getEnvBool(EnvRedisTLS, cfg.RedisTLS)

	cfg.Port = getEnvStr(EnvPort, cfg.Port)
	cfg.LogLevel = getEnvStr(EnvLogLevel, cfg.LogLevel)

	cfg.RateLimitRequests = getEnvNum(EnvRateLimitRequests, cfg.RateLimitRequests)
	cfg.RateLimitWindow = getEnvDuration(EnvRateLimitWindow, cfg.RateLimitWindow)

	cfg.RequestTimeout = getEnvDuration(EnvRequestTimeout, cfg.RequestTimeout)
	cfg.IdempotencyTTL = getEnvDuration(EnvIdempotencyTTL, cfg.IdempotencyTTL)
	cfg.MaxRequestSize = getEnvNum(EnvMaxRequestSize, cfg.MaxRequestSize)

	cfg.ReadTimeout = getEnvDuration(EnvReadTimeout, cfg.ReadTimeout)
	cfg.WriteTimeout = getEnvDuration(EnvWriteTimeout, cfg.WriteTimeout)
	cfg.IdleTimeout = getEnvDuration(EnvIdleTimeout, cfg.IdleTimeout)
	cfg.ShutdownTimeout = getEnvDuration(EnvShutdownTimeout, cfg.ShutdownTimeout)

	cfg.Horizon = getEnvDuration(EnvHorizon, cfg.Horizon)
	cfg.DefaultPaddingMin = getEnvNum(EnvDefaultPadding, cfg.DefaultPaddingMin)
	cfg.MaxPadding = getEnvDuration(EnvMaxPadding, cfg.MaxPadding)
	cfg.AllowOverlap = getEnvBool(EnvAllowOverlap, cfg.AllowOverlap)
	cfg.AllowUnscheduled = getEnvBool(EnvAllowUnscheduled, cfg.AllowUnscheduled)
	cfg.MaxOccurrences = getEnvNum(EnvMaxOccurrences, cfg.MaxOccurrences)
	cfg.MaxQueryWindow = getEnvDuration(EnvMaxQueryWindow, cfg.MaxQueryWindow)

	cfg.MaintenanceCron = getEnvStr(EnvMaintenanceCron, cfg.MaintenanceCron)
	cfg.ScheduleEvents = getEnvBool(EnvScheduleEvents, cfg.ScheduleEvents)

	cfg.AgendaAPIURL = getEnvStr(EnvAgendaAPIURL, cfg.AgendaAPIURL)
}

// SetMongo connects to MongoDB. It is needed by the mongo storage and lock
// backends.
func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.MongoURI, cfg.MongoConnTimeout)
}

func (cfg *Config) SetRedis() {
	cfg.Client.SetRedis(client.RedisOptions{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		TLS:      cfg.RedisTLS,
	})
}

// UsesMongo reports whether any configured backend needs a MongoDB
// connection.
func (cfg *Config) UsesMongo() bool {
	return cfg.StorageBackend == StorageMongo || cfg.LockBackend == LockMongo
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	switch cfg.StorageBackend {
	case StorageMongo, StorageSQLite:
	default:
		errors = append(errors, fmt.Sprintf("StorageBackend must be one of [mongo, sqlite], got: %s", cfg.StorageBackend))
	}
	switch cfg.LockBackend {
	case LockLocal, LockRedis, LockMongo:
	default:
		errors = append(errors, fmt.Sprintf("LockBackend must be one of [local, redis, mongo], got: %s", cfg.LockBackend))
	}

	if cfg.UsesMongo() {
		if cfg.MongoURI == "" {
			errors = append(errors, "MongoURI cannot be empty")
		} else if len(cfg.MongoURI) < 10 || !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
			errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactMongoURI(cfg.MongoURI)))
		}
		if cfg.MongoDatabaseName == "" {
			errors = append(errors, "MongoDatabaseName cannot be empty")
		}
		if cfg.MongoConnTimeout <= 0 {
			errors = append(errors, fmt.Sprintf("MongoConnTimeout must be positive, got: %s", cfg.MongoConnTimeout))
		}
	}
	if cfg.StorageBackend == StorageSQLite && cfg.SQLitePath == "" {
		errors = append(errors, "SQLitePath cannot be empty")
	}
	if cfg.LockBackend == LockRedis && cfg.RedisAddr == "" {
		errors = append(errors, "RedisAddr cannot be empty")
	}
	if cfg.LockTTL <= 0 {
		errors = append(errors, fmt.Sprintf("LockTTL must be positive, got: %s", cfg.LockTTL))
	}

	if cfg.RateLimitWindow <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitWindow must be positive, got: %s", cfg.RateLimitWindow))
	}
	if cfg.RequestTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("RequestTimeout must be positive, got: %s", cfg.RequestTimeout))
	}
	if cfg.IdempotencyTTL <= 0 {
		errors = append(errors, fmt.Sprintf("IdempotencyTTL must be positive, got: %s", cfg.IdempotencyTTL))
	}
	if cfg.ReadTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ReadTimeout must be positive, got: %s", cfg.ReadTimeout))
	}
	if cfg.WriteTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("WriteTimeout must be positive, got: %s", cfg.WriteTimeout))
	}
	if cfg.IdleTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("IdleTimeout must be positive, got: %s", cfg.IdleTimeout))
	}
	if cfg.ShutdownTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ShutdownTimeout must be positive, got: %s", cfg.ShutdownTimeout))
	}
	if cfg.RateLimitRequests <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}

	if cfg.Horizon < 24*time.Hour {
		errors = append(errors, fmt.Sprintf("Horizon must be at least 24h, got: %s", cfg.Horizon))
	}
	if cfg.MaxPadding <= 0 {
		errors = append(errors, fmt.Sprintf("MaxPadding must be positive, got: %s", cfg.MaxPadding))
	}
	if cfg.DefaultPaddingMin < 0 || time.Duration(cfg.DefaultPaddingMin)*time.Minute > cfg.MaxPadding {
		errors = append(errors, fmt.Sprintf("DefaultPaddingMin must be between 0 and MaxPadding (%s), got: %d", cfg.MaxPadding, cfg.DefaultPaddingMin))
	}
	if cfg.MaxOccurrences <= 0 {
		errors = append(errors, fmt.Sprintf("MaxOccurrences must be positive, got: %d", cfg.MaxOccurrences))
	}
	if cfg.MaxQueryWindow <= 0 {
		errors = append(errors, fmt.Sprintf("MaxQueryWindow must be positive, got: %s", cfg.MaxQueryWindow))
	}
	if u, err := url.Parse(cfg.AgendaAPIURL); err != nil || u.Scheme == "" || u.Host == "" {
		errors = append(errors, fmt.Sprintf("AgendaAPIURL must be an absolute URL, got: %s", cfg.AgendaAPIURL))
	}
	if _, err := cron.ParseStandard(cfg.MaintenanceCron); err != nil {
		errors = append(errors, fmt.Sprintf("MaintenanceCron must be a valid cron expression, got: %s", cfg.MaintenanceCron))
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"storage_backend", cfg.StorageBackend,
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"sqlite_path", cfg.SQLitePath,
		"lock_backend", cfg.LockBackend,
		"lock_ttl", cfg.LockTTL,
		"redis_addr", cfg.RedisAddr,
		"redis_password_set", cfg.RedisPassword != "",
		"port", cfg.Port,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"horizon", cfg.Horizon,
		"default_padding_min", cfg.DefaultPaddingMin,
		"max_padding", cfg.MaxPadding,
		"allow_overlap", cfg.AllowOverlap,
		"allow_unscheduled", cfg.AllowUnscheduled,
		"max_occurrences", cfg.MaxOccurrences,
		"max_query_window", cfg.MaxQueryWindow,
		"maintenance_cron", cfg.MaintenanceCron,
		"schedule_events", cfg.ScheduleEvents,
		"agenda_api_url", cfg.AgendaAPIURL,
	)
}

func redactMongoURI(uri string) string {
	credentialRegex := regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown()
}

func NormalizePaginationLimit(limit int) int {
	if limit <= 0 {
		limit = 10
	} else if limit > DefaultPaginationLimit {
		limit = DefaultPaginationLimit
	}
	return limit
}

func NormalizeOffset(offset int64) int64 {
	return max(0, offset)
}
