package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// FileConfig is the optional YAML overlay named by AGENDA_CONFIG_FILE.
// Unset fields keep their defaults; environment variables still win over
// anything set here.
type FileConfig struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"log_level"`

	Storage struct {
		Backend           string `yaml:"backend"`
		MongoURI          string `yaml:"mongo_uri"`
		MongoDatabaseName string `yaml:"mongo_database"`
		MongoConnTimeout  string `yaml:"mongo_conn_timeout"`
		SQLitePath        string `yaml:"sqlite_path"`
	} `yaml:"storage"`

	Lock struct {
		Backend       string `yaml:"backend"`
		TTL           string `yaml:"ttl"`
		RedisAddr     string `yaml:"redis_addr"`
		RedisPassword string `yaml:"redis_password"`
		RedisDB       *int   `yaml:"redis_db"`
		RedisTLS      *bool  `yaml:"redis_tls"`
	} `yaml:"lock"`

	HTTP struct {
		RateLimitRequests int    `yaml:"rate_limit_requests"`
		RateLimitWindow   string `yaml:"rate_limit_window"`
		RequestTimeout    string `yaml:"request_timeout"`
		IdempotencyTTL    string `yaml:"idempotency_ttl"`
		MaxRequestSize    int    `yaml:"max_request_size"`
		ReadTimeout       string `yaml:"read_timeout"`
		WriteTimeout      string `yaml:"write_timeout"`
		IdleTimeout       string `yaml:"idle_timeout"`
		ShutdownTimeout   string `yaml:"shutdown_timeout"`
	} `yaml:"http"`

	Engine struct {
		Horizon          string `yaml:"horizon"`
		DefaultPadding   *int   `yaml:"default_padding_min"`
		MaxPadding       string `yaml:"max_padding"`
		AllowOverlap     *bool  `yaml:"allow_overlap"`
		AllowUnscheduled *bool  `yaml:"allow_unscheduled"`
		MaxOccurrences   int    `yaml:"max_occurrences"`
		MaxQueryWindow   string `yaml:"max_query_window"`
	} `yaml:"engine"`

	MaintenanceCron string `yaml:"maintenance_cron"`
	ScheduleEvents  *bool  `yaml:"schedule_events"`
	AgendaAPIURL    string `yaml:"agenda_api_url"`
}

func readFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return &fc, nil
}

// apply copies every set field of fc onto cfg.
func (fc *FileConfig) apply(cfg *Config) error {
	setStr(&cfg.Port, fc.Port)
	setStr(&cfg.LogLevel, fc.LogLevel)

	setStr(&cfg.StorageBackend, fc.Storage.Backend)
	setStr(&cfg.MongoURI, fc.Storage.MongoURI)
	setStr(&cfg.MongoDatabaseName, fc.Storage.MongoDatabaseName)
	setStr(&cfg.SQLitePath, fc.Storage.SQLitePath)

	setStr(&cfg.LockBackend, fc.Lock.Backend)
	setStr(&cfg.RedisAddr, fc.Lock.RedisAddr)
	setStr(&cfg.RedisPassword, fc.Lock.RedisPassword)
	if fc.Lock.RedisDB != nil {
		cfg.RedisDB = *fc.Lock.RedisDB
	}
	if fc.Lock.RedisTLS != nil {
		cfg.RedisTLS = *fc.Lock.RedisTLS
	}

	setInt(&cfg.RateLimitRequests, fc.HTTP.RateLimitRequests)
	setInt(&cfg.MaxRequestSize, fc.HTTP.MaxRequestSize)

	if fc.Engine.DefaultPadding != nil {
		cfg.DefaultPaddingMin = *fc.Engine.DefaultPadding
	}
	if fc.Engine.AllowOverlap != nil {
		cfg.AllowOverlap = *fc.Engine.AllowOverlap
	}
	if fc.Engine.AllowUnscheduled != nil {
		cfg.AllowUnscheduled = *fc.Engine.AllowUnscheduled
	}
	setInt(&cfg.MaxOccurrences, fc.Engine.MaxOccurrences)

	setStr(&cfg.MaintenanceCron, fc.MaintenanceCron)
	if fc.ScheduleEvents != nil {
		cfg.ScheduleEvents = *fc.ScheduleEvents
	}
	setStr(&cfg.AgendaAPIURL, fc.AgendaAPIURL)

	durations := []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"storage.mongo_conn_timeout", fc.Storage.MongoConnTimeout, &cfg.MongoConnTimeout},
		{"lock.ttl", fc.Lock.TTL, &cfg.LockTTL},
		{"http.rate_limit_window", fc.HTTP.RateLimitWindow, &cfg.RateLimitWindow},
		{"http.request_timeout", fc.HTTP.RequestTimeout, &cfg.RequestTimeout},
		{"http.idempotency_ttl", fc.HTTP.IdempotencyTTL, &cfg.IdempotencyTTL},
		{"http.read_timeout", fc.HTTP.ReadTimeout, &cfg.ReadTimeout},
		{"http.write_timeout", fc.HTTP.WriteTimeout, &cfg.WriteTimeout},
		{"http.idle_timeout", fc.HTTP.IdleTimeout, &cfg.IdleTimeout},
		{"http.shutdown_timeout", fc.HTTP.ShutdownTimeout, &cfg.ShutdownTimeout},
		{"engine.horizon", fc.Engine.Horizon, &cfg.Horizon},
		{"engine.max_padding", fc.Engine.MaxPadding, &cfg.MaxPadding},
		{"engine.max_query_window", fc.Engine.MaxQueryWindow, &cfg.MaxQueryWindow},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf("invalid duration for %s: %w", d.name, err)
		}
		*d.dst = parsed
	}
	return nil
}

func setStr(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}
