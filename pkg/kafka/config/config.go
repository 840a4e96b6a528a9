// Package kafka_config reads the Kafka settings shared by the agenda API
// (schedule-changed producer) and the worker (regeneration consumer).
package kafka_config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Start offsets understood by kafka-go.
const (
	OffsetNewest int64 = -1
	OffsetOldest int64 = -2
)

type Config struct {
	Brokers       []string
	Topics        Topics
	ConsumerGroup string
	Producer      ProducerConfig
	Consumer      ConsumerConfig

	// EnableMiddleware wraps producers and consumers with logging and
	// metrics.
	EnableMiddleware bool
}

// Topics names the agenda topics. DeadLetter may be empty to disable
// dead-lettering.
type Topics struct {
	ScheduleChanged      string
	RegenerationRequests string
	DeadLetter           string
}

type ProducerConfig struct {
	MaxAttempts  int
	BatchTimeout time.Duration
	RequireAcks  int    // -1 all, 0 none, 1 leader
	Compression  string // none, gzip, snappy, lz4, zstd
	Async        bool
}

type ConsumerConfig struct {
	StartOffset       int64
	MinBytes          int
	MaxBytes          int
	MaxWait           time.Duration
	CommitInterval    time.Duration
	HeartbeatInterval time.Duration
	SessionTimeout    time.Duration
	RebalanceTimeout  time.Duration
	MaxRetries        int
}

// Load reads the configuration from the environment. A variable that is
// set but does not parse is reported alongside the validation errors.
func Load() (*Config, error) {
	e := &envReader{}

	cfg := &Config{
		Brokers: splitBrokers(e.str(EnvKafkaBrokers, DefaultKafkaBrokers)),
		Topics: Topics{
			ScheduleChanged:      e.str(EnvKafkaTopicScheduleChanged, DefaultTopicScheduleChanged),
			RegenerationRequests: e.str(EnvKafkaTopicRegenerationRequests, DefaultTopicRegenerationRequests),
			DeadLetter:           e.str(EnvKafkaTopicDeadLetter, ""),
		},
		ConsumerGroup: e.str(EnvKafkaConsumerGroup, DefaultConsumerGroup),
		Producer: ProducerConfig{
			MaxAttempts:  e.int(EnvKafkaProducerMaxAttempts, DefaultProducerMaxAttempts),
			BatchTimeout: e.duration(EnvKafkaProducerBatchTimeout, DefaultProducerBatchTimeout),
			RequireAcks:  e.int(EnvKafkaProducerRequireAcks, DefaultProducerRequireAcks),
			Compression:  strings.ToLower(e.str(EnvKafkaProducerCompression, DefaultProducerCompression)),
			Async:        e.bool(EnvKafkaProducerAsync, DefaultProducerAsync),
		},
		Consumer: ConsumerConfig{
			StartOffset:       e.offset(EnvKafkaConsumerStartOffset, DefaultConsumerStartOffset),
			MinBytes:          e.int(EnvKafkaConsumerMinBytes, DefaultConsumerMinBytes),
			MaxBytes:          e.int(EnvKafkaConsumerMaxBytes, DefaultConsumerMaxBytes),
			MaxWait:           e.duration(EnvKafkaConsumerMaxWait, DefaultConsumerMaxWait),
			CommitInterval:    e.duration(EnvKafkaConsumerCommitInterval, DefaultConsumerCommitInterval),
			HeartbeatInterval: e.duration(EnvKafkaConsumerHeartbeatInterval, DefaultConsumerHeartbeatInterval),
			SessionTimeout:    e.duration(EnvKafkaConsumerSessionTimeout, DefaultConsumerSessionTimeout),
			RebalanceTimeout:  e.duration(EnvKafkaConsumerRebalanceTimeout, DefaultConsumerRebalanceTimeout),
			MaxRetries:        e.int(EnvKafkaConsumerMaxRetries, DefaultConsumerMaxRetries),
		},
		EnableMiddleware: e.bool(EnvKafkaEnableMiddleware, DefaultEnableMiddleware),
	}

	problems := append(e.problems, cfg.problems()...)
	if len(problems) > 0 {
		return nil, fmt.Errorf("kafka: %w", joinProblems(problems))
	}
	return cfg, nil
}

func splitBrokers(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// Validate checks the configuration and lists every problem found.
func (cfg *Config) Validate() error {
	if problems := cfg.problems(); len(problems) > 0 {
		return joinProblems(problems)
	}
	return nil
}

func (cfg *Config) problems() []string {
	var p []string
	add := func(format string, args ...any) { p = append(p, fmt.Sprintf(format, args...)) }

	if len(cfg.Brokers) == 0 {
		add("At least one Kafka broker is required")
	}
	if cfg.Topics.ScheduleChanged == "" {
		add("Topics.ScheduleChanged cannot be empty")
	}
	if cfg.Topics.RegenerationRequests == "" {
		add("Topics.RegenerationRequests cannot be empty")
	}
	if cfg.Topics.ScheduleChanged != "" && cfg.Topics.ScheduleChanged == cfg.Topics.RegenerationRequests {
		add("Topics.ScheduleChanged and Topics.RegenerationRequests must differ, both are %s", cfg.Topics.ScheduleChanged)
	}
	if dl := cfg.Topics.DeadLetter; dl != "" && (dl == cfg.Topics.RegenerationRequests || dl == cfg.Topics.ScheduleChanged) {
		add("Topics.DeadLetter must differ from the event topics, got: %s", dl)
	}
	if cfg.ConsumerGroup == "" {
		add("ConsumerGroup cannot be empty")
	}

	pr := cfg.Producer
	if pr.MaxAttempts <= 0 {
		add("Producer.MaxAttempts must be positive, got: %d", pr.MaxAttempts)
	}
	if pr.BatchTimeout <= 0 {
		add("Producer.BatchTimeout must be positive, got: %s", pr.BatchTimeout)
	}
	switch pr.Compression {
	case "none", "gzip", "snappy", "lz4", "zstd":
	default:
		add("Producer.Compression must be one of [none, gzip, snappy, lz4, zstd], got: %s", pr.Compression)
	}
	if pr.RequireAcks < -1 || pr.RequireAcks > 1 {
		add("Producer.RequireAcks must be -1, 0, or 1, got: %d", pr.RequireAcks)
	}

	co := cfg.Consumer
	if co.StartOffset != OffsetNewest && co.StartOffset != OffsetOldest {
		add("Consumer.StartOffset must be newest or oldest, got: %d", co.StartOffset)
	}
	if co.MinBytes <= 0 || co.MaxBytes < co.MinBytes {
		add("Consumer.MinBytes must be positive and at most MaxBytes, got: %d..%d", co.MinBytes, co.MaxBytes)
	}
	for _, d := range []struct {
		name  string
		value time.Duration
	}{
		{"MaxWait", co.MaxWait},
		{"HeartbeatInterval", co.HeartbeatInterval},
		{"SessionTimeout", co.SessionTimeout},
		{"RebalanceTimeout", co.RebalanceTimeout},
	} {
		if d.value <= 0 {
			add("Consumer.%s must be positive, got: %s", d.name, d.value)
		}
	}
	// Zero commits synchronously after every message.
	if co.CommitInterval < 0 {
		add("Consumer.CommitInterval cannot be negative, got: %s", co.CommitInterval)
	}
	if co.HeartbeatInterval > 0 && co.SessionTimeout > 0 && co.HeartbeatInterval >= co.SessionTimeout {
		add("Consumer.HeartbeatInterval (%s) must be shorter than SessionTimeout (%s)", co.HeartbeatInterval, co.SessionTimeout)
	}
	if co.MaxRetries < 0 {
		add("Consumer.MaxRetries cannot be negative, got: %d", co.MaxRetries)
	}
	return p
}

func joinProblems(problems []string) error {
	var b strings.Builder
	b.WriteString("Configuration validation failed:\n")
	for i, p := range problems {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, p)
	}
	return fmt.Errorf("%s", b.String())
}

// LogConfiguration logs the settings through logFunc, typically the
// service logger's Info.
func (cfg *Config) LogConfiguration(logFunc func(msg string, keysAndValues ...any)) {
	if logFunc == nil {
		return
	}
	logFunc("Kafka configuration loaded",
		"brokers", cfg.Brokers,
		"topic_schedule_changed", cfg.Topics.ScheduleChanged,
		"topic_regeneration_requests", cfg.Topics.RegenerationRequests,
		"topic_dead_letter", cfg.Topics.DeadLetter,
		"consumer_group", cfg.ConsumerGroup,
		"producer_require_acks", cfg.Producer.RequireAcks,
		"producer_compression", cfg.Producer.Compression,
		"producer_async", cfg.Producer.Async,
		"consumer_start_offset", offsetName(cfg.Consumer.StartOffset),
		"consumer_max_retries", cfg.Consumer.MaxRetries,
		"enable_middleware", cfg.EnableMiddleware,
	)
}

func offsetName(offset int64) string {
	switch offset {
	case OffsetNewest:
		return "newest"
	case OffsetOldest:
		return "oldest"
	default:
		return strconv.FormatInt(offset, 10)
	}
}

// envReader reads typed variables and remembers the ones that failed to
// parse.
type envReader struct {
	problems []string
}

func (e *envReader) lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (e *envReader) fail(key, value, want string) {
	e.problems = append(e.problems, fmt.Sprintf("%s=%q is not %s", key, value, want))
}

func (e *envReader) str(key, fallback string) string {
	if v, ok := e.lookup(key); ok {
		return v
	}
	return fallback
}

func (e *envReader) int(key string, fallback int) int {
	v, ok := e.lookup(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, v, "an integer")
		return fallback
	}
	return n
}

func (e *envReader) bool(key string, fallback bool) bool {
	v, ok := e.lookup(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, v, "a boolean")
		return fallback
	}
	return b
}

func (e *envReader) duration(key string, fallback time.Duration) time.Duration {
	v, ok := e.lookup(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, v, "a duration")
		return fallback
	}
	return d
}

// offset accepts "newest", "oldest" or the numeric kafka-go constants.
func (e *envReader) offset(key string, fallback int64) int64 {
	v, ok := e.lookup(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(v) {
	case "newest", "latest":
		return OffsetNewest
	case "oldest", "earliest":
		return OffsetOldest
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		e.fail(key, v, "newest or oldest")
		return fallback
	}
	return n
}
