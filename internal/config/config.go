package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the core download orchestrator.
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// NATS configuration
	NATS NATSConfig

	// Kafka configuration
	Kafka KafkaConfig

	// Observability configuration
	Observability ObservabilityConfig

	// Core holds the orchestrator's own tuning knobs.
	Core CoreConfig
}

// ServerConfig holds server-specific configuration.
type ServerConfig struct {
	Environment  string
	ServiceName  string
	LogLevel     string
	ShutdownTime time.Duration

	// EventBus selects the transport behind domain event publishing:
	// "nats" (default) or "kafka".
	EventBus string
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

// NATSConfig holds NATS JetStream configuration.
type NATSConfig struct {
	URL           string
	ClusterID     string
	ClientID      string
	DurableName   string
	MaxReconnect  int
	ReconnectWait time.Duration
}

// KafkaConfig holds Kafka/sarama configuration.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// ObservabilityConfig holds observability configuration.
type ObservabilityConfig struct {
	MetricsEnabled bool
	MetricsPort    int
	LogLevel       string
	LogFormat      string // json or console
}

// CoreConfig tunes the download orchestrator's internal loops. Every field
// has a production default applied in Load and is overridable per-deployment
// via environment variables.
type CoreConfig struct {
	// QueueSize bounds the Worker Actor's inbound channel.
	QueueSize int

	// SyncInterval is the Status Syncer's poll period.
	SyncInterval time.Duration

	// RetryProcessorInterval is the Retry Processor's scan period.
	RetryProcessorInterval time.Duration

	// VanishedGraceMultiplier scales SyncInterval to decide how long a
	// task may be absent from a backend's ListTasks before it is treated
	// as vanished.
	VanishedGraceMultiplier int

	// DefaultDownloadTimeout is LoadBackendConfig's DownloadTimeout when
	// the backend's <PREFIX>DOWNLOAD_TIMEOUT variable is unset.
	DefaultDownloadTimeout time.Duration

	// DefaultMaxRetryCount is LoadBackendConfig's MaxRetryCount when the
	// backend's <PREFIX>MAX_RETRY_COUNT variable is unset.
	DefaultMaxRetryCount int

	// DefaultRetryMinInterval/DefaultRetryMaxInterval seed a backend's
	// retry backoff (task.RetryBackoffConfig) when unset.
	DefaultRetryMinInterval time.Duration
	DefaultRetryMaxInterval time.Duration

	// DefaultDownloadDir is LoadBackendConfig's DownloadDir when the
	// backend's <PREFIX>DOWNLOAD_DIR variable is unset. It is not applied
	// to tasks: a Create with an empty Dir is rejected.
	DefaultDownloadDir string
}

// Load loads configuration from environment variables.
func Load(serviceName string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Environment:  getEnv("ENVIRONMENT", "development"),
			ServiceName:  serviceName,
			LogLevel:     getEnv("LOG_LEVEL", "info"),
			ShutdownTime: getEnvAsDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
			EventBus:     getEnv("EVENT_BUS", "nats"),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnvAsInt("DB_PORT", 5432),
			User:         getEnv("DB_USER", "dlcore"),
			Password:     getEnv("DB_PASSWORD", "dlcore"),
			Database:     getEnv("DB_NAME", "dlcore"),
			SSLMode:      getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:  getEnvAsDuration("DB_MAX_LIFETIME", 5*time.Minute),
		},
		NATS: NATSConfig{
			URL:           getEnv("NATS_URL", "nats://localhost:4222"),
			ClusterID:     getEnv("NATS_CLUSTER_ID", "dlcore-cluster"),
			ClientID:      fmt.Sprintf("%s-%s", serviceName, getEnv("HOSTNAME", "local")),
			DurableName:   fmt.Sprintf("%s-durable", serviceName),
			MaxReconnect:  getEnvAsInt("NATS_MAX_RECONNECT", 60),
			ReconnectWait: getEnvAsDuration("NATS_RECONNECT_WAIT", 2*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvAsSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topic:   getEnv("KAFKA_TOPIC", "dlcore.task-events"),
			GroupID: getEnv("KAFKA_GROUP_ID", fmt.Sprintf("%s-group", serviceName)),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
			MetricsPort:    getEnvAsInt("METRICS_PORT", 9091),
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
		},
		Core: CoreConfig{
			QueueSize:               getEnvAsInt("CORE_QUEUE_SIZE", 128),
			SyncInterval:            getEnvAsDuration("CORE_SYNC_INTERVAL", 10*time.Second),
			RetryProcessorInterval:  getEnvAsDuration("CORE_RETRY_INTERVAL", 30*time.Second),
			VanishedGraceMultiplier: getEnvAsInt("CORE_VANISHED_GRACE_MULTIPLIER", 2),
			DefaultDownloadTimeout:  getEnvAsDuration("CORE_DEFAULT_DOWNLOAD_TIMEOUT", 30*time.Minute),
			DefaultMaxRetryCount:    getEnvAsInt("CORE_DEFAULT_MAX_RETRY_COUNT", 5),
			DefaultRetryMinInterval: getEnvAsDuration("CORE_DEFAULT_RETRY_MIN_INTERVAL", 30*time.Second),
			DefaultRetryMaxInterval: getEnvAsDuration("CORE_DEFAULT_RETRY_MAX_INTERVAL", 30*time.Minute),
			DefaultDownloadDir:      getEnv("CORE_DEFAULT_DOWNLOAD_DIR", "/var/lib/dlcore/downloads"),
		},
	}

	return cfg, nil
}

// BackendConfig is the subset of per-backend tuning sourced from the
// environment under a backend-specific prefix, e.g. LoadBackendConfig
// ("QBITTORRENT_") reads QBITTORRENT_PRIORITY, QBITTORRENT_MAX_RETRY_COUNT,
// and so on. Unset retry, timeout and download-dir fields fall back to
// Core's defaults; an unset priority is 100 and an unset
// delete-on-completion flag is false.
type BackendConfig struct {
	Priority               int
	MaxRetryCount          int
	RetryMinInterval       time.Duration
	RetryMaxInterval       time.Duration
	DownloadTimeout        time.Duration
	DeleteTaskOnCompletion bool
	DownloadDir            string
}

// LoadBackendConfig reads a single backend's tuning from environment
// variables prefixed with prefix, defaulting unset retry, timeout and
// download-dir fields from c.Core.
func (c *Config) LoadBackendConfig(prefix string) BackendConfig {
	return BackendConfig{
		Priority:               getEnvAsInt(prefix+"PRIORITY", 100),
		MaxRetryCount:          getEnvAsIntOr(prefix+"MAX_RETRY_COUNT", c.Core.DefaultMaxRetryCount),
		RetryMinInterval:       getEnvAsDurationOr(prefix+"RETRY_MIN_INTERVAL", c.Core.DefaultRetryMinInterval),
		RetryMaxInterval:       getEnvAsDurationOr(prefix+"RETRY_MAX_INTERVAL", c.Core.DefaultRetryMaxInterval),
		DownloadTimeout:        getEnvAsDurationOr(prefix+"DOWNLOAD_TIMEOUT", c.Core.DefaultDownloadTimeout),
		DeleteTaskOnCompletion: getEnvAsBool(prefix+"DELETE_ON_COMPLETION", false),
		DownloadDir:            getEnv(prefix+"DOWNLOAD_DIR", c.Core.DefaultDownloadDir),
	}
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	return getEnvAsIntOr(key, defaultValue)
}

func getEnvAsIntOr(key string, defaultValue int) int {
	strValue := getEnv(key, "")
	if strValue == "" {
		return defaultValue
	}
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	strValue := getEnv(key, "")
	if strValue == "" {
		return defaultValue
	}
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	return getEnvAsDurationOr(key, defaultValue)
}

func getEnvAsDurationOr(key string, defaultValue time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if strValue == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	strValue := getEnv(key, "")
	if strValue == "" {
		return defaultValue
	}
	var out []string
	start := 0
	for i := 0; i <= len(strValue); i++ {
		if i == len(strValue) || strValue[i] == ',' {
			if i > start {
				out = append(out, strValue[start:i])
			}
			start = i + 1
		}
	}
	return out
}

// DSN returns the database connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode)
}
