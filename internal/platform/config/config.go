package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	platformstrings "vcanchor/pkg/platform/strings"
)

// Config is the full service configuration, assembled once in main.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Ledger    LedgerConfig
	Auth      AuthConfig
	Worker    WorkerConfig
	RateLimit RateLimitConfig
}

// ServerConfig captures HTTP server level configuration.
type ServerConfig struct {
	Addr            string
	LogLevel        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig selects the relational store. An empty URL keeps everything in memory.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	Migrate         bool
}

// RedisConfig configures the DID resolution cache. An empty URL disables it.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	DIDCacheTTL  time.Duration
}

// KafkaConfig configures lifecycle event publishing. No brokers disables it.
type KafkaConfig struct {
	Brokers        []string
	Topic          string
	Partitions     int32
	Replication    int16
	ClientID       string
	CreateTopic    bool
	ProduceTimeout time.Duration
	RelayInterval  time.Duration
	RelayBatchSize int
}

// LedgerConfig points at the ledger gateway sidecar.
type LedgerConfig struct {
	URL              string
	RequestTimeout   time.Duration
	ReceiptTimeout   time.Duration
	PollInterval     time.Duration
	FailureThreshold int
	Cooldown         time.Duration
}

// AuthConfig holds bearer token rules.
type AuthConfig struct {
	DIDPrefixes  []string
	IssuedAtSkew time.Duration
	// OperatorDIDs may call administrative routes such as reset-stuck.
	OperatorDIDs []string
}

// WorkerConfig drives the stuck-response sweeper.
type WorkerConfig struct {
	SweepInterval   time.Duration
	ResponseTimeout time.Duration
}

// RateLimitConfig sets per-caller sliding window budgets. Limits of zero
// leave that class unthrottled. Redis, when configured, shares the windows.
type RateLimitConfig struct {
	Enabled       bool
	ReadRequests  int
	WriteRequests int
	Window        time.Duration
}

// FromEnv builds the config from environment variables so main stays lean.
func FromEnv() Config {
	return Config{
		Server: ServerConfig{
			Addr:            getString("VCANCHOR_ADDR", ":8080"),
			LogLevel:        getString("LOG_LEVEL", "info"),
			ReadTimeout:     getDuration("HTTP_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDuration("HTTP_WRITE_TIMEOUT", 3*time.Minute),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			Migrate:         getBool("DB_MIGRATE", true),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			DIDCacheTTL:  getDuration("DID_CACHE_TTL", time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers:        getList("KAFKA_BROKERS", nil),
			Topic:          getString("KAFKA_TOPIC", "vcanchor.lifecycle"),
			Partitions:     int32(getInt("KAFKA_TOPIC_PARTITIONS", 3)),
			Replication:    int16(getInt("KAFKA_TOPIC_REPLICATION", 1)),
			ClientID:       getString("KAFKA_CLIENT_ID", "vcanchor"),
			CreateTopic:    getBool("KAFKA_CREATE_TOPIC", true),
			ProduceTimeout: getDuration("KAFKA_PRODUCE_TIMEOUT", 10*time.Second),
			RelayInterval:  getDuration("OUTBOX_RELAY_INTERVAL", time.Second),
			RelayBatchSize: getInt("OUTBOX_RELAY_BATCH", 100),
		},
		Ledger: LedgerConfig{
			URL:              getString("LEDGER_URL", "http://localhost:8545"),
			RequestTimeout:   getDuration("LEDGER_REQUEST_TIMEOUT", 15*time.Second),
			ReceiptTimeout:   getDuration("LEDGER_RECEIPT_TIMEOUT", 2*time.Minute),
			PollInterval:     getDuration("LEDGER_POLL_INTERVAL", 500*time.Millisecond),
			FailureThreshold: getInt("LEDGER_BREAKER_FAILURES", 5),
			Cooldown:         getDuration("LEDGER_BREAKER_COOLDOWN", 10*time.Second),
		},
		Auth: AuthConfig{
			DIDPrefixes:  getList("DID_PREFIXES", []string{"did:dcert:", "did:example:"}),
			IssuedAtSkew: getDuration("TOKEN_IAT_SKEW", 60*time.Second),
			OperatorDIDs: getList("OPERATOR_DIDS", nil),
		},
		Worker: WorkerConfig{
			SweepInterval:   getDuration("RESPONSE_SWEEP_INTERVAL", time.Minute),
			ResponseTimeout: getDuration("RESPONSE_PROCESSING_TIMEOUT", 5*time.Minute),
		},
		RateLimit: RateLimitConfig{
			Enabled:       getBool("RATE_LIMIT_ENABLED", true),
			ReadRequests:  getInt("RATE_LIMIT_READ", 300),
			WriteRequests: getInt("RATE_LIMIT_WRITE", 60),
			Window:        getDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
	}
}

func getString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	out := platformstrings.DedupeAndTrim(strings.Split(v, ","))
	if len(out) == 0 {
		return nil
	}
	return out
}
