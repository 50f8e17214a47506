package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config telemetry-server configuration, loaded from the environment.
type Config struct {
	HTTP struct {
		Addr string
	}
	DBEnabled bool
	Database  DatabaseConfig
	Redis     RedisConfig
	MQTT      MQTTConfig
	Flush     FlushConfig
	Log       struct {
		Level  string
		Format string
	}
}

// DatabaseConfig PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN builds the lib/pq connection string.
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig Redis connection plus the frame-intake stream settings.
type RedisConfig struct {
	Enabled       bool
	Addr          string
	Password      string
	DB            int
	Stream        string // gateway frames land here
	ConsumerGroup string
	ConsumerName  string
	BatchSize     int64
}

// MQTTConfig gateway intake subscription settings.
type MQTTConfig struct {
	Enabled  bool
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string // subscription filter for gateway frame publishes
	QoS      byte
}

// FlushConfig buffer-to-store flush cadence.
type FlushConfig struct {
	Interval time.Duration
}

// Load reads the configuration from environment variables, applying the
// reference deployment's defaults.
func Load() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":5000")

	// Default to true for local dev: when the DB is unreachable the server
	// falls back to the in-memory store instead of refusing to start.
	cfg.DBEnabled = getEnv("DB_ENABLED", "true") == "true"
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = parseInt(getEnv("DB_PORT", "5432"), 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "disaster_connect")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = parseInt(getEnv("DB_MAX_CONNS", "25"), 25)
	cfg.Database.MaxIdle = parseInt(getEnv("DB_MAX_IDLE", "5"), 5)

	cfg.Redis.Enabled = getEnv("REDIS_ENABLED", "false") == "true"
	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = 0
	cfg.Redis.Stream = getEnv("STREAM_FRAMES", "telemetry:frames")
	cfg.Redis.ConsumerGroup = getEnv("CONSUMER_GROUP", "telemetry-pipeline")
	cfg.Redis.ConsumerName = getEnv("CONSUMER_NAME", defaultConsumerName())
	cfg.Redis.BatchSize = int64(parseInt(getEnv("CONSUMER_BATCH_SIZE", "64"), 64))

	cfg.MQTT.Enabled = getEnv("MQTT_ENABLED", "false") == "true"
	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "telemetry-gateway")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.Topic = getEnv("MQTT_TOPIC", "disaster/gateway/+/frames")
	cfg.MQTT.QoS = 1

	cfg.Flush.Interval = time.Duration(parseInt(getEnv("FLUSH_INTERVAL_SECONDS", "300"), 300)) * time.Second

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg
}

func defaultConsumerName() string {
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		return hostname
	}
	return "telemetry-server-1"
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}
