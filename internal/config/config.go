package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig
	Worker    WorkerConfig
	DB        DatabaseConfig
	Logging   LoggingConfig
	Dispatch  DispatchConfig
	Actions   ActionsConfig
	Protocol  ProtocolConfig
	Redis     RedisConfig
	MQTT      MQTTConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type WorkerConfig struct {
	Count      int
	BufferSize int
}

type DatabaseConfig struct {
	Path string
}

type LoggingConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// ProviderEndpoint is one vendor for a notification channel. An empty URL
// means the channel is logged instead of delivered.
type ProviderEndpoint struct {
	URL    string
	APIKey string
}

type DispatchConfig struct {
	Timeout      time.Duration
	SMSPrimary   ProviderEndpoint
	SMSSecondary ProviderEndpoint
	Voice        ProviderEndpoint
	Email        ProviderEndpoint
	Push         ProviderEndpoint
}

type ActionsConfig struct {
	Timeout         time.Duration
	APIKey          string
	EMSURL          string
	ProvidersURL    string
	MonitoringURL   string
	ConsultationURL string
}

type ProtocolConfig struct {
	Timezone   string
	NightStart int
	NightEnd   int
}

type RedisConfig struct {
	Enabled      bool
	Addr         string
	Password     string
	DB           int
	Stream       string
	StreamMaxLen int64
}

type MQTTConfig struct {
	Enabled  bool
	Broker   string
	ClientID string
	Username string
	Password string
	Topics   []string
	QoS      int
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "localhost"),
			Port: getEnvInt("SERVER_PORT", 8080),
		},
		Worker: WorkerConfig{
			Count:      getEnvInt("WORKER_COUNT", 4),
			BufferSize: getEnvInt("WORKER_BUFFER_SIZE", 100),
		},
		DB: DatabaseConfig{
			Path: getEnv("DB_PATH", "./data/emergency-alerts.db"),
		},
		Logging: LoggingConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			File:       getEnv("LOG_FILE", ""),
			MaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 50),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 3),
			MaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 28),
		},
		Dispatch: DispatchConfig{
			Timeout:      getEnvDuration("DISPATCH_TIMEOUT", 10*time.Second),
			SMSPrimary:   getEndpoint("SMS_PRIMARY"),
			SMSSecondary: getEndpoint("SMS_SECONDARY"),
			Voice:        getEndpoint("VOICE"),
			Email:        getEndpoint("EMAIL"),
			Push:         getEndpoint("PUSH"),
		},
		Actions: ActionsConfig{
			Timeout:         getEnvDuration("ACTION_TIMEOUT", 10*time.Second),
			APIKey:          getEnv("ACTION_API_KEY", ""),
			EMSURL:          getEnv("EMS_URL", ""),
			ProvidersURL:    getEnv("PROVIDER_ALERT_URL", ""),
			MonitoringURL:   getEnv("MONITORING_URL", ""),
			ConsultationURL: getEnv("CONSULTATION_URL", ""),
		},
		Protocol: ProtocolConfig{
			Timezone:   getEnv("PROTOCOL_TIMEZONE", "UTC"),
			NightStart: getEnvInt("NIGHT_START_HOUR", 22),
			NightEnd:   getEnvInt("NIGHT_END_HOUR", 6),
		},
		Redis: RedisConfig{
			Enabled:      getEnvBool("REDIS_ENABLED", false),
			Addr:         getEnv("REDIS_ADDR", "localhost:6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvInt("REDIS_DB", 0),
			Stream:       getEnv("REDIS_STREAM", "emergency:events"),
			StreamMaxLen: int64(getEnvInt("REDIS_STREAM_MAXLEN", 10000)),
		},
		MQTT: MQTTConfig{
			Enabled:  getEnvBool("MQTT_ENABLED", false),
			Broker:   getEnv("MQTT_BROKER", "tcp://localhost:1883"),
			ClientID: getEnv("MQTT_CLIENT_ID", "emergency-alerts"),
			Username: getEnv("MQTT_USERNAME", ""),
			Password: getEnv("MQTT_PASSWORD", ""),
			Topics:   getEnvList("MQTT_TOPICS", []string{"devices/+/emergency"}),
			QoS:      getEnvInt("MQTT_QOS", 1),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvFloat("RATE_LIMIT_RPS", 10),
			Burst:             getEnvInt("RATE_LIMIT_BURST", 20),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Worker.Count < 1 {
		return fmt.Errorf("worker count must be at least 1")
	}
	if c.Dispatch.Timeout <= 0 || c.Actions.Timeout <= 0 {
		return fmt.Errorf("dispatch and action timeouts must be positive")
	}

	if _, err := time.LoadLocation(c.Protocol.Timezone); err != nil {
		return fmt.Errorf("invalid protocol timezone %q: %w", c.Protocol.Timezone, err)
	}
	if c.Protocol.NightStart < 0 || c.Protocol.NightStart > 23 || c.Protocol.NightEnd < 0 || c.Protocol.NightEnd > 23 {
		return fmt.Errorf("night window hours must be between 0 and 23")
	}

	if c.MQTT.Enabled && len(c.MQTT.Topics) == 0 {
		return fmt.Errorf("MQTT enabled without topics")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		return fmt.Errorf("invalid MQTT QoS: %d", c.MQTT.QoS)
	}

	if c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst < 1 {
		return fmt.Errorf("rate limit must allow at least one request")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEndpoint(prefix string) ProviderEndpoint {
	return ProviderEndpoint{
		URL:    getEnv(prefix+"_URL", ""),
		APIKey: getEnv(prefix+"_API_KEY", ""),
	}
}
