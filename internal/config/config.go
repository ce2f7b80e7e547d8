package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Addr       string // API bind address, e.g. "127.0.0.1:8080" or ":8080" (Docker)
	LogDir     string
	LogLevel   string
	LogConsole bool

	ChecksServer         string // base URL of the delivery checks service
	CatalogFile          string // optional local catalog, overrides ChecksServer/checks
	HTTPTimeout          time.Duration
	CatalogRetryAttempts int
	CatalogRetryBackoff  time.Duration
	FetchRetryAttempts   int // 1 means no retry of result fetches
	FetchRetryBackoff    time.Duration

	DiagramPath string // SVG diagram; empty disables annotation

	SecretBackend  string // file | redis | memory
	SecretFile     string
	RedisAddr      string
	SecretRedisKey string

	DatabaseURL string // empty means in-memory state store

	SlackWebhook    string
	AlertCooldown   time.Duration
	AlertOnRecovery bool

	KafkaBrokers []string
	KafkaTopic   string

	AllowedOrigins []string
	RefreshRPM     int
	RefreshBurst   int
}

const (
	SecretBackendFile   = "file"
	SecretBackendRedis  = "redis"
	SecretBackendMemory = "memory"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("api_addr", "127.0.0.1:8080")
	v.SetDefault("log_dir", "logs")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_console", false)

	v.SetDefault("checks_server", "https://delivery-checks.prod.mozaws.net")
	v.SetDefault("catalog_file", "")
	v.SetDefault("http_timeout_ms", 10000)
	v.SetDefault("catalog_retry_attempts", 5)
	v.SetDefault("catalog_retry_backoff_ms", 500)
	v.SetDefault("fetch_retry_attempts", 1)
	v.SetDefault("fetch_retry_backoff_ms", 500)

	v.SetDefault("diagram_path", "")

	v.SetDefault("secret_backend", SecretBackendFile)
	v.SetDefault("secret_file", ".refresh-secret")
	v.SetDefault("redis_addr", "")
	v.SetDefault("secret_redis_key", "checkboard:refresh-secret")

	v.SetDefault("database_url", "")

	v.SetDefault("slack_webhook", "")
	v.SetDefault("alert_cooldown_ms", 5*60*1000)
	v.SetDefault("alert_on_recovery", true)

	v.SetDefault("kafka_brokers", "")
	v.SetDefault("kafka_topic", "check-transitions")

	v.SetDefault("allowed_origins", "")
	v.SetDefault("refresh_rpm", 30)
	v.SetDefault("refresh_burst", 5)
}

// Load reads defaults, then the optional YAML file at path (or configs/config.yaml),
// then environment variables. Environment always wins.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := Config{
		Addr:       v.GetString("api_addr"),
		LogDir:     v.GetString("log_dir"),
		LogLevel:   v.GetString("log_level"),
		LogConsole: v.GetBool("log_console"),

		ChecksServer:         strings.TrimRight(v.GetString("checks_server"), "/"),
		CatalogFile:          v.GetString("catalog_file"),
		HTTPTimeout:          millis(v, "http_timeout_ms"),
		CatalogRetryAttempts: v.GetInt("catalog_retry_attempts"),
		CatalogRetryBackoff:  millis(v, "catalog_retry_backoff_ms"),
		FetchRetryAttempts:   v.GetInt("fetch_retry_attempts"),
		FetchRetryBackoff:    millis(v, "fetch_retry_backoff_ms"),

		DiagramPath: v.GetString("diagram_path"),

		SecretBackend:  strings.ToLower(v.GetString("secret_backend")),
		SecretFile:     v.GetString("secret_file"),
		RedisAddr:      v.GetString("redis_addr"),
		SecretRedisKey: v.GetString("secret_redis_key"),

		DatabaseURL: v.GetString("database_url"),

		SlackWebhook:    v.GetString("slack_webhook"),
		AlertCooldown:   millis(v, "alert_cooldown_ms"),
		AlertOnRecovery: v.GetBool("alert_on_recovery"),

		KafkaBrokers: splitList(v.GetString("kafka_brokers")),
		KafkaTopic:   v.GetString("kafka_topic"),

		AllowedOrigins: splitList(v.GetString("allowed_origins")),
		RefreshRPM:     v.GetInt("refresh_rpm"),
		RefreshBurst:   v.GetInt("refresh_burst"),
	}

	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}
	if cfg.CatalogRetryAttempts < 1 {
		cfg.CatalogRetryAttempts = 1
	}
	if cfg.CatalogRetryBackoff < 0 {
		cfg.CatalogRetryBackoff = 0
	}
	return cfg, cfg.Validate()
}

// Validate reports settings that cannot work together.
func (c Config) Validate() error {
	switch c.SecretBackend {
	case SecretBackendFile:
		if c.SecretFile == "" {
			return errors.New("SECRET_FILE is required for the file secret backend")
		}
	case SecretBackendRedis:
		if c.RedisAddr == "" {
			return errors.New("REDIS_ADDR is required for the redis secret backend")
		}
	case SecretBackendMemory:
	default:
		return fmt.Errorf("unknown SECRET_BACKEND %q", c.SecretBackend)
	}
	if c.ChecksServer == "" && c.CatalogFile == "" {
		return errors.New("either CHECKS_SERVER or CATALOG_FILE must be set")
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		return errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	return nil
}

func millis(v *viper.Viper, key string) time.Duration {
	return time.Duration(v.GetInt(key)) * time.Millisecond
}

// splitList parses comma-separated values, dropping blanks.
func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
