package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	commoncfg "bloodbank/common/config"

	"github.com/joho/godotenv"
)

const devSessionSecret = "dev-only-session-secret-change-me"

// Config bloodbank service configuration
type Config struct {
	AppEnv string
	HTTP   struct {
		Addr string
	}
	DBEnabled    bool
	Database     commoncfg.DatabaseConfig
	RedisEnabled bool
	Redis        commoncfg.RedisConfig
	Log          struct {
		Level  string
		Format string
	}
	Session SessionConfig
	Cache   CacheConfig
	Events  EventsConfig
	MQTT    MQTTConfig
	Webhook WebhookConfig
	Expiry  ExpiryConfig
}

// SessionConfig signed session tokens
type SessionConfig struct {
	Secret string
	TTL    time.Duration
}

// CacheConfig TTLs for the in-process caches
type CacheConfig struct {
	DefaultTTL   time.Duration
	InventoryTTL time.Duration
	SurplusTTL   time.Duration
	HospitalTTL  time.Duration
}

// EventsConfig inventory change stream (only used with redis enabled)
type EventsConfig struct {
	Stream     string
	InstanceID string
}

// MQTTConfig shortage / expiry notices
type MQTTConfig struct {
	Enabled     bool
	Broker      commoncfg.MQTTConfig
	TopicPrefix string
}

// WebhookConfig regional coordination endpoint; empty URL disables it
type WebhookConfig struct {
	URL   string
	Token string
}

// ExpiryConfig daily sweep
type ExpiryConfig struct {
	Cron     string
	WarnDays int
	Timezone string
}

// Load reads .env (if present) and the environment.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{}
	cfg.AppEnv = getEnv("APP_ENV", "production")
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	// Default to true: if the DB is unreachable the service falls back to in-memory repos.
	cfg.DBEnabled = getEnv("DB_ENABLED", "true") == "true"
	cfg.Database = commoncfg.DatabaseConfig{
		Host:            "localhost",
		Port:            5432,
		User:            "postgres",
		Password:        "postgres",
		Database:        "bloodbank",
		SSLMode:         "disable",
		MaxConns:        20,
		MaxIdle:         5,
		ConnMaxLifetime: 30 * time.Minute,
	}
	cfg.Database.LoadFromEnv("DB")

	cfg.RedisEnabled = getEnv("REDIS_ENABLED", "false") == "true"
	cfg.Redis = commoncfg.RedisConfig{Addr: "localhost:6379"}
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	cfg.Session.Secret = os.Getenv("SESSION_SECRET")
	if cfg.Session.Secret == "" && cfg.IsDevelopment() {
		cfg.Session.Secret = devSessionSecret
	}
	cfg.Session.TTL = parseDuration(getEnv("SESSION_TTL", "8h"), 8*time.Hour)

	cfg.Cache.DefaultTTL = parseDuration(getEnv("CACHE_DEFAULT_TTL", "60s"), 60*time.Second)
	cfg.Cache.InventoryTTL = parseDuration(getEnv("CACHE_INVENTORY_TTL", "60s"), 60*time.Second)
	cfg.Cache.SurplusTTL = parseDuration(getEnv("CACHE_SURPLUS_TTL", "300s"), 300*time.Second)
	cfg.Cache.HospitalTTL = parseDuration(getEnv("CACHE_HOSPITAL_TTL", "300s"), 300*time.Second)

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "bloodbank"
	}
	cfg.Events.Stream = getEnv("EVENT_STREAM", "bloodbank:inventory:events")
	cfg.Events.InstanceID = getEnv("INSTANCE_ID", hostname)

	cfg.MQTT.Enabled = getEnv("MQTT_ENABLED", "false") == "true"
	cfg.MQTT.Broker = commoncfg.MQTTConfig{
		Broker:   "tcp://localhost:1883",
		ClientID: "bloodbank",
		QoS:      1,
	}
	cfg.MQTT.Broker.LoadFromEnv("MQTT")
	cfg.MQTT.TopicPrefix = getEnv("MQTT_TOPIC_PREFIX", "bloodbank")

	cfg.Webhook.URL = getEnv("WEBHOOK_URL", "")
	cfg.Webhook.Token = getEnv("WEBHOOK_TOKEN", "")

	cfg.Expiry.Cron = getEnv("EXPIRY_CRON", "0 6 * * *")
	cfg.Expiry.WarnDays = parseInt(getEnv("EXPIRY_WARN_DAYS", "7"), 7)
	cfg.Expiry.Timezone = getEnv("TIMEZONE", "UTC")

	return cfg
}

// IsDevelopment APP_ENV=development enables the built-in session secret and demo seed.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// Location resolves Expiry.Timezone; Validate guarantees it parses.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Expiry.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Session.Secret == "" {
		errs = append(errs, errors.New("SESSION_SECRET is required outside development"))
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	for name, ttl := range map[string]time.Duration{
		"CACHE_DEFAULT_TTL":   c.Cache.DefaultTTL,
		"CACHE_INVENTORY_TTL": c.Cache.InventoryTTL,
		"CACHE_SURPLUS_TTL":   c.Cache.SurplusTTL,
		"CACHE_HOSPITAL_TTL":  c.Cache.HospitalTTL,
	} {
		if ttl <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	if c.Expiry.WarnDays <= 0 {
		errs = append(errs, errors.New("EXPIRY_WARN_DAYS must be positive"))
	}
	if _, err := time.LoadLocation(c.Expiry.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("invalid TIMEZONE %q: %w", c.Expiry.Timezone, err))
	}
	return errors.Join(errs...)
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

// parseDuration accepts Go durations ("90s", "8h") or a bare number of seconds.
func parseDuration(s string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}
