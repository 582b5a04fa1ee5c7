package global

import (
	"fmt"
	"os"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Conf global config
var Conf Config

// Global rate limiter
var RateLimiter *redis_rate.Limiter

type Config struct {
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	Scheme     string           `yaml:"scheme"`
	Mode       string           `yaml:"mode"`
	Keywheel   KeywheelConfig   `yaml:"keywheel"`
	Storage    StorageConfig    `yaml:"storage"`
	CouchDB    CouchDBConfig    `yaml:"couchdb"`
	Redis      RedisConfig      `yaml:"redis"`
	Relay      RelayConfig      `yaml:"relay"`
	Prometheus PrometheusConfig `yaml:"prometheus"`
	Queue      QueueConfig      `yaml:"queue"`
	Cors       CorsConfig       `yaml:"cors"`
}

type KeywheelConfig struct {
	RotationIntervalDays int    `yaml:"rotationIntervalDays"` // key rotation due after this many days (default 7)
	WarningHours         int    `yaml:"warningHours"`         // due-soon lead time in hours (default 24)
	SweepPeriod          string `yaml:"sweepPeriod"`          // sweep timer period, cron "@every" syntax (default "1h")
	VaultService         string `yaml:"vaultService"`         // OS keyring service name for the key vault
	VaultType            string `yaml:"vaultType"`            // keyring | memory
}

// RotationInterval as duration, falling back to the 7 day default
func (k KeywheelConfig) RotationInterval() time.Duration {
	days := k.RotationIntervalDays
	if days <= 0 {
		days = 7
	}
	return time.Duration(days) * 24 * time.Hour
}

// WarningInterval as duration, falling back to the 1 day default
func (k KeywheelConfig) WarningInterval() time.Duration {
	hours := k.WarningHours
	if hours <= 0 {
		hours = 24
	}
	return time.Duration(hours) * time.Hour
}

// StorageConfig selects the blob repository backend for rotation state
type StorageConfig struct {
	Type string `yaml:"type"` // couchdb | redis | file
	Path string `yaml:"path"` // directory for the file backend
}

type CouchDBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Scheme   string `yaml:"scheme"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	Username string `yaml:"username"`
}

// RelayConfig configures peer packet delivery
type RelayConfig struct {
	DirectoryURL   string `yaml:"directoryUrl"`   // peer endpoint directory base url
	TimeoutSeconds int    `yaml:"timeoutSeconds"` // delivery timeout (default 10)
}

type PrometheusConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type QueueConfig struct {
	Concurrency int `yaml:"concurrency"`
}

type CorsConfig struct {
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

// LoadConfig reads the yaml configuration file into Conf. Secrets may be kept
// out of the yaml file: a .env file (if present) and process environment
// override the redis and couchdb passwords.
func LoadConfig(path string, conf *Config) error {
	_ = godotenv.Load() // .env is optional

	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(content, conf); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if v := os.Getenv("COUCHDB_PASSWORD"); v != "" {
		conf.CouchDB.Password = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		conf.Redis.Password = v
	}
	return nil
}
