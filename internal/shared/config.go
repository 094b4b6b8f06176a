// Package shared loads process configuration: defaults, then an optional YAML
// file, then environment variables.
package shared

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog/log"
)

const ConfigPathEnvVar = "CONFIG_PATH"

var DefaultConfigPaths = []string{"config.yaml", "config.yml"}

const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreMySQL  = "mysql"
)

var (
	ErrInvalidStore     = errors.New("approvals.store must be memory, redis or mysql")
	ErrMissingMySQLDSN  = errors.New("mysql.dsn is required when approvals.store is mysql")
	ErrInvalidRateLimit = errors.New("http.rate_limit_requests and http.rate_limit_window must be positive")
	ErrInvalidTimeout   = errors.New("timeouts must be positive")
	ErrInvalidWorkers   = errors.New("ingest.workers must be positive")
	ErrInvalidCacheTTL  = errors.New("cache.ttl must be positive when the cache is enabled")
)

type Config struct {
	AppEnv   string         `koanf:"app_env"`
	LogLevel string         `koanf:"log_level"`
	HTTP     HTTPConfig     `koanf:"http"`
	Hostaway HostawayConfig `koanf:"hostaway"`
	Places   PlacesConfig   `koanf:"places"`
	Provider ProviderConfig `koanf:"provider"`
	Cache    CacheConfig    `koanf:"cache"`
	Redis    RedisConfig    `koanf:"redis"`
	MySQL    MySQLConfig    `koanf:"mysql"`
	Store    StoreConfig    `koanf:"approvals"`
	Ingest   IngestConfig   `koanf:"ingest"`
}

type HTTPConfig struct {
	Addr              string        `koanf:"addr"`
	MetricsAddr       string        `koanf:"metrics_addr"`
	RequestTimeout    time.Duration `koanf:"request_timeout"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
}

type HostawayConfig struct {
	BaseURL   string `koanf:"base_url"`
	AccountID string `koanf:"account_id"`
	APIKey    string `koanf:"api_key"`
	RPS       int    `koanf:"rps"`
}

type PlacesConfig struct {
	BaseURL string `koanf:"base_url"`
	APIKey  string `koanf:"api_key"`
	PlaceID string `koanf:"place_id"`
	RPS     int    `koanf:"rps"`
}

type ProviderConfig struct {
	Timeout         time.Duration `koanf:"timeout"`
	BreakerFailures int           `koanf:"breaker_failures"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout"`
}

// CacheConfig controls the Redis review snapshot cache.
type CacheConfig struct {
	Enabled bool          `koanf:"enabled"`
	TTL     time.Duration `koanf:"ttl"`
}

type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

type MySQLConfig struct {
	DSN string `koanf:"dsn"`
}

type StoreConfig struct {
	Kind string `koanf:"store"`
}

type IngestConfig struct {
	Workers int `koanf:"workers"`
}

func defaultConfig() Config {
	return Config{
		AppEnv:   "prod",
		LogLevel: "info",
		HTTP: HTTPConfig{
			Addr:              ":5000",
			MetricsAddr:       ":9100",
			RequestTimeout:    30 * time.Second,
			CORSOrigins:       []string{"*"},
			RateLimitRequests: 100,
			RateLimitWindow:   time.Minute,
		},
		Hostaway: HostawayConfig{BaseURL: "https://api.hostaway.com/v1", RPS: 5},
		Places:   PlacesConfig{BaseURL: "https://maps.googleapis.com/maps/api/place", RPS: 5},
		Provider: ProviderConfig{Timeout: 10 * time.Second, BreakerFailures: 5, BreakerTimeout: 30 * time.Second},
		Cache:    CacheConfig{TTL: 5 * time.Minute},
		Redis:    RedisConfig{Addr: "localhost:6379"},
		Store:    StoreConfig{Kind: StoreMemory},
		Ingest:   IngestConfig{Workers: 8},
	}
}

// Load layers defaults, the config file (CONFIG_PATH or ./config.yaml) and env vars.
func Load() (Config, error) {
	k := koanf.New(".")
	defaults := defaultConfig()

	if err := k.Load(structs.Provider(&defaults, "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}
	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}
	if err := processSliceFields(k); err != nil {
		return Config{}, err
	}

	var c Config
	if err := k.Unmarshal("", &c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	// PORT=5000 style values
	if c.HTTP.Addr != "" && !strings.Contains(c.HTTP.Addr, ":") {
		c.HTTP.Addr = ":" + c.HTTP.Addr
	}
	if err := c.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	if c.Hostaway.APIKey == "" {
		log.Warn().Msg("HOSTAWAY_API_KEY is empty, serving bundled reviews")
	}
	return c, nil
}

func (c Config) Validate() error {
	switch c.Store.Kind {
	case StoreMemory, StoreRedis:
	case StoreMySQL:
		if c.MySQL.DSN == "" {
			return ErrMissingMySQLDSN
		}
	default:
		return ErrInvalidStore
	}
	if c.HTTP.RateLimitRequests <= 0 || c.HTTP.RateLimitWindow <= 0 {
		return ErrInvalidRateLimit
	}
	if c.HTTP.RequestTimeout <= 0 || c.Provider.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Cache.Enabled && c.Cache.TTL <= 0 {
		return ErrInvalidCacheTTL
	}
	if c.Ingest.Workers <= 0 {
		return ErrInvalidWorkers
	}
	return nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

var sliceConfigPaths = []string{"http.cors_origins"}

// processSliceFields splits comma-separated env values for slice fields.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if err := k.Set(path, out); err != nil {
			return fmt.Errorf("set %s: %w", path, err)
		}
	}
	return nil
}

var envMappings = map[string]string{
	"app_env":   "app_env",
	"log_level": "log_level",

	"http_addr":            "http.addr",
	"port":                 "http.addr",
	"metrics_addr":         "http.metrics_addr",
	"http_request_timeout": "http.request_timeout",
	"cors_origins":         "http.cors_origins",
	"rate_limit_requests":  "http.rate_limit_requests",
	"rate_limit_window":    "http.rate_limit_window",

	"hostaway_base_url":   "hostaway.base_url",
	"hostaway_account_id": "hostaway.account_id",
	"hostaway_api_key":    "hostaway.api_key",
	"hostaway_rps":        "hostaway.rps",

	"google_places_base_url": "places.base_url",
	"google_places_api_key":  "places.api_key",
	"google_place_id":        "places.place_id",
	"google_places_rps":      "places.rps",

	"provider_timeout":          "provider.timeout",
	"provider_breaker_failures": "provider.breaker_failures",
	"provider_breaker_timeout":  "provider.breaker_timeout",

	"cache_enabled":  "cache.enabled",
	"cache_ttl":      "cache.ttl",
	"redis_addr":     "redis.addr",
	"redis_password": "redis.password",
	"redis_db":       "redis.db",
	"mysql_dsn":      "mysql.dsn",

	"approvals_store": "approvals.store",
	"ingest_workers":  "ingest.workers",
}

// envTransformFunc maps known env names to config paths and drops everything else.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
