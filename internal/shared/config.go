package shared

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

type Config struct {
	AppEnv         string        `yaml:"app_env"`
	HTTPAddr       string        `yaml:"http_addr"`
	MetricsAddr    string        `yaml:"metrics_addr"`
	RoomAPIURL     string        `yaml:"room_api_url"`
	ReviewAPIURL   string        `yaml:"review_api_url"`
	RedisAddr      string        `yaml:"redis_addr"`
	RedisDB        int           `yaml:"redis_db"`
	RedisPass      string        `yaml:"redis_password"`
	RoomCacheTTL   time.Duration `yaml:"-"`
	RequestTimeout time.Duration `yaml:"-"`
	UpstreamRPS    int           `yaml:"upstream_rps"`
	SessionTTL     time.Duration `yaml:"-"`
	GoogleMapsKey  string        `yaml:"google_maps_api_key"`
	CORSOrigins    []string      `yaml:"cors_allowed_origins"`

	// seconds, as written in the YAML file
	RoomCacheTTLSeconds   int `yaml:"room_cache_ttl_seconds"`
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds"`
	SessionTTLSeconds     int `yaml:"session_ttl_seconds"`
}

func defaults() Config {
	return Config{
		AppEnv:                "prod",
		HTTPAddr:              ":8080",
		MetricsAddr:           ":9100",
		RoomAPIURL:            "https://room-api-dev.stellerom.no",
		ReviewAPIURL:          "https://review-api-dev.stellerom.no",
		UpstreamRPS:           20,
		RoomCacheTTLSeconds:   3600,
		RequestTimeoutSeconds: 10,
		SessionTTLSeconds:     86400,
	}
}

// Load builds the config from defaults, then the YAML file named by
// CONFIG_FILE, then the environment. A .env file in the working directory is
// loaded first; it never overrides variables that are already set.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	c := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
			log.Warn().Str("key", k).Str("value", v).Msg("ignoring non-numeric config value")
		}
		return def
	}

	c.AppEnv = env("APP_ENV", c.AppEnv)
	c.HTTPAddr = env("HTTP_ADDR", c.HTTPAddr)
	c.MetricsAddr = env("METRICS_ADDR", c.MetricsAddr)
	c.RoomAPIURL = env("ROOM_API_URL", c.RoomAPIURL)
	c.ReviewAPIURL = env("REVIEW_API_URL", c.ReviewAPIURL)
	c.RedisAddr = env("REDIS_ADDR", c.RedisAddr)
	c.RedisPass = env("REDIS_PASSWORD", c.RedisPass)
	c.RedisDB = atoi("REDIS_DB", c.RedisDB)
	c.UpstreamRPS = atoi("UPSTREAM_RPS", c.UpstreamRPS)
	c.GoogleMapsKey = env("GOOGLE_MAPS_API_KEY", c.GoogleMapsKey)
	c.RoomCacheTTLSeconds = atoi("ROOM_CACHE_TTL_SECONDS", c.RoomCacheTTLSeconds)
	c.RequestTimeoutSeconds = atoi("REQUEST_TIMEOUT_SECONDS", c.RequestTimeoutSeconds)
	c.SessionTTLSeconds = atoi("SESSION_TTL_SECONDS", c.SessionTTLSeconds)
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		c.CORSOrigins = splitList(v)
	}

	c.RoomCacheTTL = time.Duration(c.RoomCacheTTLSeconds) * time.Second
	c.RequestTimeout = time.Duration(c.RequestTimeoutSeconds) * time.Second
	c.SessionTTL = time.Duration(c.SessionTTLSeconds) * time.Second

	if c.GoogleMapsKey == "" {
		log.Info().Msg("GOOGLE_MAPS_API_KEY is empty, name suggestions disabled")
	}
	return c, nil
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
