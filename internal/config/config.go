package config // package config loads application configuration from environment variables

import (
	"log"
	"os"
	"time"
)

// Config holds the runtime configuration of the reservation engine.
// Each field corresponds to an environment variable. Addresses and
// tuning knobs have defaults so a bare development environment only
// needs APP_ENV; the database URL decides which storage backend the
// engine runs on (sqlite:// path or mysql:// DSN).
type Config struct {
	Env          string        // application environment (dev/test/prod)
	SOAAddr      string        // TCP address for the SOA frame listener
	HTTPAddr     string        // address for the incident REST + health listener
	DatabaseURL  string        // storage backend selector, e.g. sqlite://reservas.db
	ReadTimeout  time.Duration // per-frame read deadline on SOA connections
	WriteTimeout time.Duration // per-frame write deadline on SOA connections
	CacheEnabled bool          // calendar response caching in Redis
	CacheTTL     time.Duration // lifetime of cached calendar responses
	CachePrefix  string        // namespace for cache keys
}

// Load reads the engine configuration. APP_ENV is required and its
// absence halts the program; everything else falls back to defaults
// that match the platform's historical port layout (SOA services on
// 5005, the incident HTTP surface on 5006).
func Load() Config {
	return Config{
		Env:          must("APP_ENV"),
		SOAAddr:      getenv("SOA_ADDR", ":5005"),
		HTTPAddr:     getenv("HTTP_ADDR", ":5006"),
		DatabaseURL:  getenv("DATABASE_URL", "sqlite://reservas.db"),
		ReadTimeout:  parseDur(getenv("SOA_READ_TIMEOUT", "5m")),
		WriteTimeout: parseDur(getenv("SOA_WRITE_TIMEOUT", "10s")),
		CacheEnabled: envBool("CACHE_ENABLED", true),
		CacheTTL:     parseDur(getenv("CACHE_TTL", "30s")),
		CachePrefix:  getenv("CACHE_PREFIX", "calendario"),
	}
}

// BusConfig holds the configuration of the service bus binary.
type BusConfig struct {
	Env         string        // application environment
	Addr        string        // TCP address the bus listens on
	Routes      string        // tag=host:port routing table, comma separated
	DialTimeout time.Duration // per-forward backend dial deadline
}

// LoadBus reads the bus configuration. By default every engine tag
// routes to the local reservation engine.
func LoadBus() BusConfig {
	return BusConfig{
		Env:         must("APP_ENV"),
		Addr:        getenv("BUS_ADDR", ":5000"),
		Routes:      getenv("BUS_ROUTES", "book=localhost:5005,avail=localhost:5005,incid=localhost:5005"),
		DialTimeout: parseDur(getenv("BUS_DIAL_TIMEOUT", "5s")),
	}
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// getenv returns the variable's value or a default when unset.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// parseDur parses a duration string, falling back to one second on
// malformed input rather than failing startup over a tuning knob.
func parseDur(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return time.Second
	}
	return d
}

func envBool(key string, def bool) bool {
	switch os.Getenv(key) {
	case "1", "true", "TRUE", "True", "yes", "on":
		return true
	case "0", "false", "FALSE", "False", "no", "off":
		return false
	}
	return def
}
