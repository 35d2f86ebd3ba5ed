// Package config holds the runtime configuration for a evlogd server,
// loaded from environment variables in the teacher's getEnv/parseInt/
// parseDuration style, with per-collection override layering grounded in
// exar-core/src/config.rs's DatabaseConfig/CollectionConfig split.
package config

import (
	"os"
	"strconv"

	"github.com/klppl/evlogd/internal/collection"
	"github.com/klppl/evlogd/internal/router"
)

// ScannerConfig holds a collection's scanner thread count and control-
// channel buffer size.
type ScannerConfig struct {
	Threads int
	Buffer  int
}

// PartialScannerConfig holds scanner overrides — nil fields fall back to
// the database-wide default, mirroring exar-core's PartialScannersConfig.
type PartialScannerConfig struct {
	Threads *int
	Buffer  *int
}

// PartialCollectionConfig holds per-collection overrides applied on top of
// Config's database-wide defaults, mirroring exar-core's
// PartialCollectionConfig.
type PartialCollectionConfig struct {
	IndexGranularity *uint64
	Scanner          *PartialScannerConfig
	RoutingStrategy  *router.Strategy
	PublisherBuffer  *int
}

// ServerConfig holds the TCP front door's own settings.
type ServerConfig struct {
	Addr                 string
	AdminAddr            string
	AuthToken            string
	MaxConnections       int
	PublishRatePerSecond float64
	PublishRateBurst     int
}

// Config is the database-wide configuration, with optional per-collection
// overrides layered on top by CollectionConfig.
type Config struct {
	LogsPath         string
	IndexGranularity uint64
	Scanner          ScannerConfig
	RoutingStrategy  router.Strategy
	PublisherBuffer  int
	Server           ServerConfig
	AuditDatabaseURL string
	Collections      map[string]PartialCollectionConfig
}

// CollectionConfig resolves the effective collection.Config for name,
// applying any override registered in Collections on top of the
// database-wide defaults — the Go equivalent of
// DatabaseConfig::collection_config.
func (c *Config) CollectionConfig(name string) collection.Config {
	out := collection.Config{
		LogsPath:         c.LogsPath,
		IndexGranularity: c.IndexGranularity,
		ScannerThreads:   c.Scanner.Threads,
		ScannerBuffer:    c.Scanner.Buffer,
		RoutingStrategy:  c.RoutingStrategy,
		PublisherBuffer:  c.PublisherBuffer,
	}

	override, ok := c.Collections[name]
	if !ok {
		return out
	}
	if override.IndexGranularity != nil {
		out.IndexGranularity = *override.IndexGranularity
	}
	if override.Scanner != nil {
		if override.Scanner.Threads != nil {
			out.ScannerThreads = *override.Scanner.Threads
		}
		if override.Scanner.Buffer != nil {
			out.ScannerBuffer = *override.Scanner.Buffer
		}
	}
	if override.RoutingStrategy != nil {
		out.RoutingStrategy = *override.RoutingStrategy
	}
	if override.PublisherBuffer != nil {
		out.PublisherBuffer = *override.PublisherBuffer
	}
	return out
}

// Load reads configuration from environment variables, falling back to the
// same defaults spec.md §6 lists. It never panics — a malformed override is
// simply ignored in favor of the fallback, since (unlike the teacher's
// NOSTR_PRIVATE_KEY) no single env var here is load-bearing enough to
// justify os.Exit.
func Load() *Config {
	return &Config{
		LogsPath:         getEnv("EVLOGD_LOGS_PATH", "./logs"),
		IndexGranularity: parseUint(os.Getenv("EVLOGD_INDEX_GRANULARITY"), 100000),
		Scanner: ScannerConfig{
			Threads: parseInt(os.Getenv("EVLOGD_SCANNER_THREADS"), 2),
			Buffer:  parseInt(os.Getenv("EVLOGD_SCANNER_BUFFER"), 16),
		},
		RoutingStrategy:  router.ParseStrategy(getEnv("EVLOGD_ROUTING_STRATEGY", "round_robin")),
		PublisherBuffer:  parseInt(os.Getenv("EVLOGD_PUBLISHER_BUFFER"), 1000),
		AuditDatabaseURL: getEnv("EVLOGD_AUDIT_DATABASE_URL", "evlogd_audit.db"),
		Server: ServerConfig{
			Addr:                 getEnv("EVLOGD_ADDR", ":38580"),
			AdminAddr:            getEnv("EVLOGD_ADMIN_ADDR", ":38581"),
			AuthToken:            os.Getenv("EVLOGD_AUTH_TOKEN"),
			MaxConnections:       parseInt(os.Getenv("EVLOGD_MAX_CONNECTIONS"), 256),
			PublishRatePerSecond: parseFloat(os.Getenv("EVLOGD_PUBLISH_RATE"), 1000),
			PublishRateBurst:     parseInt(os.Getenv("EVLOGD_PUBLISH_RATE_BURST"), 100),
		},
		Collections: map[string]PartialCollectionConfig{},
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseInt(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return i
}

func parseUint(s string, fallback uint64) uint64 {
	if s == "" {
		return fallback
	}
	u, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fallback
	}
	return u
}

func parseFloat(s string, fallback float64) float64 {
	if s == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fallback
	}
	return f
}
