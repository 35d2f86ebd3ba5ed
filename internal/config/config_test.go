package config

import (
	"testing"

	"github.com/klppl/evlogd/internal/router"
	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"EVLOGD_LOGS_PATH", "EVLOGD_INDEX_GRANULARITY", "EVLOGD_SCANNER_THREADS",
		"EVLOGD_SCANNER_BUFFER", "EVLOGD_ROUTING_STRATEGY", "EVLOGD_PUBLISHER_BUFFER",
		"EVLOGD_ADDR", "EVLOGD_AUTH_TOKEN",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, "./logs", cfg.LogsPath)
	assert.Equal(t, uint64(100000), cfg.IndexGranularity)
	assert.Equal(t, 2, cfg.Scanner.Threads)
	assert.Equal(t, router.RoundRobin, cfg.RoutingStrategy)
	assert.Equal(t, 1000, cfg.PublisherBuffer)
	assert.Equal(t, ":38580", cfg.Server.Addr)
}

func TestLoadHonorsOverrideEnvVars(t *testing.T) {
	t.Setenv("EVLOGD_LOGS_PATH", "/data/logs")
	t.Setenv("EVLOGD_INDEX_GRANULARITY", "500")
	t.Setenv("EVLOGD_ROUTING_STRATEGY", "random")

	cfg := Load()
	assert.Equal(t, "/data/logs", cfg.LogsPath)
	assert.Equal(t, uint64(500), cfg.IndexGranularity)
	assert.Equal(t, router.Random, cfg.RoutingStrategy)
}

func TestLoadFallsBackOnMalformedOverride(t *testing.T) {
	t.Setenv("EVLOGD_INDEX_GRANULARITY", "not-a-number")

	cfg := Load()
	assert.Equal(t, uint64(100000), cfg.IndexGranularity)
}

func TestCollectionConfigAppliesPerCollectionOverride(t *testing.T) {
	cfg := Load()
	threads := 8
	strategy := router.Random
	cfg.Collections["orders"] = PartialCollectionConfig{
		Scanner:         &PartialScannerConfig{Threads: &threads},
		RoutingStrategy: &strategy,
	}

	orders := cfg.CollectionConfig("orders")
	assert.Equal(t, 8, orders.ScannerThreads)
	assert.Equal(t, router.Random, orders.RoutingStrategy)
	assert.Equal(t, cfg.IndexGranularity, orders.IndexGranularity)

	other := cfg.CollectionConfig("other")
	assert.Equal(t, cfg.Scanner.Threads, other.ScannerThreads)
	assert.Equal(t, cfg.RoutingStrategy, other.RoutingStrategy)
}
