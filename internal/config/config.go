// Basketry - Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketry

// Package config loads the service configuration with layered sources:
// built-in defaults, an optional YAML file, then environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Registry  RegistryConfig  `koanf:"registry"`
	NATS      NATSConfig      `koanf:"nats"`
	Batch     BatchConfig     `koanf:"batch"`
	Recommend RecommendConfig `koanf:"recommend"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig tunes the HTTP surface.
type ServerConfig struct {
	Host            string        `koanf:"host" validate:"required"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout         time.Duration `koanf:"timeout" validate:"min=1s"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"min=1"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window" validate:"min=1s"`
}

// DatabaseConfig locates the DuckDB repository.
type DatabaseConfig struct {
	// Path is the database file; empty opens an in-memory database.
	Path string `koanf:"path"`
}

// RegistryConfig locates the BadgerDB version registry.
type RegistryConfig struct {
	// Path is the Badger directory; empty opens an in-memory instance.
	Path string `koanf:"path"`

	// BreakerFailures is the consecutive-failure count that opens the
	// registry circuit breaker.
	BreakerFailures uint32 `koanf:"breaker_failures" validate:"min=1"`

	// BreakerTimeout is how long the breaker stays open.
	BreakerTimeout time.Duration `koanf:"breaker_timeout" validate:"min=1s"`
}

// NATSConfig tunes the trigger transport. When disabled, triggers flow over
// an in-process channel and only the HTTP surface can start batches.
type NATSConfig struct {
	Enabled      bool   `koanf:"enabled"`
	URL          string `koanf:"url" validate:"required_if=Enabled true"`
	DurableName  string `koanf:"durable_name"`
	QueueGroup   string `koanf:"queue_group"`
	RetryCount   int    `koanf:"retry_count" validate:"min=0"`
	RetryInitial time.Duration `koanf:"retry_initial"`
}

// BatchConfig tunes the orchestrator.
type BatchConfig struct {
	BatchVersionTTL time.Duration `koanf:"batch_version_ttl" validate:"min=1m"`
	HotCacheTTL     time.Duration `koanf:"hot_cache_ttl" validate:"min=1m"`
	WarmCacheLimit  int           `koanf:"warm_cache_limit" validate:"min=1"`
	PromoteEmpty    bool          `koanf:"promote_empty"`

	// ScheduleInterval runs the full job chain periodically; 0 disables
	// the scheduler and batches only run on triggers.
	ScheduleInterval time.Duration `koanf:"schedule_interval"`
}

// RecommendConfig tunes the algorithms.
type RecommendConfig struct {
	MinCommonUsers    int     `koanf:"min_common_users" validate:"min=1"`
	TopN              int     `koanf:"top_n" validate:"min=1,max=100"`
	MinSupport        float64 `koanf:"min_support" validate:"gt=0,lte=1"`
	MinConfidence     float64 `koanf:"min_confidence" validate:"gt=0,lte=1"`
	ParallelWorkers   int     `koanf:"parallel_workers" validate:"min=0"`
	ParallelThreshold int     `koanf:"parallel_threshold" validate:"min=1"`
	DenseMinProducts  int     `koanf:"dense_min_products" validate:"min=1"`
	DenseMaxProducts  int     `koanf:"dense_max_products" validate:"min=1"`
	DenseMinDensity   float64 `koanf:"dense_min_density" validate:"gt=0,lt=1"`
	DenseMaxDensity   float64 `koanf:"dense_max_density" validate:"gt=0,lt=1"`
}

// LoggingConfig tunes zerolog.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

// defaultConfig returns the built-in defaults, overridden by file and env.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			Timeout:         30 * time.Second,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Database: DatabaseConfig{
			Path: "/data/basketry.duckdb",
		},
		Registry: RegistryConfig{
			Path:            "/data/registry",
			BreakerFailures: 5,
			BreakerTimeout:  30 * time.Second,
		},
		NATS: NATSConfig{
			Enabled:      false,
			URL:          "nats://127.0.0.1:4222",
			DurableName:  "basketry-batch",
			QueueGroup:   "batch-runners",
			RetryCount:   3,
			RetryInitial: 100 * time.Millisecond,
		},
		Batch: BatchConfig{
			BatchVersionTTL:  time.Hour,
			HotCacheTTL:      4 * time.Hour,
			WarmCacheLimit:   100,
			PromoteEmpty:     false,
			ScheduleInterval: 0,
		},
		Recommend: RecommendConfig{
			MinCommonUsers:    2,
			TopN:              10,
			MinSupport:        0.001,
			MinConfidence:     0.05,
			ParallelWorkers:   0, // 0 = runtime.NumCPU()
			ParallelThreshold: 10000,
			DenseMinProducts:  1000,
			DenseMaxProducts:  5000,
			DenseMinDensity:   0.01,
			DenseMaxDensity:   0.5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks the loaded configuration.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}
	if c.Recommend.DenseMinProducts > c.Recommend.DenseMaxProducts {
		return fmt.Errorf("dense_min_products %d exceeds dense_max_products %d",
			c.Recommend.DenseMinProducts, c.Recommend.DenseMaxProducts)
	}
	if c.Recommend.DenseMinDensity >= c.Recommend.DenseMaxDensity {
		return fmt.Errorf("dense_min_density %f must be below dense_max_density %f",
			c.Recommend.DenseMinDensity, c.Recommend.DenseMaxDensity)
	}
	return nil
}
