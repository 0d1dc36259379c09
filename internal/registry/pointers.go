// Basketry - Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketry

package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/basketry/internal/models"
)

// Pointers is the typed pointer layer over the raw Registry. Every access
// goes through a circuit breaker so a misbehaving backing store degrades to
// fast failures instead of piling up blocked batch jobs.
type Pointers struct {
	kv      Registry
	breaker *gobreaker.CircuitBreaker[[]byte]
	logger  zerolog.Logger
}

// PointersConfig tunes the circuit breaker around the registry.
type PointersConfig struct {
	// FailureThreshold is the consecutive-failure count that opens the
	// breaker. Default: 5.
	FailureThreshold uint32

	// OpenTimeout is how long the breaker stays open before probing.
	// Default: 30s.
	OpenTimeout time.Duration
}

func (c PointersConfig) withDefaults() PointersConfig {
	if c.FailureThreshold == 0 {
		c.FailureThreshold = 5
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = 30 * time.Second
	}
	return c
}

// NewPointers wraps a raw registry in the typed pointer API.
func NewPointers(kv Registry, cfg PointersConfig, logger zerolog.Logger) *Pointers {
	cfg = cfg.withDefaults()
	log := logger.With().Str("component", "registry").Logger()

	settings := gobreaker.Settings{
		Name:        "version-registry",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("registry breaker state change")
		},
		IsSuccessful: func(err error) bool {
			// Absent keys are an answer, not a backend failure.
			return err == nil || errors.Is(err, ErrNotFound)
		},
	}

	return &Pointers{
		kv:      kv,
		breaker: gobreaker.NewCircuitBreaker[[]byte](settings),
		logger:  log,
	}
}

func (p *Pointers) get(ctx context.Context, key string) ([]byte, error) {
	return p.breaker.Execute(func() ([]byte, error) {
		return p.kv.Get(ctx, key)
	})
}

func (p *Pointers) put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := p.breaker.Execute(func() ([]byte, error) {
		return nil, p.kv.Put(ctx, key, value, ttl)
	})
	return err
}

// pointer reads a version-tag pointer; absent pointers return "".
func (p *Pointers) pointer(ctx context.Context, key string) (string, error) {
	value, err := p.get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(value), nil
}

// Current returns the version served to readers, or "" when none is
// published yet.
func (p *Pointers) Current(ctx context.Context) (string, error) {
	return p.pointer(ctx, KeyCurrentVersion)
}

// Previous returns the rollback target, or "".
func (p *Pointers) Previous(ctx context.Context) (string, error) {
	return p.pointer(ctx, KeyPreviousVersion)
}

// Archived returns the delete candidate, or "".
func (p *Pointers) Archived(ctx context.Context) (string, error) {
	return p.pointer(ctx, KeyArchivedVersion)
}

// BatchVersion returns the shared in-flight batch tag, or "" when the TTL
// has lapsed or no batch claimed one.
func (p *Pointers) BatchVersion(ctx context.Context) (string, error) {
	return p.pointer(ctx, KeyBatchVersion)
}

// ClaimBatchVersion publishes version under the batch pointer with ttl.
func (p *Pointers) ClaimBatchVersion(ctx context.Context, version string, ttl time.Duration) error {
	return p.put(ctx, KeyBatchVersion, []byte(version), ttl)
}

// Promote rotates the pointer chain for a newly validated version:
// archived takes the old previous, previous takes the old current, current
// takes the new version. The current pointer is written last so a reader
// never observes a current version whose records are not fully upserted.
// Promoting the version that is already current is a no-op.
func (p *Pointers) Promote(ctx context.Context, version string) error {
	current, err := p.Current(ctx)
	if err != nil {
		return fmt.Errorf("read current pointer: %w", err)
	}
	// Jobs of one window share the batch version and each promotes it.
	// Rotating again for a version that is already current would demote
	// the real prior window out of the rollback chain.
	if current == version {
		p.logger.Debug().
			Str("version", version).
			Msg("version already current, rotation skipped")
		return nil
	}
	previous, err := p.Previous(ctx)
	if err != nil {
		return fmt.Errorf("read previous pointer: %w", err)
	}

	if previous != "" {
		if err := p.put(ctx, KeyArchivedVersion, []byte(previous), 0); err != nil {
			return fmt.Errorf("rotate archived pointer: %w", err)
		}
	}
	if current != "" {
		if err := p.put(ctx, KeyPreviousVersion, []byte(current), 0); err != nil {
			return fmt.Errorf("rotate previous pointer: %w", err)
		}
	}
	if err := p.put(ctx, KeyCurrentVersion, []byte(version), 0); err != nil {
		return fmt.Errorf("publish current pointer: %w", err)
	}

	p.logger.Info().
		Str("version", version).
		Str("previous", current).
		Str("archived", previous).
		Msg("version promoted")
	return nil
}

// Rollback swaps the current and previous pointers. The archived pointer is
// untouched, so two consecutive rollbacks restore the original state. It is
// an error to roll back when no previous version exists.
func (p *Pointers) Rollback(ctx context.Context) (string, error) {
	current, err := p.Current(ctx)
	if err != nil {
		return "", fmt.Errorf("read current pointer: %w", err)
	}
	previous, err := p.Previous(ctx)
	if err != nil {
		return "", fmt.Errorf("read previous pointer: %w", err)
	}
	if previous == "" {
		return "", errors.New("rollback: no previous version to restore")
	}

	if err := p.put(ctx, KeyCurrentVersion, []byte(previous), 0); err != nil {
		return "", fmt.Errorf("restore current pointer: %w", err)
	}
	if err := p.put(ctx, KeyPreviousVersion, []byte(current), 0); err != nil {
		return "", fmt.Errorf("swap previous pointer: %w", err)
	}

	p.logger.Info().
		Str("restored", previous).
		Str("demoted", current).
		Msg("version rolled back")
	return previous, nil
}

// PutMetadata stores the metadata record for a version.
func (p *Pointers) PutMetadata(ctx context.Context, meta models.VersionMetadata) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal version metadata: %w", err)
	}
	return p.put(ctx, VersionKey(meta.Version), data, 0)
}

// Metadata loads the metadata record for a version.
func (p *Pointers) Metadata(ctx context.Context, version string) (models.VersionMetadata, error) {
	var meta models.VersionMetadata

	data, err := p.get(ctx, VersionKey(version))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("unmarshal version metadata: %w", err)
	}
	return meta, nil
}

// CacheRecommendation writes one record into the hot cache with ttl.
func (p *Pointers) CacheRecommendation(ctx context.Context, rec models.Recommendation, ttl time.Duration) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal recommendation: %w", err)
	}
	return p.put(ctx, HotCacheKey(rec.ProductID, rec.Version), data, ttl)
}

// CachedRecommendation reads one record from the hot cache; ErrNotFound on
// miss or expiry.
func (p *Pointers) CachedRecommendation(ctx context.Context, productID, version string) (models.Recommendation, error) {
	var rec models.Recommendation

	data, err := p.get(ctx, HotCacheKey(productID, version))
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("unmarshal cached recommendation: %w", err)
	}
	return rec, nil
}
