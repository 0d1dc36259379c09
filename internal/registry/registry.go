// Basketry - Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketry

// Package registry implements the version registry: a small KV surface for
// the publication pointers (current / previous / archived / batch), version
// metadata records, and the hot recommendation cache. Backed by BadgerDB in
// production and an in-memory map in tests.
package registry

import (
	"context"
	"errors"
	"time"
)

// Pointer and cache key layout. All keys live in one namespace; the rec:
// prefix carries control-plane pointers and metadata, recs: the hot cache.
const (
	// KeyCurrentVersion points at the version served to readers.
	KeyCurrentVersion = "rec:current_version"

	// KeyPreviousVersion points at the rollback target.
	KeyPreviousVersion = "rec:previous_version"

	// KeyArchivedVersion points at the delete candidate.
	KeyArchivedVersion = "rec:archived_version"

	// KeyBatchVersion is the short-lived tag shared by the jobs of one
	// batch window.
	KeyBatchVersion = "rec:batch_version"

	versionMetaPrefix = "rec:version:"
	hotCachePrefix    = "recs:"
)

// ErrNotFound is returned when a key is absent or its TTL has lapsed.
var ErrNotFound = errors.New("registry: key not found")

// VersionKey returns the metadata key for a version tag.
func VersionKey(version string) string {
	return versionMetaPrefix + version
}

// HotCacheKey returns the hot-cache key for one product under one version.
func HotCacheKey(productID, version string) string {
	return hotCachePrefix + productID + ":" + version
}

// Registry is the raw KV surface. Implementations must treat ttl == 0 as
// "no expiry" and report absent or expired keys as ErrNotFound.
type Registry interface {
	// Get returns the value stored under key.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores value under key with an optional TTL.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases the backing store.
	Close() error
}
