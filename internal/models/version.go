// Basketry - Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketry

package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// VersionStatus is the lifecycle state of a published version.
type VersionStatus string

const (
	// VersionActive is the version read traffic resolves against.
	VersionActive VersionStatus = "active"

	// VersionPrevious is the immediately preceding version, kept for rollback.
	VersionPrevious VersionStatus = "previous"

	// VersionArchived is the version displaced from previous, kept for audit.
	VersionArchived VersionStatus = "archived"
)

// QualityMetrics summarise a version's recommendation set. All values are
// in [0, 1]; an empty set yields all zeros.
type QualityMetrics struct {
	// AvgScore is the mean item score across all records.
	AvgScore float64 `json:"avg_score"`

	// Coverage is the share of catalog products that have recommendations.
	Coverage float64 `json:"coverage"`

	// Diversity is the ratio of distinct consequents to total items.
	Diversity float64 `json:"diversity"`
}

// VersionMetadata is the per-version record kept in the version registry.
type VersionMetadata struct {
	// Version is the opaque version tag.
	Version string `json:"version"`

	// CreatedAt is when the version was allocated.
	CreatedAt time.Time `json:"created_at"`

	// Status is the current lifecycle state.
	Status VersionStatus `json:"status"`

	// Quality holds the validation metrics computed before promotion.
	Quality QualityMetrics `json:"quality_metrics"`
}

// NewVersionTag allocates a fresh version tag. Tags sort by creation time
// (nanosecond prefix) and are unique per process (uuid suffix).
func NewVersionTag() string {
	return fmt.Sprintf("v%d-%s", time.Now().UnixNano(), uuid.NewString()[:8])
}

// NewBatchID allocates an identifier for one batch execution.
func NewBatchID() string {
	return uuid.NewString()
}
