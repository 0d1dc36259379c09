// Basketry - Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketry

package models

import (
	"fmt"
	"time"
)

// Algorithm identifies which family produced a recommendation record.
type Algorithm string

const (
	// AlgorithmCollaborative is item-item Jaccard similarity from purchase
	// co-occurrence.
	AlgorithmCollaborative Algorithm = "collaborative"

	// AlgorithmAssociation is support/confidence/lift association rules.
	AlgorithmAssociation Algorithm = "association"

	// AlgorithmHybrid is the weighted blend of the two.
	AlgorithmHybrid Algorithm = "hybrid"
)

// Valid reports whether a is one of the known algorithm tags.
func (a Algorithm) Valid() bool {
	switch a {
	case AlgorithmCollaborative, AlgorithmAssociation, AlgorithmHybrid:
		return true
	default:
		return false
	}
}

// BlendWeights is the per-channel weighting used to produce a blended score.
// The two weights always sum to 1.
type BlendWeights struct {
	// Collaborative is the weight of the collaborative channel.
	Collaborative float64 `json:"collaborative"`

	// Association is the weight of the association channel.
	Association float64 `json:"association"`
}

// ScoreBreakdown records how a blended score was produced. The per-channel
// raw scores are pointers: a nil channel means the channel had no entry for
// this consequent, which is distinct from a zero score.
type ScoreBreakdown struct {
	// Collaborative is the raw collaborative score, if that channel
	// contributed.
	Collaborative *float64 `json:"collaborative,omitempty"`

	// Association is the raw association score, if that channel contributed.
	Association *float64 `json:"association,omitempty"`

	// BlendedScore is the final weighted score.
	BlendedScore float64 `json:"blended_score"`

	// Weights is the weighting in effect when the score was blended.
	Weights BlendWeights `json:"weights"`
}

// RecommendedItem is one entry of a recommendation list.
type RecommendedItem struct {
	// ProductID is the recommended (consequent) product.
	ProductID string `json:"product_id"`

	// Score is the item's score under the record's algorithm, in [0, 1].
	Score float64 `json:"score"`

	// Breakdown explains how the score was produced.
	Breakdown ScoreBreakdown `json:"breakdown"`
}

// Recommendation is the persisted record for one source product under one
// version. Items are ordered by non-increasing score.
type Recommendation struct {
	// ProductID is the source product.
	ProductID string `json:"product_id"`

	// Algorithm tags the family that produced the record.
	Algorithm Algorithm `json:"algorithm"`

	// Items is the ordered recommendation list, at most TopN entries.
	Items []RecommendedItem `json:"items"`

	// Version is the publication tag the record belongs to.
	Version string `json:"version"`

	// BatchID identifies the batch execution that produced the record.
	BatchID string `json:"batch_id"`

	// CreatedAt is when the record was computed.
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the record's structural invariants: no self-recommendation,
// scores within [0, 1] and non-increasing, weights summing to 1.
func (r *Recommendation) Validate() error {
	if r.ProductID == "" {
		return fmt.Errorf("recommendation has empty product id")
	}
	if !r.Algorithm.Valid() {
		return fmt.Errorf("recommendation %s: unknown algorithm %q", r.ProductID, r.Algorithm)
	}

	prev := 1.0
	for i, item := range r.Items {
		if item.ProductID == r.ProductID {
			return fmt.Errorf("recommendation %s: item %d recommends the source product", r.ProductID, i)
		}
		if item.Score < 0 || item.Score > 1 {
			return fmt.Errorf("recommendation %s: item %d score %f out of [0,1]", r.ProductID, i, item.Score)
		}
		if item.Score > prev {
			return fmt.Errorf("recommendation %s: item %d score %f exceeds predecessor %f", r.ProductID, i, item.Score, prev)
		}
		prev = item.Score

		sum := item.Breakdown.Weights.Collaborative + item.Breakdown.Weights.Association
		if diff := sum - 1.0; diff > 1e-9 || diff < -1e-9 {
			return fmt.Errorf("recommendation %s: item %d weights sum to %f", r.ProductID, i, sum)
		}
	}

	return nil
}
