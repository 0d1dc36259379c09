// Basketry - Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketry

package algorithms

import (
	"sort"

	"github.com/tomtom215/basketry/internal/models"
	"github.com/tomtom215/basketry/internal/recommend"
)

// ResolveWeights picks the channel weighting for one source product from
// which channels produced candidates and whether the product has purchase
// history:
//
//	both channels, has history:  0.6 / 0.4
//	both channels, no history:   0.3 / 0.7
//	collaborative only:          1.0 / 0.0
//	association only:            0.0 / 1.0
//	neither:                     0.5 / 0.5
func ResolveWeights(hasCollab, hasAssoc, hasHistory bool) models.BlendWeights {
	switch {
	case hasCollab && hasAssoc:
		if hasHistory {
			return models.BlendWeights{Collaborative: 0.6, Association: 0.4}
		}
		return models.BlendWeights{Collaborative: 0.3, Association: 0.7}
	case hasCollab:
		return models.BlendWeights{Collaborative: 1, Association: 0}
	case hasAssoc:
		return models.BlendWeights{Collaborative: 0, Association: 1}
	default:
		return models.BlendWeights{Collaborative: 0.5, Association: 0.5}
	}
}

// BlenderConfig contains parameters for the hybrid blender.
type BlenderConfig struct {
	// TopN is the maximum blended list length. Default: 10.
	TopN int
}

func (c BlenderConfig) withDefaults() BlenderConfig {
	if c.TopN < 1 {
		c.TopN = 10
	}
	return c
}

// Blender merges a product's collaborative and association candidate lists
// into one weighted hybrid list.
type Blender struct {
	cfg BlenderConfig
}

// NewBlender creates a blender.
func NewBlender(cfg BlenderConfig) *Blender {
	return &Blender{cfg: cfg.withDefaults()}
}

// Blend unions the two candidate lists and scores every consequent as
// w_c·collab + w_a·assoc, an absent channel contributing zero to the sum but
// recorded as absent (nil) in the breakdown. The result is ordered by
// descending blended score, ties by descending product id, truncated to TopN.
func (b *Blender) Blend(collab, assoc []recommend.ScoredProduct, weights models.BlendWeights) []models.RecommendedItem {
	type channels struct {
		collab *float64
		assoc  *float64
	}
	merged := make(map[string]channels, len(collab)+len(assoc))
	for _, sp := range collab {
		score := sp.Score
		c := merged[sp.ProductID]
		c.collab = &score
		merged[sp.ProductID] = c
	}
	for _, sp := range assoc {
		score := sp.Score
		c := merged[sp.ProductID]
		c.assoc = &score
		merged[sp.ProductID] = c
	}

	items := make([]models.RecommendedItem, 0, len(merged))
	for pid, ch := range merged {
		blended := 0.0
		if ch.collab != nil {
			blended += weights.Collaborative * *ch.collab
		}
		if ch.assoc != nil {
			blended += weights.Association * *ch.assoc
		}
		items = append(items, models.RecommendedItem{
			ProductID: pid,
			Score:     blended,
			Breakdown: models.ScoreBreakdown{
				Collaborative: ch.collab,
				Association:   ch.assoc,
				BlendedScore:  blended,
				Weights:       weights,
			},
		})
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].ProductID > items[j].ProductID
	})
	if len(items) > b.cfg.TopN {
		items = items[:b.cfg.TopN]
	}
	return items
}

// BoostNew multiplies the scores of newly-introduced products by factor,
// clamping at 1. The list order is deliberately left untouched so boosted
// newcomers gain score weight without reshuffling an already-published
// ranking. factor below 1 is ignored.
func BoostNew(items []models.RecommendedItem, newIDs map[string]bool, factor float64) {
	if factor < 1 {
		return
	}
	for i := range items {
		if !newIDs[items[i].ProductID] {
			continue
		}
		boosted := items[i].Score * factor
		if boosted > 1 {
			boosted = 1
		}
		items[i].Score = boosted
		items[i].Breakdown.BlendedScore = boosted
	}
}

// PureCollaborative wraps a collaborative score in a single-channel
// breakdown for persisting the collaborative record.
func PureCollaborative(sp recommend.ScoredProduct) models.RecommendedItem {
	score := sp.Score
	return models.RecommendedItem{
		ProductID: sp.ProductID,
		Score:     score,
		Breakdown: models.ScoreBreakdown{
			Collaborative: &score,
			BlendedScore:  score,
			Weights:       models.BlendWeights{Collaborative: 1, Association: 0},
		},
	}
}

// PureAssociation wraps a rule confidence in a single-channel breakdown for
// persisting the association record.
func PureAssociation(sp recommend.ScoredProduct) models.RecommendedItem {
	score := sp.Score
	return models.RecommendedItem{
		ProductID: sp.ProductID,
		Score:     score,
		Breakdown: models.ScoreBreakdown{
			Association:  &score,
			BlendedScore: score,
			Weights:      models.BlendWeights{Collaborative: 0, Association: 1},
		},
	}
}
