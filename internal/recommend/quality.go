// Basketry - Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketry

package recommend

import "github.com/tomtom215/basketry/internal/models"

// ComputeQuality derives the validation metrics for a recommendation set:
//
//   - avg_score: mean item score over all records,
//   - coverage: products with at least one recommendation / catalog size,
//   - diversity: distinct consequents / total items.
//
// All three are in [0, 1]. An empty set yields all zeros; coverage is zero
// when the catalog size is unknown (≤ 0).
func ComputeQuality(recs []models.Recommendation, catalogSize int) models.QualityMetrics {
	var (
		scoreSum   float64
		totalItems int
		consequent = make(map[string]struct{})
		covered    = make(map[string]struct{})
	)

	for _, rec := range recs {
		if len(rec.Items) == 0 {
			continue
		}
		covered[rec.ProductID] = struct{}{}
		for _, item := range rec.Items {
			scoreSum += item.Score
			totalItems++
			consequent[item.ProductID] = struct{}{}
		}
	}

	var q models.QualityMetrics
	if totalItems > 0 {
		q.AvgScore = scoreSum / float64(totalItems)
		q.Diversity = float64(len(consequent)) / float64(totalItems)
	}
	if catalogSize > 0 {
		q.Coverage = float64(len(covered)) / float64(catalogSize)
		if q.Coverage > 1 {
			q.Coverage = 1
		}
	}

	return q
}
