// Basketry - Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketry

package recommend

import (
	"math"
	"testing"

	"github.com/tomtom215/basketry/internal/models"
)

func rec(pid string, scores ...float64) models.Recommendation {
	items := make([]models.RecommendedItem, len(scores))
	for i, s := range scores {
		items[i] = models.RecommendedItem{ProductID: pid + "-c" + string(rune('0'+i)), Score: s}
	}
	return models.Recommendation{ProductID: pid, Algorithm: models.AlgorithmHybrid, Items: items}
}

func TestComputeQuality(t *testing.T) {
	t.Parallel()

	recs := []models.Recommendation{
		rec("P1", 0.8, 0.4),
		rec("P2", 0.6),
		{ProductID: "P3", Algorithm: models.AlgorithmHybrid}, // empty list, not covered
	}

	q := ComputeQuality(recs, 5)

	if want := (0.8 + 0.4 + 0.6) / 3; math.Abs(q.AvgScore-want) > 1e-12 {
		t.Errorf("AvgScore = %f, want %f", q.AvgScore, want)
	}
	// P1 and P2 have items, catalog has 5 products.
	if q.Coverage != 0.4 {
		t.Errorf("Coverage = %f, want 0.4", q.Coverage)
	}
	// Three items with three distinct consequents.
	if q.Diversity != 1.0 {
		t.Errorf("Diversity = %f, want 1.0", q.Diversity)
	}
}

func TestComputeQualityDuplicateConsequents(t *testing.T) {
	t.Parallel()

	shared := models.RecommendedItem{ProductID: "X", Score: 0.5}
	recs := []models.Recommendation{
		{ProductID: "P1", Algorithm: models.AlgorithmHybrid, Items: []models.RecommendedItem{shared}},
		{ProductID: "P2", Algorithm: models.AlgorithmHybrid, Items: []models.RecommendedItem{shared}},
	}

	q := ComputeQuality(recs, 2)
	if q.Diversity != 0.5 {
		t.Errorf("Diversity = %f, want 0.5", q.Diversity)
	}
	if q.Coverage != 1.0 {
		t.Errorf("Coverage = %f, want 1.0", q.Coverage)
	}
}

func TestComputeQualityEmpty(t *testing.T) {
	t.Parallel()

	q := ComputeQuality(nil, 10)
	if q != (models.QualityMetrics{}) {
		t.Errorf("empty set metrics = %+v, want zeros", q)
	}
}

func TestComputeQualityUnknownCatalog(t *testing.T) {
	t.Parallel()

	q := ComputeQuality([]models.Recommendation{rec("P1", 0.9)}, 0)
	if q.Coverage != 0 {
		t.Errorf("Coverage = %f, want 0 for unknown catalog size", q.Coverage)
	}
	if q.AvgScore != 0.9 {
		t.Errorf("AvgScore = %f, want 0.9", q.AvgScore)
	}
}
