// Basketry - Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketry

package algorithms

import (
	"context"
	"runtime"

	"github.com/rs/zerolog"

	"github.com/tomtom215/basketry/internal/recommend"
	"github.com/tomtom215/basketry/internal/recommend/sparse"
)

// SimilarityConfig contains parameters for the item-item similarity engine.
type SimilarityConfig struct {
	// MinCommon is the minimum intersection size for a pair to be viable.
	// Default: 2.
	MinCommon int

	// TopN is the maximum list length kept per product.
	// Default: 10.
	TopN int

	// Workers is the worker count for the parallel sparse path.
	// Default: runtime.NumCPU().
	Workers int

	// ParallelThreshold is the product count at which the parallel sparse
	// path is selected. Default: 10000.
	ParallelThreshold int

	// DenseMinProducts / DenseMaxProducts bound the product count for the
	// dense fast path. Defaults: 1000 and 5000.
	DenseMinProducts int
	DenseMaxProducts int

	// DenseMinDensity / DenseMaxDensity bound the incidence density for the
	// dense fast path (exclusive). Defaults: 0.01 and 0.5.
	DenseMinDensity float64
	DenseMaxDensity float64
}

// withDefaults fills zero fields with production defaults.
func (c SimilarityConfig) withDefaults() SimilarityConfig {
	if c.MinCommon < 1 {
		c.MinCommon = 2
	}
	if c.TopN < 1 {
		c.TopN = 10
	}
	if c.Workers < 1 {
		c.Workers = runtime.NumCPU()
	}
	if c.ParallelThreshold < 1 {
		c.ParallelThreshold = 10000
	}
	if c.DenseMinProducts < 1 {
		c.DenseMinProducts = 1000
	}
	if c.DenseMaxProducts < 1 {
		c.DenseMaxProducts = 5000
	}
	if c.DenseMinDensity <= 0 {
		c.DenseMinDensity = 0.01
	}
	if c.DenseMaxDensity <= 0 {
		c.DenseMaxDensity = 0.5
	}
	return c
}

// SimilarityEngine computes per-product top-N Jaccard similarity lists from
// the purchase incidence. The engine is stateless between calls.
type SimilarityEngine struct {
	cfg    SimilarityConfig
	logger zerolog.Logger
}

// NewSimilarityEngine creates a similarity engine.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewSimilarityEngine(cfg SimilarityConfig, logger zerolog.Logger) *SimilarityEngine {
	return &SimilarityEngine{
		cfg:    cfg.withDefaults(),
		logger: logger.With().Str("component", "similarity").Logger(),
	}
}

// Compute produces, for every product in the incidence, an ordered list of
// at most TopN similar products with Jaccard scores, filtered to pairs whose
// buyer intersection is at least MinCommon. Products with no viable pair get
// an empty list. An empty incidence yields an empty map, not an error.
//
// The path is selected by input shape: dense matrix for mid-sized dense
// incidences, worker-parallel sparse above ParallelThreshold, sequential
// sparse otherwise. All paths produce identical results; failures of the
// optional paths fall back to the sequential one for the whole computation.
func (e *SimilarityEngine) Compute(ctx context.Context, inc *recommend.Incidence) (map[string][]recommend.ScoredProduct, error) {
	p := inc.ProductCount()
	if p == 0 {
		return map[string][]recommend.ScoredProduct{}, nil
	}

	if e.denseEligible(inc) {
		result, err := e.computeDense(ctx, inc)
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		e.logger.Warn().Err(err).Msg("dense path failed, falling back to sparse")
	}

	if p >= e.cfg.ParallelThreshold && e.cfg.Workers > 1 {
		result, err := e.computeParallel(ctx, inc)
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// Partial mixed runs would break determinism; the whole
		// computation is redone sequentially.
		e.logger.Warn().Err(err).Msg("parallel path failed, falling back to sequential")
	}

	return e.computeSequential(ctx, inc)
}

// denseEligible applies the dense fast-path heuristics.
func (e *SimilarityEngine) denseEligible(inc *recommend.Incidence) bool {
	p := inc.ProductCount()
	if p < e.cfg.DenseMinProducts || p > e.cfg.DenseMaxProducts {
		return false
	}
	d := inc.Density()
	return d > e.cfg.DenseMinDensity && d < e.cfg.DenseMaxDensity
}

// computeSequential is the reference path: upper-triangle iteration with
// merge-join intersections and symmetric heap updates.
func (e *SimilarityEngine) computeSequential(ctx context.Context, inc *recommend.Incidence) (map[string][]recommend.ScoredProduct, error) {
	products := inc.ProductIDs()
	heaps := newHeaps(len(products), e.cfg.TopN)

	for i := 0; i < len(products); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		a := inc.Set(products[i])
		if a.Len() < e.cfg.MinCommon {
			continue
		}

		for j := i + 1; j < len(products); j++ {
			b := inc.Set(products[j])
			if b.Len() < e.cfg.MinCommon {
				continue
			}

			score, ok := jaccard(a, b, e.cfg.MinCommon)
			if !ok {
				continue
			}
			heaps[i].Push(sparse.Scored{ID: products[j], Score: score})
			heaps[j].Push(sparse.Scored{ID: products[i], Score: score})
		}
	}

	return drainHeaps(products, heaps), nil
}

// jaccard computes the Jaccard score for a viable pair. ok is false when the
// intersection is below minCommon.
func jaccard(a, b sparse.IDSet, minCommon int) (score float64, ok bool) {
	inter, early := sparse.IntersectCount(a, b, minCommon)
	if early {
		return 0, false
	}
	union := a.Len() + b.Len() - inter
	return float64(inter) / float64(union), true
}

// newHeaps allocates one bounded heap per product.
func newHeaps(n, topN int) []*sparse.TopN {
	heaps := make([]*sparse.TopN, n)
	for i := range heaps {
		heaps[i] = sparse.NewTopN(topN)
	}
	return heaps
}

// drainHeaps materialises the result map; every product gets a list, empty
// when no pair survived the filters.
func drainHeaps(products []string, heaps []*sparse.TopN) map[string][]recommend.ScoredProduct {
	result := make(map[string][]recommend.ScoredProduct, len(products))
	for i, pid := range products {
		drained := heaps[i].Drain()
		list := make([]recommend.ScoredProduct, len(drained))
		for k, s := range drained {
			list[k] = recommend.ScoredProduct{ProductID: s.ID, Score: s.Score}
		}
		result[pid] = list
	}
	return result
}
