// Basketry - Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketry

package algorithms

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/basketry/internal/recommend"
	"github.com/tomtom215/basketry/internal/recommend/sparse"
)

// pair is one viable (source, candidate) score discovered by a worker.
// Workers only ever pair a source with higher-indexed candidates, so each
// unordered pair is reported exactly once.
type pair struct {
	src   int
	dst   int
	score float64
}

// computeParallel splits the upper-triangle iteration across Workers
// goroutines by contiguous source-index chunks. Each worker reports every
// viable pair it discovers; the driver alone owns the heaps and applies each
// pair symmetrically, so the merged result is identical to the sequential
// path. Any worker error fails the whole run; the caller retries
// sequentially rather than mixing partial results.
func (e *SimilarityEngine) computeParallel(ctx context.Context, inc *recommend.Incidence) (map[string][]recommend.ScoredProduct, error) {
	products := inc.ProductIDs()
	n := len(products)

	workers := e.cfg.Workers
	if workers > n {
		workers = n
	}

	sets := make([]sparse.IDSet, n)
	for i, pid := range products {
		sets[i] = inc.Set(pid)
	}

	chunks := make([][]pair, workers)
	chunkSize := (n + workers - 1) / workers

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		lo := w * chunkSize
		hi := lo + chunkSize
		if hi > n {
			hi = n
		}
		if lo >= hi {
			continue
		}

		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("similarity worker panic: %v", r)
				}
			}()
			out, err := e.scanChunk(gctx, sets, lo, hi)
			if err != nil {
				return err
			}
			chunks[w] = out
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Heaps are filled in chunk order, but TopN tie-breaking makes the
	// outcome independent of push order anyway.
	heaps := newHeaps(n, e.cfg.TopN)
	for _, chunk := range chunks {
		for _, p := range chunk {
			heaps[p.src].Push(sparse.Scored{ID: products[p.dst], Score: p.score})
			heaps[p.dst].Push(sparse.Scored{ID: products[p.src], Score: p.score})
		}
	}

	return drainHeaps(products, heaps), nil
}

// scanChunk runs the inner pair loop for source indices [lo, hi).
func (e *SimilarityEngine) scanChunk(ctx context.Context, sets []sparse.IDSet, lo, hi int) ([]pair, error) {
	var out []pair
	for i := lo; i < hi; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		a := sets[i]
		if a.Len() < e.cfg.MinCommon {
			continue
		}

		for j := i + 1; j < len(sets); j++ {
			b := sets[j]
			if b.Len() < e.cfg.MinCommon {
				continue
			}
			score, ok := jaccard(a, b, e.cfg.MinCommon)
			if !ok {
				continue
			}
			out = append(out, pair{src: i, dst: j, score: score})
		}
	}
	return out, nil
}
