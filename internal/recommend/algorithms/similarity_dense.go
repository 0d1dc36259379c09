// Basketry - Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketry

package algorithms

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/tomtom215/basketry/internal/recommend"
	"github.com/tomtom215/basketry/internal/recommend/sparse"
)

// computeDense computes all pairwise intersection counts at once as the Gram
// matrix G = X·Xᵀ of the binary product-buyer incidence matrix, then applies
// the same filters, scoring and ranking as the sparse paths. The Gram entry
// G[i][j] is exactly |U(i) ∩ U(j)|, so results match the sparse paths
// bit-for-bit. Any failure, including a panic inside the matrix kernel, is
// returned as an error and the caller falls back to sparse.
func (e *SimilarityEngine) computeDense(ctx context.Context, inc *recommend.Incidence) (result map[string][]recommend.ScoredProduct, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("dense path panic: %v", r)
		}
	}()

	products := inc.ProductIDs()
	n := len(products)
	m := inc.BuyerCount()
	if m == 0 {
		return drainHeaps(products, newHeaps(n, e.cfg.TopN)), nil
	}

	x := mat.NewDense(n, m, nil)
	sizes := make([]int, n)
	for i, pid := range products {
		set := inc.Set(pid)
		sizes[i] = set.Len()
		for _, buyer := range set {
			x.Set(i, int(buyer), 1)
		}
	}

	var g mat.Dense
	g.Mul(x, x.T())

	heaps := newHeaps(n, e.cfg.TopN)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if sizes[i] < e.cfg.MinCommon {
			continue
		}
		for j := i + 1; j < n; j++ {
			if sizes[j] < e.cfg.MinCommon {
				continue
			}

			// Entries are small integer counts; round to guard
			// against float accumulation in the multiply.
			inter := int(g.At(i, j) + 0.5)
			if inter < e.cfg.MinCommon {
				continue
			}
			union := sizes[i] + sizes[j] - inter
			score := float64(inter) / float64(union)
			heaps[i].Push(sparse.Scored{ID: products[j], Score: score})
			heaps[j].Push(sparse.Scored{ID: products[i], Score: score})
		}
	}

	return drainHeaps(products, heaps), nil
}
