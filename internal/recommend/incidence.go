// Basketry - Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketry

package recommend

import (
	"sort"

	"github.com/tomtom215/basketry/internal/models"
	"github.com/tomtom215/basketry/internal/recommend/sparse"
)

// Incidence is the product→buyer bipartite incidence derived from orders:
// for each product, the set of buyers that ever purchased it. Buyer ids are
// interned to dense int32 indices so the per-product sets merge-join cheaply.
//
// Incidence is derived per batch and never persisted.
type Incidence struct {
	products []string
	sets     map[string]sparse.IDSet
	buyers   int
}

// BuildIncidence derives the incidence from an order history. Orders with no
// products contribute nothing. The returned product list is ascending, which
// fixes the iteration order for the similarity engine.
func BuildIncidence(orders []models.Order) *Incidence {
	buyerIndex := make(map[string]int32)
	raw := make(map[string][]int32)

	for _, order := range orders {
		if len(order.ProductIDs) == 0 {
			continue
		}

		buyer, ok := buyerIndex[order.ContragentID]
		if !ok {
			buyer = int32(len(buyerIndex))
			buyerIndex[order.ContragentID] = buyer
		}

		for _, pid := range order.ProductIDs {
			raw[pid] = append(raw[pid], buyer)
		}
	}

	inc := &Incidence{
		products: make([]string, 0, len(raw)),
		sets:     make(map[string]sparse.IDSet, len(raw)),
		buyers:   len(buyerIndex),
	}
	for pid, buyers := range raw {
		inc.products = append(inc.products, pid)
		inc.sets[pid] = sparse.NewIDSet(buyers)
	}
	sort.Strings(inc.products)

	return inc
}

// ProductIDs returns the products in ascending order. Callers must not
// mutate the returned slice.
func (i *Incidence) ProductIDs() []string {
	return i.products
}

// Set returns the buyer set for a product; nil when the product is unknown.
func (i *Incidence) Set(pid string) sparse.IDSet {
	return i.sets[pid]
}

// ProductCount returns the number of distinct products.
func (i *Incidence) ProductCount() int {
	return len(i.products)
}

// BuyerCount returns the number of distinct buyers.
func (i *Incidence) BuyerCount() int {
	return i.buyers
}

// Density is Σ|U(p)| / (P·M): the fill ratio of the binary incidence matrix.
// Zero when there are no products or buyers.
func (i *Incidence) Density() float64 {
	if len(i.products) == 0 || i.buyers == 0 {
		return 0
	}

	total := 0
	for _, s := range i.sets {
		total += s.Len()
	}
	return float64(total) / (float64(len(i.products)) * float64(i.buyers))
}
