// Basketry - Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketry

// Package features turns dynamic product attributes into dense numeric
// vectors. Numeric attributes pass through, booleans map to 0/1, text is
// ignored; gaps are filled with the per-attribute mean over the catalog.
package features

import (
	"sort"

	"github.com/tomtom215/basketry/internal/models"
)

// Matrix is the extraction result: one vector per product over a fixed
// attribute order.
type Matrix struct {
	// Attributes is the ascending list of coercible attribute names; it
	// fixes the column order of every vector.
	Attributes []string

	// Vectors maps product id to its dense feature vector, aligned with
	// Attributes.
	Vectors map[string][]float64

	// Means holds the per-attribute mean used for imputation.
	Means []float64
}

// Extract builds the feature matrix for a catalog. Attributes that never
// coerce to a number anywhere in the catalog are dropped entirely; products
// missing a coercible attribute get the attribute's catalog mean. An empty
// catalog yields an empty matrix.
func Extract(products []models.Product) Matrix {
	type column struct {
		sum   float64
		count int
	}
	columns := make(map[string]*column)

	for _, p := range products {
		for name, attr := range p.Attributes {
			v, ok := attr.Float64()
			if !ok {
				continue
			}
			col, exists := columns[name]
			if !exists {
				col = &column{}
				columns[name] = col
			}
			col.sum += v
			col.count++
		}
	}

	names := make([]string, 0, len(columns))
	for name := range columns {
		names = append(names, name)
	}
	sort.Strings(names)

	means := make([]float64, len(names))
	for i, name := range names {
		col := columns[name]
		means[i] = col.sum / float64(col.count)
	}

	vectors := make(map[string][]float64, len(products))
	for _, p := range products {
		vec := make([]float64, len(names))
		for i, name := range names {
			if attr, ok := p.Attributes[name]; ok {
				if v, coerced := attr.Float64(); coerced {
					vec[i] = v
					continue
				}
			}
			vec[i] = means[i]
		}
		vectors[p.ID] = vec
	}

	return Matrix{Attributes: names, Vectors: vectors, Means: means}
}
