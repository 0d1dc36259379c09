// Basketry - Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketry

package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/tomtom215/basketry/internal/models"
)

// Memory implements Repository on in-process maps. It backs tests and
// single-process development runs; aggregates are recomputed per call from
// the raw orders, trading speed for obvious correctness.
type Memory struct {
	mu       sync.RWMutex
	orders   []models.Order
	products map[string]models.Product
	recs     map[recKey]models.Recommendation
}

type recKey struct {
	productID string
	version   string
	algorithm models.Algorithm
}

// NewMemory creates an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{
		products: make(map[string]models.Product),
		recs:     make(map[recKey]models.Recommendation),
	}
}

// SeedOrders appends orders to the history.
func (m *Memory) SeedOrders(orders ...models.Order) {
	m.mu.Lock()
	m.orders = append(m.orders, orders...)
	m.mu.Unlock()
}

// SeedProducts adds products to the catalog.
func (m *Memory) SeedProducts(products ...models.Product) {
	m.mu.Lock()
	for _, p := range products {
		m.products[p.ID] = p
	}
	m.mu.Unlock()
}

// ListOrders returns the full order history.
func (m *Memory) ListOrders(ctx context.Context) ([]models.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Order, len(m.orders))
	copy(out, m.orders)
	return out, nil
}

// OrderCount returns the total number of orders.
func (m *Memory) OrderCount(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.orders), nil
}

// ProductFrequencies returns per-product distinct-order counts.
func (m *Memory) ProductFrequencies(ctx context.Context) (map[string]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	freq := make(map[string]int)
	for _, o := range m.orders {
		for _, pid := range uniqueIDs(o.ProductIDs) {
			freq[pid]++
		}
	}
	return freq, nil
}

// CoOccurrencePairs returns directed pair counts over the order history.
func (m *Memory) CoOccurrencePairs(ctx context.Context) (map[string]map[string]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	co := make(map[string]map[string]int)
	for _, o := range m.orders {
		ids := uniqueIDs(o.ProductIDs)
		for _, a := range ids {
			for _, b := range ids {
				if a == b {
					continue
				}
				row, ok := co[a]
				if !ok {
					row = make(map[string]int)
					co[a] = row
				}
				row[b]++
			}
		}
	}
	return co, nil
}

// ListCatalog returns all products ordered by id.
func (m *Memory) ListCatalog(ctx context.Context) ([]models.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CatalogSize returns the number of products.
func (m *Memory) CatalogSize(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.products), nil
}

// BulkUpsert writes a record set.
func (m *Memory) BulkUpsert(ctx context.Context, recs []models.Recommendation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range recs {
		m.recs[recKey{rec.ProductID, rec.Version, rec.Algorithm}] = rec
	}
	return nil
}

// FindRecommendation returns one product's record, preferring hybrid, then
// collaborative, then association.
func (m *Memory) FindRecommendation(ctx context.Context, productID, version string) (models.Recommendation, error) {
	if err := ctx.Err(); err != nil {
		return models.Recommendation{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, algorithm := range algorithmPreference {
		if rec, ok := m.recs[recKey{productID, version, algorithm}]; ok {
			return rec, nil
		}
	}
	return models.Recommendation{}, ErrNotFound
}

// FindByVersion returns one algorithm's records under a version, ordered by
// product id.
func (m *Memory) FindByVersion(ctx context.Context, version string, algorithm models.Algorithm) ([]models.Recommendation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Recommendation
	for key, rec := range m.recs {
		if key.version == version && key.algorithm == algorithm {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

// CountByVersion returns the record count under a version.
func (m *Memory) CountByVersion(ctx context.Context, version string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for key := range m.recs {
		if key.version == version {
			n++
		}
	}
	return n, nil
}

// DeleteByVersion removes a version's records.
func (m *Memory) DeleteByVersion(ctx context.Context, version string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for key := range m.recs {
		if key.version == version {
			delete(m.recs, key)
		}
	}
	return nil
}

// uniqueIDs deduplicates an order's product ids preserving first occurrence.
func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
