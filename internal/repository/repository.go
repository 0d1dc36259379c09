// Basketry - Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketry

// Package repository provides the persistence facade for the pipeline: the
// order/catalog read side the batch jobs aggregate over, and the versioned
// recommendation write side the orchestrator publishes into. The production
// implementation is DuckDB; an in-memory implementation backs tests.
package repository

import (
	"context"
	"errors"

	"github.com/tomtom215/basketry/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("repository: not found")

// Repository is the persistence surface the orchestrator and API consume.
type Repository interface {
	OrderReader
	CatalogReader
	RecommendationStore
}

// OrderReader exposes the order-history aggregates the algorithms consume.
type OrderReader interface {
	// ListOrders returns the full order history.
	ListOrders(ctx context.Context) ([]models.Order, error)

	// OrderCount returns the total number of orders.
	OrderCount(ctx context.Context) (int, error)

	// ProductFrequencies returns, per product, the number of distinct
	// orders containing it. This map is the authoritative f(p) for rule
	// confidence.
	ProductFrequencies(ctx context.Context) (map[string]int, error)

	// CoOccurrencePairs returns the directed pair counts co[a][b]: the
	// number of orders containing both a and b, for a != b.
	CoOccurrencePairs(ctx context.Context) (map[string]map[string]int, error)
}

// CatalogReader exposes the product catalog.
type CatalogReader interface {
	// ListCatalog returns all products.
	ListCatalog(ctx context.Context) ([]models.Product, error)

	// CatalogSize returns the number of products in the catalog.
	CatalogSize(ctx context.Context) (int, error)
}

// RecommendationStore is the versioned recommendation write/read side.
// Records are keyed by (product, version, algorithm).
type RecommendationStore interface {
	// BulkUpsert writes a record set; existing (product, version,
	// algorithm) rows are replaced.
	BulkUpsert(ctx context.Context, recs []models.Recommendation) error

	// FindRecommendation returns the record for one product under one
	// version, preferring hybrid, then collaborative, then association.
	FindRecommendation(ctx context.Context, productID, version string) (models.Recommendation, error)

	// FindByVersion returns all records of one algorithm under one
	// version, ordered by product id.
	FindByVersion(ctx context.Context, version string, algorithm models.Algorithm) ([]models.Recommendation, error)

	// CountByVersion returns the number of records under a version,
	// across algorithms.
	CountByVersion(ctx context.Context, version string) (int, error)

	// DeleteByVersion removes every record under a version.
	DeleteByVersion(ctx context.Context, version string) error
}

// algorithmPreference is the lookup order used when a caller asks for a
// product's record without naming an algorithm.
var algorithmPreference = []models.Algorithm{
	models.AlgorithmHybrid,
	models.AlgorithmCollaborative,
	models.AlgorithmAssociation,
}
