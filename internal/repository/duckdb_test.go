// Basketry - Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketry

package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/basketry/internal/models"
)

func newTestDuckDB(t *testing.T) *DuckDB {
	t.Helper()

	db, err := NewDuckDB("", zerolog.Nop())
	if err != nil {
		t.Fatalf("NewDuckDB() error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestDuckDBOrderAggregates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := newTestDuckDB(t)

	err := db.InsertOrders(ctx, []models.Order{
		{ID: "o1", ContragentID: "u1", ProductIDs: []string{"P1", "P2"}},
		{ID: "o2", ContragentID: "u2", ProductIDs: []string{"P1", "P2", "P3"}},
		{ID: "o3", ContragentID: "u1", ProductIDs: []string{"P1"}},
	})
	if err != nil {
		t.Fatalf("InsertOrders() error: %v", err)
	}

	n, err := db.OrderCount(ctx)
	if err != nil {
		t.Fatalf("OrderCount() error: %v", err)
	}
	if n != 3 {
		t.Errorf("OrderCount() = %d, want 3", n)
	}

	orders, err := db.ListOrders(ctx)
	if err != nil {
		t.Fatalf("ListOrders() error: %v", err)
	}
	if len(orders) != 3 {
		t.Fatalf("ListOrders() returned %d orders, want 3", len(orders))
	}
	if orders[0].ID != "o1" || len(orders[0].ProductIDs) != 2 {
		t.Errorf("orders[0] = %+v", orders[0])
	}

	freq, err := db.ProductFrequencies(ctx)
	if err != nil {
		t.Fatalf("ProductFrequencies() error: %v", err)
	}
	if freq["P1"] != 3 || freq["P2"] != 2 || freq["P3"] != 1 {
		t.Errorf("frequencies = %v", freq)
	}

	co, err := db.CoOccurrencePairs(ctx)
	if err != nil {
		t.Fatalf("CoOccurrencePairs() error: %v", err)
	}
	if co["P1"]["P2"] != 2 || co["P2"]["P1"] != 2 || co["P3"]["P1"] != 1 {
		t.Errorf("cooccurrence = %v", co)
	}
}

func TestDuckDBCatalog(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := newTestDuckDB(t)

	products := []models.Product{
		{ID: "P1", Category: "tools", Attributes: map[string]models.AttributeValue{
			"weight": models.NumericAttribute(2.5),
		}},
		{ID: "P2", Category: "paint"},
	}
	if err := db.UpsertProducts(ctx, products); err != nil {
		t.Fatalf("UpsertProducts() error: %v", err)
	}

	size, err := db.CatalogSize(ctx)
	if err != nil {
		t.Fatalf("CatalogSize() error: %v", err)
	}
	if size != 2 {
		t.Errorf("CatalogSize() = %d, want 2", size)
	}

	got, err := db.ListCatalog(ctx)
	if err != nil {
		t.Fatalf("ListCatalog() error: %v", err)
	}
	if len(got) != 2 || got[0].ID != "P1" || got[0].Category != "tools" {
		t.Errorf("ListCatalog() = %+v", got)
	}

	// Re-upserting replaces the row.
	products[0].Category = "hardware"
	if err := db.UpsertProducts(ctx, products[:1]); err != nil {
		t.Fatalf("UpsertProducts() update error: %v", err)
	}
	got, err = db.ListCatalog(ctx)
	if err != nil {
		t.Fatalf("ListCatalog() error: %v", err)
	}
	if got[0].Category != "hardware" {
		t.Errorf("updated category = %s, want hardware", got[0].Category)
	}
}

func TestDuckDBRecommendationLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := newTestDuckDB(t)

	score := 0.5
	rec := models.Recommendation{
		ProductID: "P1",
		Algorithm: models.AlgorithmHybrid,
		Version:   "v1",
		BatchID:   "b1",
		CreatedAt: time.Now().UTC(),
		Items: []models.RecommendedItem{{
			ProductID: "P2",
			Score:     score,
			Breakdown: models.ScoreBreakdown{
				Collaborative: &score,
				BlendedScore:  score,
				Weights:       models.BlendWeights{Collaborative: 1},
			},
		}},
	}

	if err := db.BulkUpsert(ctx, []models.Recommendation{rec}); err != nil {
		t.Fatalf("BulkUpsert() error: %v", err)
	}

	got, err := db.FindRecommendation(ctx, "P1", "v1")
	if err != nil {
		t.Fatalf("FindRecommendation() error: %v", err)
	}
	if got.Algorithm != models.AlgorithmHybrid || len(got.Items) != 1 {
		t.Fatalf("record = %+v", got)
	}
	if got.Items[0].Breakdown.Collaborative == nil || *got.Items[0].Breakdown.Collaborative != 0.5 {
		t.Errorf("breakdown lost in round trip: %+v", got.Items[0].Breakdown)
	}

	// Upserting the same key replaces the items.
	rec.Items = nil
	rec.BatchID = "b2"
	if err := db.BulkUpsert(ctx, []models.Recommendation{rec}); err != nil {
		t.Fatalf("BulkUpsert() replace error: %v", err)
	}
	got, err = db.FindRecommendation(ctx, "P1", "v1")
	if err != nil {
		t.Fatalf("FindRecommendation() error: %v", err)
	}
	if got.BatchID != "b2" || len(got.Items) != 0 {
		t.Errorf("replaced record = %+v", got)
	}

	n, err := db.CountByVersion(ctx, "v1")
	if err != nil {
		t.Fatalf("CountByVersion() error: %v", err)
	}
	if n != 1 {
		t.Errorf("CountByVersion() = %d, want 1", n)
	}

	if err := db.DeleteByVersion(ctx, "v1"); err != nil {
		t.Fatalf("DeleteByVersion() error: %v", err)
	}
	if _, err := db.FindRecommendation(ctx, "P1", "v1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("deleted record error = %v, want ErrNotFound", err)
	}
}

func TestDuckDBAlgorithmPreference(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := newTestDuckDB(t)

	err := db.BulkUpsert(ctx, []models.Recommendation{
		{ProductID: "P1", Algorithm: models.AlgorithmCollaborative, Version: "v1", BatchID: "b1"},
		{ProductID: "P1", Algorithm: models.AlgorithmAssociation, Version: "v1", BatchID: "b1"},
	})
	if err != nil {
		t.Fatalf("BulkUpsert() error: %v", err)
	}

	got, err := db.FindRecommendation(ctx, "P1", "v1")
	if err != nil {
		t.Fatalf("FindRecommendation() error: %v", err)
	}
	if got.Algorithm != models.AlgorithmCollaborative {
		t.Errorf("algorithm = %s, want collaborative fallback", got.Algorithm)
	}
}
