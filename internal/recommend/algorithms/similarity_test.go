// Basketry - Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketry

package algorithms

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/rs/zerolog"

	"github.com/tomtom215/basketry/internal/models"
	"github.com/tomtom215/basketry/internal/recommend"
)

// incidenceFromBaskets builds an incidence where basket i belongs to a
// distinct synthetic buyer.
func incidenceFromBaskets(baskets ...[]string) *recommend.Incidence {
	orders := make([]models.Order, len(baskets))
	for i, products := range baskets {
		orders[i] = models.Order{
			ID:           fmt.Sprintf("o%d", i),
			ContragentID: fmt.Sprintf("u%d", i),
			ProductIDs:   products,
		}
	}
	return recommend.BuildIncidence(orders)
}

func newTestEngine(cfg SimilarityConfig) *SimilarityEngine {
	return NewSimilarityEngine(cfg, zerolog.Nop())
}

func TestSimilarityTrivialPair(t *testing.T) {
	t.Parallel()

	// Two buyers, each purchasing both products: identical buyer sets.
	inc := incidenceFromBaskets(
		[]string{"P1", "P2"},
		[]string{"P1", "P2"},
	)
	engine := newTestEngine(SimilarityConfig{MinCommon: 1, TopN: 5})

	result, err := engine.Compute(context.Background(), inc)
	if err != nil {
		t.Fatalf("Compute() error: %v", err)
	}

	for _, pid := range []string{"P1", "P2"} {
		list := result[pid]
		if len(list) != 1 {
			t.Fatalf("result[%s] = %v, want one entry", pid, list)
		}
		if list[0].Score != 1.0 {
			t.Errorf("result[%s] score = %f, want 1.0", pid, list[0].Score)
		}
	}
	if result["P1"][0].ProductID != "P2" || result["P2"][0].ProductID != "P1" {
		t.Errorf("unexpected pairing: %v", result)
	}
}

func TestSimilarityMinCommonFilter(t *testing.T) {
	t.Parallel()

	inc := incidenceFromBaskets([]string{"P1", "P2"})
	engine := newTestEngine(SimilarityConfig{MinCommon: 2, TopN: 5})

	result, err := engine.Compute(context.Background(), inc)
	if err != nil {
		t.Fatalf("Compute() error: %v", err)
	}

	// Both products are present with empty lists: one common buyer does
	// not meet MinCommon=2.
	if len(result) != 2 {
		t.Fatalf("result has %d products, want 2", len(result))
	}
	for pid, list := range result {
		if len(list) != 0 {
			t.Errorf("result[%s] = %v, want empty", pid, list)
		}
	}
}

func TestSimilarityJaccardArithmetic(t *testing.T) {
	t.Parallel()

	// U(P1)={u0,u1,u2}, U(P2)={u0,u1,u3}: intersection 2, union 4.
	inc := incidenceFromBaskets(
		[]string{"P1", "P2"},
		[]string{"P1", "P2"},
		[]string{"P1"},
		[]string{"P2"},
	)
	engine := newTestEngine(SimilarityConfig{MinCommon: 1, TopN: 5})

	result, err := engine.Compute(context.Background(), inc)
	if err != nil {
		t.Fatalf("Compute() error: %v", err)
	}
	if got := result["P1"][0].Score; got != 0.5 {
		t.Errorf("J(P1,P2) = %f, want 0.5", got)
	}
}

func TestSimilaritySymmetryAndBounds(t *testing.T) {
	t.Parallel()

	inc := incidenceFromBaskets(
		[]string{"A", "B", "C"},
		[]string{"A", "B"},
		[]string{"B", "C", "D"},
		[]string{"A", "D"},
		[]string{"C", "D"},
		[]string{"A", "B", "D"},
	)
	engine := newTestEngine(SimilarityConfig{MinCommon: 1, TopN: 10})

	result, err := engine.Compute(context.Background(), inc)
	if err != nil {
		t.Fatalf("Compute() error: %v", err)
	}

	scores := func(pid string) map[string]float64 {
		m := make(map[string]float64)
		for _, sp := range result[pid] {
			m[sp.ProductID] = sp.Score
		}
		return m
	}

	for p, list := range result {
		for _, sp := range list {
			if sp.Score < 0 || sp.Score > 1 {
				t.Errorf("J(%s,%s) = %f out of [0,1]", p, sp.ProductID, sp.Score)
			}
			if sp.ProductID == p {
				t.Errorf("product %s recommends itself", p)
			}
			back, ok := scores(sp.ProductID)[p]
			if !ok {
				t.Errorf("J(%s,%s) present but J(%s,%s) missing", p, sp.ProductID, sp.ProductID, p)
				continue
			}
			if back != sp.Score {
				t.Errorf("J(%s,%s)=%f but J(%s,%s)=%f", p, sp.ProductID, sp.Score, sp.ProductID, p, back)
			}
		}
	}
}

func TestSimilarityOrdering(t *testing.T) {
	t.Parallel()

	inc := incidenceFromBaskets(
		[]string{"A", "B", "C", "D"},
		[]string{"A", "B", "C"},
		[]string{"A", "B"},
		[]string{"A", "D"},
	)
	engine := newTestEngine(SimilarityConfig{MinCommon: 1, TopN: 10})

	result, err := engine.Compute(context.Background(), inc)
	if err != nil {
		t.Fatalf("Compute() error: %v", err)
	}

	for p, list := range result {
		for i := 1; i < len(list); i++ {
			if list[i].Score > list[i-1].Score {
				t.Errorf("result[%s] not sorted: %v", p, list)
			}
			if list[i].Score == list[i-1].Score && list[i].ProductID > list[i-1].ProductID {
				t.Errorf("result[%s] tie not broken by descending id: %v", p, list)
			}
		}
	}
}

func TestSimilarityEmptyIncidence(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(SimilarityConfig{})
	result, err := engine.Compute(context.Background(), recommend.BuildIncidence(nil))
	if err != nil {
		t.Fatalf("Compute() error: %v", err)
	}
	if len(result) != 0 {
		t.Errorf("result = %v, want empty map", result)
	}
}

func TestSimilarityCancellation(t *testing.T) {
	t.Parallel()

	inc := incidenceFromBaskets(
		[]string{"A", "B"},
		[]string{"B", "C"},
	)
	engine := newTestEngine(SimilarityConfig{MinCommon: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := engine.Compute(ctx, inc); err == nil {
		t.Fatal("Compute() with cancelled context succeeded, want error")
	}
}

// fixtureIncidence produces a mid-sized pseudo-random incidence with a
// deterministic congruential basket generator.
func fixtureIncidence(products, orders, basketSize int) *recommend.Incidence {
	baskets := make([][]string, orders)
	state := uint64(42)
	next := func() uint64 {
		state = state*6364136223846793005 + 1442695040888963407
		return state >> 33
	}
	for i := range baskets {
		seen := make(map[string]bool, basketSize)
		for len(seen) < basketSize {
			seen[fmt.Sprintf("P%04d", next()%uint64(products))] = true
		}
		for pid := range seen {
			baskets[i] = append(baskets[i], pid)
		}
	}
	return incidenceFromBaskets(baskets...)
}

func TestSimilarityParallelMatchesSequential(t *testing.T) {
	t.Parallel()

	inc := fixtureIncidence(60, 200, 4)
	engine := newTestEngine(SimilarityConfig{MinCommon: 2, TopN: 5, Workers: 4})

	seq, err := engine.computeSequential(context.Background(), inc)
	if err != nil {
		t.Fatalf("sequential error: %v", err)
	}
	par, err := engine.computeParallel(context.Background(), inc)
	if err != nil {
		t.Fatalf("parallel error: %v", err)
	}

	assertSameResults(t, seq, par)
}

func TestSimilarityDenseMatchesSparse(t *testing.T) {
	t.Parallel()

	inc := fixtureIncidence(60, 200, 4)
	engine := newTestEngine(SimilarityConfig{MinCommon: 2, TopN: 5})

	seq, err := engine.computeSequential(context.Background(), inc)
	if err != nil {
		t.Fatalf("sequential error: %v", err)
	}
	dense, err := engine.computeDense(context.Background(), inc)
	if err != nil {
		t.Fatalf("dense error: %v", err)
	}

	assertSameResults(t, seq, dense)
}

func assertSameResults(t *testing.T, want, got map[string][]recommend.ScoredProduct) {
	t.Helper()

	if len(want) != len(got) {
		t.Fatalf("result sizes differ: %d vs %d", len(want), len(got))
	}
	for pid, wantList := range want {
		gotList, ok := got[pid]
		if !ok {
			t.Errorf("product %s missing", pid)
			continue
		}
		if len(wantList) != len(gotList) {
			t.Errorf("result[%s] lengths differ: %v vs %v", pid, wantList, gotList)
			continue
		}
		for i := range wantList {
			if wantList[i].ProductID != gotList[i].ProductID {
				t.Errorf("result[%s][%d] id %s vs %s", pid, i, wantList[i].ProductID, gotList[i].ProductID)
			}
			if math.Abs(wantList[i].Score-gotList[i].Score) > 1e-12 {
				t.Errorf("result[%s][%d] score %f vs %f", pid, i, wantList[i].Score, gotList[i].Score)
			}
		}
	}
}

func TestSimilarityConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg := SimilarityConfig{}.withDefaults()
	if cfg.MinCommon != 2 || cfg.TopN != 10 {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.ParallelThreshold != 10000 {
		t.Errorf("ParallelThreshold = %d, want 10000", cfg.ParallelThreshold)
	}
	if cfg.DenseMinProducts != 1000 || cfg.DenseMaxProducts != 5000 {
		t.Errorf("dense bounds = %d..%d", cfg.DenseMinProducts, cfg.DenseMaxProducts)
	}
}
