// Basketry - Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketry

package batch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/basketry/internal/models"
	"github.com/tomtom215/basketry/internal/recommend/algorithms"
	"github.com/tomtom215/basketry/internal/registry"
	"github.com/tomtom215/basketry/internal/repository"
)

type fixture struct {
	repo     *repository.Memory
	pointers *registry.Pointers
	orch     *Orchestrator
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()

	repo := repository.NewMemory()
	pointers := registry.NewPointers(registry.NewMemoryRegistry(), registry.PointersConfig{}, zerolog.Nop())
	orch := NewOrchestrator(
		repo,
		pointers,
		algorithms.NewSimilarityEngine(algorithms.SimilarityConfig{MinCommon: 1, TopN: 5}, zerolog.Nop()),
		algorithms.NewMiner(algorithms.AssociationConfig{MinSupport: 0.001, MinConfidence: 0.001, TopN: 5}, zerolog.Nop()),
		algorithms.NewBlender(algorithms.BlenderConfig{TopN: 5}),
		cfg,
		zerolog.Nop(),
	)
	return &fixture{repo: repo, pointers: pointers, orch: orch}
}

func (f *fixture) seed() {
	f.repo.SeedProducts(
		models.Product{ID: "P1"},
		models.Product{ID: "P2"},
		models.Product{ID: "P3"},
	)
	f.repo.SeedOrders(
		models.Order{ID: "o1", ContragentID: "u1", ProductIDs: []string{"P1", "P2"}},
		models.Order{ID: "o2", ContragentID: "u2", ProductIDs: []string{"P1", "P2"}},
		models.Order{ID: "o3", ContragentID: "u3", ProductIDs: []string{"P1", "P3"}},
	)
}

func TestCollaborativeJobEndToEnd(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, Config{})
	f.seed()

	if err := f.orch.Run(ctx, JobCollaborative); err != nil {
		t.Fatalf("Run(collaborative) error: %v", err)
	}

	version, err := f.pointers.Current(ctx)
	if err != nil {
		t.Fatalf("Current() error: %v", err)
	}
	if version == "" {
		t.Fatal("no version promoted")
	}

	rec, err := f.repo.FindRecommendation(ctx, "P1", version)
	if err != nil {
		t.Fatalf("FindRecommendation() error: %v", err)
	}
	if rec.Algorithm != models.AlgorithmCollaborative {
		t.Errorf("algorithm = %s", rec.Algorithm)
	}
	if len(rec.Items) == 0 {
		t.Fatal("P1 has no recommendations")
	}
	if rec.Items[0].ProductID != "P2" {
		t.Errorf("top item for P1 = %s, want P2", rec.Items[0].ProductID)
	}
	if rec.Items[0].Breakdown.Collaborative == nil {
		t.Error("collaborative channel missing from breakdown")
	}

	// Promotion wrote the metadata record.
	meta, err := f.pointers.Metadata(ctx, version)
	if err != nil {
		t.Fatalf("Metadata() error: %v", err)
	}
	if meta.Status != models.VersionActive {
		t.Errorf("metadata status = %s, want active", meta.Status)
	}
	if meta.Quality.AvgScore <= 0 {
		t.Errorf("quality avg_score = %f, want positive", meta.Quality.AvgScore)
	}

	// Warm-up put the record into the hot cache.
	if _, err := f.pointers.CachedRecommendation(ctx, "P1", version); err != nil {
		t.Errorf("hot cache miss after warm-up: %v", err)
	}
}

func TestAssociationJobEndToEnd(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, Config{})
	f.seed()

	if err := f.orch.Run(ctx, JobAssociation); err != nil {
		t.Fatalf("Run(association) error: %v", err)
	}

	version, err := f.pointers.Current(ctx)
	if err != nil {
		t.Fatalf("Current() error: %v", err)
	}

	rec, err := f.repo.FindRecommendation(ctx, "P1", version)
	if err != nil {
		t.Fatalf("FindRecommendation() error: %v", err)
	}
	if rec.Algorithm != models.AlgorithmAssociation {
		t.Errorf("algorithm = %s", rec.Algorithm)
	}
	// P1 co-occurs with P2 twice and P3 once; confidence orders them.
	if len(rec.Items) != 2 || rec.Items[0].ProductID != "P2" {
		t.Errorf("P1 items = %+v", rec.Items)
	}
	if rec.Items[0].Breakdown.Association == nil || rec.Items[0].Breakdown.Collaborative != nil {
		t.Errorf("breakdown = %+v", rec.Items[0].Breakdown)
	}
}

func TestHybridJobRequiresBothInputs(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, Config{})
	f.seed()

	err := f.orch.Run(ctx, JobHybrid)
	if !errors.Is(err, ErrHybridPrecondition) {
		t.Fatalf("Run(hybrid) error = %v, want ErrHybridPrecondition", err)
	}

	// Only collaborative present still fails.
	if err := f.orch.Run(ctx, JobCollaborative); err != nil {
		t.Fatalf("Run(collaborative) error: %v", err)
	}
	if err := f.orch.Run(ctx, JobHybrid); !errors.Is(err, ErrHybridPrecondition) {
		t.Fatalf("Run(hybrid) error = %v, want ErrHybridPrecondition", err)
	}
}

func TestHybridJobBlendsSharedVersion(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, Config{})
	f.seed()

	for _, job := range []JobType{JobCollaborative, JobAssociation, JobHybrid} {
		if err := f.orch.Run(ctx, job); err != nil {
			t.Fatalf("Run(%s) error: %v", job, err)
		}
	}

	// All three jobs ran inside the batch TTL, so they share one version.
	version, err := f.pointers.BatchVersion(ctx)
	if err != nil {
		t.Fatalf("BatchVersion() error: %v", err)
	}
	current, err := f.pointers.Current(ctx)
	if err != nil {
		t.Fatalf("Current() error: %v", err)
	}
	if version != current {
		t.Errorf("batch version %q != current %q", version, current)
	}

	hybrids, err := f.repo.FindByVersion(ctx, version, models.AlgorithmHybrid)
	if err != nil {
		t.Fatalf("FindByVersion() error: %v", err)
	}
	if len(hybrids) == 0 {
		t.Fatal("no hybrid records")
	}

	rec, err := f.repo.FindRecommendation(ctx, "P1", version)
	if err != nil {
		t.Fatalf("FindRecommendation() error: %v", err)
	}
	// Hybrid records win the algorithm preference.
	if rec.Algorithm != models.AlgorithmHybrid {
		t.Errorf("algorithm = %s, want hybrid", rec.Algorithm)
	}
	// Batch mode resolves both-channel weights without user history.
	for _, item := range rec.Items {
		w := item.Breakdown.Weights
		if w.Collaborative+w.Association != 1 {
			t.Errorf("weights %+v do not sum to 1", w)
		}
		if item.Breakdown.Collaborative != nil && item.Breakdown.Association != nil &&
			w != (models.BlendWeights{Collaborative: 0.3, Association: 0.7}) {
			t.Errorf("both-channel weights = %+v, want (0.3, 0.7)", w)
		}
	}

	// The window promoted exactly once: the association job's repeat
	// promotion of the shared version must not rotate the chain, and the
	// hybrid job never promotes.
	previous, err := f.pointers.Previous(ctx)
	if err != nil {
		t.Fatalf("Previous() error: %v", err)
	}
	if previous != "" {
		t.Errorf("previous = %q, want empty (first window has nothing to demote)", previous)
	}
}

func TestSharedVersionWindowRollback(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, Config{})
	f.seed()

	// First window establishes the pre-window state.
	if err := f.orch.Run(ctx, JobCollaborative); err != nil {
		t.Fatalf("Run(collaborative) error: %v", err)
	}
	preWindow, err := f.pointers.Current(ctx)
	if err != nil {
		t.Fatalf("Current() error: %v", err)
	}
	if err := f.pointers.ClaimBatchVersion(ctx, "", time.Millisecond); err != nil {
		t.Fatalf("ClaimBatchVersion() error: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	// Next window: both algorithm jobs run under one batch claim and
	// each promotes the shared version.
	if err := f.orch.Run(ctx, JobCollaborative); err != nil {
		t.Fatalf("Run(collaborative) error: %v", err)
	}
	if err := f.orch.Run(ctx, JobAssociation); err != nil {
		t.Fatalf("Run(association) error: %v", err)
	}

	current, err := f.pointers.Current(ctx)
	if err != nil {
		t.Fatalf("Current() error: %v", err)
	}
	previous, err := f.pointers.Previous(ctx)
	if err != nil {
		t.Fatalf("Previous() error: %v", err)
	}
	if current == preWindow {
		t.Fatalf("current = %q, window did not promote a new version", current)
	}
	if previous == current {
		t.Fatalf("previous = current = %q, pre-window version lost", current)
	}
	if previous != preWindow {
		t.Errorf("previous = %q, want %q", previous, preWindow)
	}

	restored, err := f.orch.Rollback(ctx)
	if err != nil {
		t.Fatalf("Rollback() error: %v", err)
	}
	if restored != preWindow {
		t.Errorf("Rollback() restored %q, want %q", restored, preWindow)
	}
}

func TestEmptyInputSkipsPromotion(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, Config{})
	// No orders seeded: degenerate input.

	if err := f.orch.Run(ctx, JobCollaborative); err != nil {
		t.Fatalf("Run(collaborative) error: %v", err)
	}

	current, err := f.pointers.Current(ctx)
	if err != nil {
		t.Fatalf("Current() error: %v", err)
	}
	if current != "" {
		t.Errorf("empty batch promoted version %q", current)
	}
}

func TestPromoteEmptyOverride(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, Config{PromoteEmpty: true})

	if err := f.orch.Run(ctx, JobCollaborative); err != nil {
		t.Fatalf("Run(collaborative) error: %v", err)
	}
	current, err := f.pointers.Current(ctx)
	if err != nil {
		t.Fatalf("Current() error: %v", err)
	}
	if current == "" {
		t.Error("PromoteEmpty did not promote the empty version")
	}
}

func TestOrchestratorRollback(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, Config{})
	f.seed()

	if err := f.orch.Run(ctx, JobCollaborative); err != nil {
		t.Fatalf("Run(collaborative) error: %v", err)
	}
	v1, _ := f.pointers.Current(ctx)

	// Second window: expire the shared tag so a fresh version is cut.
	if err := f.pointers.ClaimBatchVersion(ctx, "", time.Millisecond); err != nil {
		t.Fatalf("ClaimBatchVersion() error: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	if err := f.orch.Run(ctx, JobCollaborative); err != nil {
		t.Fatalf("second Run(collaborative) error: %v", err)
	}
	v2, _ := f.pointers.Current(ctx)
	if v1 == v2 {
		t.Fatalf("second batch reused version %q", v1)
	}

	restored, err := f.orch.Rollback(ctx)
	if err != nil {
		t.Fatalf("Rollback() error: %v", err)
	}
	if restored != v1 {
		t.Errorf("Rollback() restored %q, want %q", restored, v1)
	}
}

func TestParseJobType(t *testing.T) {
	t.Parallel()

	for _, valid := range []string{"collaborative", "association", "hybrid"} {
		if _, err := ParseJobType(valid); err != nil {
			t.Errorf("ParseJobType(%s) error: %v", valid, err)
		}
	}
	if _, err := ParseJobType("popular"); err == nil {
		t.Error("ParseJobType accepted unknown job type")
	}
}

func TestRetryPolicyExhaustion(t *testing.T) {
	t.Parallel()

	p := retryPolicy{attempts: 3, base: time.Millisecond}
	calls := 0
	err := p.do(context.Background(), "flaky", func() error {
		calls++
		return errors.New("down")
	})
	if err == nil {
		t.Fatal("do() succeeded, want exhaustion error")
	}
	if calls != 3 {
		t.Errorf("op called %d times, want 3", calls)
	}
}

func TestRetryPolicyRecovers(t *testing.T) {
	t.Parallel()

	p := retryPolicy{attempts: 5, base: time.Millisecond}
	calls := 0
	err := p.do(context.Background(), "flaky", func() error {
		calls++
		if calls < 3 {
			return errors.New("down")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("do() error: %v", err)
	}
	if calls != 3 {
		t.Errorf("op called %d times, want 3", calls)
	}
}
