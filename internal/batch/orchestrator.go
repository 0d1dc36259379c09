// Basketry - Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketry

// Package batch implements the orchestrator: the driver that runs one batch
// job end to end through the Allocated → Computing → Persisted → Validated →
// Promoted → Warmed state machine, with retried I/O at the repository and
// registry boundaries.
package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/basketry/internal/metrics"
	"github.com/tomtom215/basketry/internal/models"
	"github.com/tomtom215/basketry/internal/recommend"
	"github.com/tomtom215/basketry/internal/recommend/algorithms"
	"github.com/tomtom215/basketry/internal/registry"
	"github.com/tomtom215/basketry/internal/repository"
)

// JobType selects which batch job to run.
type JobType string

const (
	// JobCollaborative computes and promotes the similarity records.
	JobCollaborative JobType = "collaborative"

	// JobAssociation computes and promotes the rule records.
	JobAssociation JobType = "association"

	// JobHybrid blends both record sets under the shared batch version.
	// It does not promote.
	JobHybrid JobType = "hybrid"
)

// ParseJobType validates a job type received from the trigger surface.
func ParseJobType(s string) (JobType, error) {
	switch JobType(s) {
	case JobCollaborative, JobAssociation, JobHybrid:
		return JobType(s), nil
	default:
		return "", fmt.Errorf("unknown job type %q", s)
	}
}

// state is the batch lifecycle position, logged on every transition.
type state string

const (
	stateAllocated state = "allocated"
	stateComputing state = "computing"
	statePersisted state = "persisted"
	stateValidated state = "validated"
	statePromoted  state = "promoted"
	stateWarmed    state = "warmed"
)

// ErrHybridPrecondition is returned when the hybrid job finds either input
// record set empty for the shared version.
var ErrHybridPrecondition = errors.New("hybrid job requires both collaborative and association records")

// Config tunes the orchestrator.
type Config struct {
	// BatchVersionTTL bounds how long jobs share one version tag.
	// Default: 1h.
	BatchVersionTTL time.Duration

	// HotCacheTTL is the hot-cache entry lifetime. Default: 4h.
	HotCacheTTL time.Duration

	// WarmCacheLimit caps how many products are pre-materialised into the
	// hot cache after promotion. Default: 100.
	WarmCacheLimit int

	// PromoteEmpty promotes versions with zero records. Off by default:
	// degenerate input produces an unpromoted version instead of wiping
	// live recommendations.
	PromoteEmpty bool
}

func (c Config) withDefaults() Config {
	if c.BatchVersionTTL <= 0 {
		c.BatchVersionTTL = time.Hour
	}
	if c.HotCacheTTL <= 0 {
		c.HotCacheTTL = 4 * time.Hour
	}
	if c.WarmCacheLimit <= 0 {
		c.WarmCacheLimit = 100
	}
	return c
}

// Orchestrator drives batch jobs against the repository and registry.
type Orchestrator struct {
	repo       repository.Repository
	pointers   *registry.Pointers
	similarity *algorithms.SimilarityEngine
	miner      *algorithms.Miner
	blender    *algorithms.Blender
	cfg        Config
	retry      retryPolicy
	logger     zerolog.Logger
}

// NewOrchestrator wires an orchestrator from its dependencies.
func NewOrchestrator(
	repo repository.Repository,
	pointers *registry.Pointers,
	similarity *algorithms.SimilarityEngine,
	miner *algorithms.Miner,
	blender *algorithms.Blender,
	cfg Config,
	logger zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		repo:       repo,
		pointers:   pointers,
		similarity: similarity,
		miner:      miner,
		blender:    blender,
		cfg:        cfg.withDefaults(),
		retry:      defaultRetryPolicy(),
		logger:     logger.With().Str("component", "orchestrator").Logger(),
	}
}

// Run executes one batch job.
func (o *Orchestrator) Run(ctx context.Context, jobType JobType) error {
	start := time.Now()
	var err error

	switch jobType {
	case JobCollaborative:
		err = o.runCollaborative(ctx)
	case JobAssociation:
		err = o.runAssociation(ctx)
	case JobHybrid:
		err = o.runHybrid(ctx)
	default:
		err = fmt.Errorf("unknown job type %q", jobType)
	}

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	metrics.BatchRuns.WithLabelValues(string(jobType), outcome).Inc()
	metrics.BatchDuration.WithLabelValues(string(jobType)).Observe(time.Since(start).Seconds())
	return err
}

// Rollback swaps the current and previous versions.
func (o *Orchestrator) Rollback(ctx context.Context) (string, error) {
	restored, err := o.pointers.Rollback(ctx)
	if err != nil {
		return "", err
	}
	metrics.Rollbacks.Inc()
	return restored, nil
}

// acquireVersion returns the shared batch version, reusing an unexpired
// claim so the collaborative, association and hybrid jobs of one window
// land under the same tag.
func (o *Orchestrator) acquireVersion(ctx context.Context) (version, batchID string, err error) {
	batchID = models.NewBatchID()

	version, err = o.pointers.BatchVersion(ctx)
	if err != nil {
		return "", "", fmt.Errorf("read batch version: %w", err)
	}
	if version != "" {
		o.logger.Debug().Str("version", version).Str("batch_id", batchID).Msg("reusing claimed batch version")
		return version, batchID, nil
	}

	version = models.NewVersionTag()
	if err := o.pointers.ClaimBatchVersion(ctx, version, o.cfg.BatchVersionTTL); err != nil {
		// The tag is unique to this process, so an unpublished claim
		// only costs the version sharing, not correctness.
		o.logger.Warn().Err(err).Str("version", version).Msg("batch version claim failed, proceeding locally")
	}

	o.transition(stateAllocated, version, batchID)
	return version, batchID, nil
}

func (o *Orchestrator) runCollaborative(ctx context.Context) error {
	version, batchID, err := o.acquireVersion(ctx)
	if err != nil {
		return err
	}
	log := o.logger.With().Str("job", string(JobCollaborative)).Str("version", version).Str("batch_id", batchID).Logger()

	var orders []models.Order
	err = o.retry.do(ctx, "load orders", func() error {
		var err error
		orders, err = o.repo.ListOrders(ctx)
		return err
	})
	if err != nil {
		return err
	}

	o.transition(stateComputing, version, batchID)
	inc := recommend.BuildIncidence(orders)
	scores, err := o.similarity.Compute(ctx, inc)
	if err != nil {
		return fmt.Errorf("similarity computation: %w", err)
	}

	now := time.Now().UTC()
	recs := make([]models.Recommendation, 0, len(scores))
	for _, pid := range inc.ProductIDs() {
		items := make([]models.RecommendedItem, 0, len(scores[pid]))
		for _, sp := range scores[pid] {
			items = append(items, algorithms.PureCollaborative(sp))
		}
		recs = append(recs, models.Recommendation{
			ProductID: pid,
			Algorithm: models.AlgorithmCollaborative,
			Items:     items,
			Version:   version,
			BatchID:   batchID,
			CreatedAt: now,
		})
	}

	return o.persistAndPublish(ctx, JobCollaborative, version, batchID, recs, true, log)
}

func (o *Orchestrator) runAssociation(ctx context.Context) error {
	version, batchID, err := o.acquireVersion(ctx)
	if err != nil {
		return err
	}
	log := o.logger.With().Str("job", string(JobAssociation)).Str("version", version).Str("batch_id", batchID).Logger()

	var (
		co     map[string]map[string]int
		freq   map[string]int
		orders int
	)
	err = o.retry.do(ctx, "load rule inputs", func() error {
		var err error
		if co, err = o.repo.CoOccurrencePairs(ctx); err != nil {
			return err
		}
		if freq, err = o.repo.ProductFrequencies(ctx); err != nil {
			return err
		}
		orders, err = o.repo.OrderCount(ctx)
		return err
	})
	if err != nil {
		return err
	}

	o.transition(stateComputing, version, batchID)
	rules, err := o.miner.Mine(ctx, co, freq, orders)
	if err != nil {
		return fmt.Errorf("rule mining: %w", err)
	}

	now := time.Now().UTC()
	recs := make([]models.Recommendation, 0, len(rules))
	for antecedent, ruleSet := range rules {
		items := make([]models.RecommendedItem, 0, len(ruleSet))
		for _, sp := range algorithms.FrequentlyBoughtWith(ruleSet) {
			items = append(items, algorithms.PureAssociation(sp))
		}
		recs = append(recs, models.Recommendation{
			ProductID: antecedent,
			Algorithm: models.AlgorithmAssociation,
			Items:     items,
			Version:   version,
			BatchID:   batchID,
			CreatedAt: now,
		})
	}

	return o.persistAndPublish(ctx, JobAssociation, version, batchID, recs, true, log)
}

func (o *Orchestrator) runHybrid(ctx context.Context) error {
	version, batchID, err := o.acquireVersion(ctx)
	if err != nil {
		return err
	}
	log := o.logger.With().Str("job", string(JobHybrid)).Str("version", version).Str("batch_id", batchID).Logger()

	var collab, assoc []models.Recommendation
	err = o.retry.do(ctx, "load algorithm records", func() error {
		var err error
		if collab, err = o.repo.FindByVersion(ctx, version, models.AlgorithmCollaborative); err != nil {
			return err
		}
		assoc, err = o.repo.FindByVersion(ctx, version, models.AlgorithmAssociation)
		return err
	})
	if err != nil {
		return err
	}
	if len(collab) == 0 || len(assoc) == 0 {
		return fmt.Errorf("%w: version %s has %d collaborative and %d association records",
			ErrHybridPrecondition, version, len(collab), len(assoc))
	}

	o.transition(stateComputing, version, batchID)

	collabByPid := channelByProduct(collab)
	assocByPid := channelByProduct(assoc)
	union := make(map[string]struct{}, len(collabByPid)+len(assocByPid))
	for pid := range collabByPid {
		union[pid] = struct{}{}
	}
	for pid := range assocByPid {
		union[pid] = struct{}{}
	}

	now := time.Now().UTC()
	recs := make([]models.Recommendation, 0, len(union))
	for pid := range union {
		c, hasCollab := collabByPid[pid]
		a, hasAssoc := assocByPid[pid]
		// Batch mode has no user in context, so history never applies.
		weights := algorithms.ResolveWeights(hasCollab, hasAssoc, false)
		items := o.blender.Blend(c, a, weights)
		recs = append(recs, models.Recommendation{
			ProductID: pid,
			Algorithm: models.AlgorithmHybrid,
			Items:     items,
			Version:   version,
			BatchID:   batchID,
			CreatedAt: now,
		})
	}

	// The hybrid job rides on the version its inputs were promoted under.
	return o.persistAndPublish(ctx, JobHybrid, version, batchID, recs, false, log)
}

// channelByProduct projects stored records back onto per-product scored
// lists. Empty lists are dropped so presence means "channel has candidates".
func channelByProduct(recs []models.Recommendation) map[string][]recommend.ScoredProduct {
	out := make(map[string][]recommend.ScoredProduct, len(recs))
	for _, rec := range recs {
		if len(rec.Items) == 0 {
			continue
		}
		list := make([]recommend.ScoredProduct, len(rec.Items))
		for i, item := range rec.Items {
			list[i] = recommend.ScoredProduct{ProductID: item.ProductID, Score: item.Score}
		}
		out[rec.ProductID] = list
	}
	return out
}

// persistAndPublish runs the shared tail of every job: validate invariants,
// bulk-upsert, compute quality, and (for promoting jobs) rotate the
// pointers, write metadata and warm the hot cache.
func (o *Orchestrator) persistAndPublish(ctx context.Context, jobType JobType, version, batchID string, recs []models.Recommendation, promote bool, log zerolog.Logger) error {
	for i := range recs {
		if err := recs[i].Validate(); err != nil {
			// Invariant violations are programmer errors; nothing
			// durable has happened yet, so abort outright.
			return fmt.Errorf("record validation: %w", err)
		}
	}

	err := o.retry.do(ctx, "bulk upsert", func() error {
		return o.repo.BulkUpsert(ctx, recs)
	})
	if err != nil {
		return err
	}
	o.transition(statePersisted, version, batchID)
	metrics.BatchRecords.WithLabelValues(string(jobType)).Set(float64(len(recs)))

	catalogSize, err := o.repo.CatalogSize(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("catalog size unavailable, coverage will read zero")
	}
	quality := recommend.ComputeQuality(recs, catalogSize)
	o.transition(stateValidated, version, batchID)
	metrics.ObserveQuality(string(jobType), quality.AvgScore, quality.Coverage, quality.Diversity)
	log.Info().
		Int("records", len(recs)).
		Float64("avg_score", quality.AvgScore).
		Float64("coverage", quality.Coverage).
		Float64("diversity", quality.Diversity).
		Msg("batch validated")

	if !promote {
		return nil
	}

	if totalItems(recs) == 0 && !o.cfg.PromoteEmpty {
		log.Warn().Msg("empty recommendation set, promotion skipped")
		return nil
	}

	err = o.retry.do(ctx, "promote version", func() error {
		return o.pointers.Promote(ctx, version)
	})
	if err != nil {
		return err
	}
	o.transition(statePromoted, version, batchID)
	metrics.Promotions.Inc()

	meta := models.VersionMetadata{
		Version:   version,
		CreatedAt: time.Now().UTC(),
		Status:    models.VersionActive,
		Quality:   quality,
	}
	if err := o.pointers.PutMetadata(ctx, meta); err != nil {
		log.Warn().Err(err).Msg("version metadata write failed")
	}

	o.warmCache(ctx, recs, log)
	o.transition(stateWarmed, version, batchID)
	return nil
}

func totalItems(recs []models.Recommendation) int {
	n := 0
	for _, rec := range recs {
		n += len(rec.Items)
	}
	return n
}

// warmCache pre-materialises up to WarmCacheLimit records into the hot
// cache. Warm-up failures never fail the batch.
func (o *Orchestrator) warmCache(ctx context.Context, recs []models.Recommendation, log zerolog.Logger) {
	warmed := 0
	for i := range recs {
		if warmed >= o.cfg.WarmCacheLimit {
			break
		}
		if len(recs[i].Items) == 0 {
			continue
		}
		if err := o.pointers.CacheRecommendation(ctx, recs[i], o.cfg.HotCacheTTL); err != nil {
			log.Debug().Err(err).Str("product_id", recs[i].ProductID).Msg("cache warm-up failed")
			continue
		}
		warmed++
	}
	log.Info().Int("warmed", warmed).Msg("hot cache warmed")
}

func (o *Orchestrator) transition(s state, version, batchID string) {
	o.logger.Debug().
		Str("state", string(s)).
		Str("version", version).
		Str("batch_id", batchID).
		Msg("batch state transition")
}
