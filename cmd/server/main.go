// Basketry - Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketry

// Package main is the entry point for the Basketry server.
//
// Basketry computes product recommendations from order history: item-item
// collaborative similarity (Jaccard over buyer sets), association rules
// mined from order co-occurrence, and a hybrid blend of the two. Batches
// write recommendation records into DuckDB under a fresh version tag and
// publish it through BadgerDB-backed version pointers, so readers switch
// atomically and a rollback is a pointer swap away.
//
// The server initializes components in the following order:
//
//  1. Configuration: layered Koanf v2 load (defaults, YAML file, env)
//  2. DuckDB repository: orders, catalog, recommendation records
//  3. Badger registry: version pointers, batch claims, hot cache
//  4. Algorithm engines and the batch orchestrator
//  5. Trigger transport: NATS JetStream, or in-process when disabled
//  6. HTTP API plus the supervisor tree that runs everything
//
// Batches run three ways: POST /api/v1/batch/{jobType}, a message on the
// rec.batch.trigger topic, or the built-in scheduler when
// batch.schedule_interval is set.
//
// The server handles graceful shutdown on SIGINT and SIGTERM: the
// supervisor tree stops its services, the HTTP server drains in-flight
// requests, and the stores are closed last.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/basketry/internal/api"
	"github.com/tomtom215/basketry/internal/batch"
	"github.com/tomtom215/basketry/internal/config"
	"github.com/tomtom215/basketry/internal/logging"
	"github.com/tomtom215/basketry/internal/recommend/algorithms"
	"github.com/tomtom215/basketry/internal/registry"
	"github.com/tomtom215/basketry/internal/repository"
	"github.com/tomtom215/basketry/internal/supervisor"
	"github.com/tomtom215/basketry/internal/supervisor/services"
	"github.com/tomtom215/basketry/internal/trigger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Config is not available yet, so use a bare stderr logger.
		fallback := zerolog.New(os.Stderr).With().Timestamp().Logger()
		fallback.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	logger.Info().
		Str("db_path", cfg.Database.Path).
		Str("registry_path", cfg.Registry.Path).
		Bool("nats_enabled", cfg.NATS.Enabled).
		Dur("schedule_interval", cfg.Batch.ScheduleInterval).
		Msg("starting basketry")

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server failed")
	}

	logger.Info().Msg("stopped gracefully")
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	// Stores first; everything else hangs off them.
	repo, err := repository.NewDuckDB(cfg.Database.Path, logger)
	if err != nil {
		return fmt.Errorf("open repository: %w", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logger.Error().Err(err).Msg("error closing repository")
		}
	}()

	badgerDB, err := registry.OpenBadger(cfg.Registry.Path, logger)
	if err != nil {
		return fmt.Errorf("open registry: %w", err)
	}
	defer func() {
		if err := badgerDB.Close(); err != nil {
			logger.Error().Err(err).Msg("error closing registry")
		}
	}()

	pointers := registry.NewPointers(registry.NewBadgerRegistry(badgerDB), registry.PointersConfig{
		FailureThreshold: cfg.Registry.BreakerFailures,
		OpenTimeout:      cfg.Registry.BreakerTimeout,
	}, logger)

	orchestrator := batch.NewOrchestrator(
		repo,
		pointers,
		algorithms.NewSimilarityEngine(algorithms.SimilarityConfig{
			MinCommon:         cfg.Recommend.MinCommonUsers,
			TopN:              cfg.Recommend.TopN,
			Workers:           cfg.Recommend.ParallelWorkers,
			ParallelThreshold: cfg.Recommend.ParallelThreshold,
			DenseMinProducts:  cfg.Recommend.DenseMinProducts,
			DenseMaxProducts:  cfg.Recommend.DenseMaxProducts,
			DenseMinDensity:   cfg.Recommend.DenseMinDensity,
			DenseMaxDensity:   cfg.Recommend.DenseMaxDensity,
		}, logger),
		algorithms.NewMiner(algorithms.AssociationConfig{
			MinSupport:    cfg.Recommend.MinSupport,
			MinConfidence: cfg.Recommend.MinConfidence,
			TopN:          cfg.Recommend.TopN,
		}, logger),
		algorithms.NewBlender(algorithms.BlenderConfig{TopN: cfg.Recommend.TopN}),
		batch.Config{
			BatchVersionTTL: cfg.Batch.BatchVersionTTL,
			HotCacheTTL:     cfg.Batch.HotCacheTTL,
			WarmCacheLimit:  cfg.Batch.WarmCacheLimit,
			PromoteEmpty:    cfg.Batch.PromoteEmpty,
		},
		logger,
	)

	transport, err := buildTransport(cfg, logger)
	if err != nil {
		return fmt.Errorf("build trigger transport: %w", err)
	}
	defer func() {
		if err := transport.Close(); err != nil {
			logger.Error().Err(err).Msg("error closing trigger transport")
		}
	}()

	publisher := trigger.NewPublisher(transport.Publisher, logger)
	consumer, err := trigger.NewConsumer(transport.Subscriber, orchestrator, trigger.ConsumerConfig{
		RetryCount:   cfg.NATS.RetryCount,
		RetryInitial: cfg.NATS.RetryInitial,
	}, logger)
	if err != nil {
		return fmt.Errorf("build trigger consumer: %w", err)
	}

	apiServer := api.NewServer(repo, pointers, publisher, api.Config{
		RateLimitReqs:   cfg.Server.RateLimitReqs,
		RateLimitWindow: cfg.Server.RateLimitWindow,
	}, logger)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           apiServer.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       2 * cfg.Server.Timeout,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(logger), supervisor.DefaultTreeConfig())
	tree.AddBatchService(services.NewTriggerService(consumer, logger))
	tree.AddBatchService(services.NewSchedulerService(orchestrator, services.SchedulerConfig{
		Interval: cfg.Batch.ScheduleInterval,
	}, logger))
	tree.AddAPIService(services.NewHTTPService(httpServer, 10*time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	logger.Info().Str("addr", httpServer.Addr).Msg("starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logger.Info().Msg("waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("supervisor tree: %w", err)
		}
	}

	// Drain the terminal error once the tree has fully stopped.
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logger.Warn().Str("service", svc.Name).Msg("service failed to stop within timeout")
	}

	return nil
}

// buildTransport picks NATS JetStream when enabled, otherwise an in-process
// channel so single-node deployments need no broker.
func buildTransport(cfg *config.Config, logger zerolog.Logger) (*trigger.Transport, error) {
	if !cfg.NATS.Enabled {
		logger.Info().Msg("nats disabled, using in-process trigger transport")
		return trigger.NewChannelTransport(), nil
	}

	logger.Info().Str("url", cfg.NATS.URL).Msg("connecting trigger transport to nats")
	return trigger.NewNATSTransport(trigger.NATSTransportConfig{
		URL:         cfg.NATS.URL,
		DurableName: cfg.NATS.DurableName,
		QueueGroup:  cfg.NATS.QueueGroup,
	})
}
