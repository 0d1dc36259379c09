// Basketry - Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketry

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/basketry/internal/batch"
)

// BatchRunner matches the orchestrator surface the scheduler drives.
type BatchRunner interface {
	Run(ctx context.Context, jobType batch.JobType) error
}

// SchedulerConfig holds scheduler timing parameters.
type SchedulerConfig struct {
	// Interval is how often to run the full batch chain. Zero disables
	// scheduling; the service idles until canceled so the supervisor
	// tree keeps a uniform shape either way.
	Interval time.Duration

	// RunOnStartup runs the chain once immediately after the service starts.
	RunOnStartup bool

	// JobTimeout bounds a single chain run. Default: 30m.
	JobTimeout time.Duration
}

// SchedulerService periodically runs the collaborative, association, and
// hybrid jobs in order, so a standing deployment refreshes recommendations
// without an external trigger.
type SchedulerService struct {
	runner BatchRunner
	config SchedulerConfig
	logger zerolog.Logger
}

// NewSchedulerService creates a supervised batch scheduler.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewSchedulerService(runner BatchRunner, cfg SchedulerConfig, logger zerolog.Logger) *SchedulerService {
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 30 * time.Minute
	}
	return &SchedulerService{
		runner: runner,
		config: cfg,
		logger: logger.With().Str("service", "scheduler").Logger(),
	}
}

// Serve implements suture.Service.
func (s *SchedulerService) Serve(ctx context.Context) error {
	if s.config.Interval <= 0 {
		s.logger.Info().Msg("scheduler disabled, idling")
		<-ctx.Done()
		return ctx.Err()
	}

	s.logger.Info().
		Dur("interval", s.config.Interval).
		Bool("run_on_startup", s.config.RunOnStartup).
		Msg("scheduler starting")

	if s.config.RunOnStartup {
		if err := s.runChain(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("startup batch chain failed (will retry on schedule)")
		}
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("scheduler shutting down")
			return ctx.Err()

		case <-ticker.C:
			if err := s.runChain(ctx); err != nil {
				s.logger.Warn().Err(err).Msg("scheduled batch chain failed")
			}
		}
	}
}

// runChain runs the three jobs in dependency order. The hybrid job needs
// both algorithm outputs for the window, so it goes last; a failure in an
// earlier job aborts the chain rather than promoting a partial window.
func (s *SchedulerService) runChain(ctx context.Context) error {
	chainCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	start := time.Now()
	s.logger.Info().Msg("starting batch chain")

	for _, job := range []batch.JobType{batch.JobCollaborative, batch.JobAssociation, batch.JobHybrid} {
		if err := s.runner.Run(chainCtx, job); err != nil {
			return err
		}
	}

	s.logger.Info().
		Dur("duration", time.Since(start)).
		Msg("batch chain complete")
	return nil
}

// String identifies the service in supervisor logs.
func (s *SchedulerService) String() string {
	return "batch-scheduler"
}
