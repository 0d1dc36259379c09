// Basketry - Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketry

package services

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// TriggerConsumer matches the trigger.Consumer lifecycle.
type TriggerConsumer interface {
	Run(ctx context.Context) error
	Close() error
}

// TriggerService runs the batch trigger consumer under supervision, so a
// broker hiccup that kills the router gets the consumer restarted with
// suture's backoff instead of silently stopping batch triggers.
type TriggerService struct {
	consumer TriggerConsumer
	logger   zerolog.Logger
}

// NewTriggerService wraps a trigger consumer as a supervised service.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewTriggerService(consumer TriggerConsumer, logger zerolog.Logger) *TriggerService {
	return &TriggerService{
		consumer: consumer,
		logger:   logger.With().Str("service", "trigger").Logger(),
	}
}

// Serve implements suture.Service. A context-canceled return is passed
// through unchanged so suture treats it as a normal stop.
func (s *TriggerService) Serve(ctx context.Context) error {
	s.logger.Info().Msg("trigger consumer starting")

	err := s.consumer.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error().Err(err).Msg("trigger consumer stopped")
		return err
	}

	s.logger.Info().Msg("trigger consumer shutting down")
	return ctx.Err()
}

// String identifies the service in supervisor logs.
func (s *TriggerService) String() string {
	return "trigger-consumer"
}
