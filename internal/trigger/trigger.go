// Basketry - Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketry

// Package trigger carries the batch-trigger and rollback signals over
// Watermill. In production the transport is NATS JetStream; standalone
// deployments and tests use the in-process gochannel pub/sub. The consumer
// is a Watermill router with recovery and retry middleware that hands
// validated signals to the orchestrator.
package trigger

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tomtom215/basketry/internal/batch"
	"github.com/tomtom215/basketry/internal/metrics"
)

// Topics carrying the pipeline's control signals.
const (
	// TopicBatch carries "run batch job" signals.
	TopicBatch = "rec.batch.trigger"

	// TopicRollback carries "swap current and previous" signals.
	TopicRollback = "rec.batch.rollback"
)

// Message is the wire form of a control signal.
type Message struct {
	// JobType names the batch job for TopicBatch signals; unused on
	// TopicRollback.
	JobType string `json:"job_type,omitempty"`

	// RequestedBy identifies the caller for audit logging.
	RequestedBy string `json:"requested_by,omitempty"`

	// RequestedAt is when the signal was published.
	RequestedAt time.Time `json:"requested_at"`
}

// Publisher publishes control signals.
type Publisher struct {
	pub    message.Publisher
	logger zerolog.Logger
}

// NewPublisher wraps a Watermill publisher.
func NewPublisher(pub message.Publisher, logger zerolog.Logger) *Publisher {
	return &Publisher{
		pub:    pub,
		logger: logger.With().Str("component", "trigger-publisher").Logger(),
	}
}

// TriggerBatch publishes a batch-run signal.
func (p *Publisher) TriggerBatch(ctx context.Context, jobType batch.JobType, requestedBy string) error {
	return p.publish(ctx, TopicBatch, Message{
		JobType:     string(jobType),
		RequestedBy: requestedBy,
		RequestedAt: time.Now().UTC(),
	})
}

// TriggerRollback publishes a rollback signal.
func (p *Publisher) TriggerRollback(ctx context.Context, requestedBy string) error {
	return p.publish(ctx, TopicRollback, Message{
		RequestedBy: requestedBy,
		RequestedAt: time.Now().UTC(),
	})
}

func (p *Publisher) publish(ctx context.Context, topic string, m Message) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal trigger message: %w", err)
	}

	msg := message.NewMessage(uuid.NewString(), payload)
	msg.SetContext(ctx)
	if err := p.pub.Publish(topic, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	p.logger.Debug().Str("topic", topic).Str("job_type", m.JobType).Msg("trigger published")
	return nil
}

// ConsumerConfig tunes the trigger router.
type ConsumerConfig struct {
	// RetryCount is the per-message retry budget. Default: 3.
	RetryCount int

	// RetryInitial is the first retry delay. Default: 100ms.
	RetryInitial time.Duration

	// CloseTimeout bounds router shutdown. Default: 30s.
	CloseTimeout time.Duration
}

func (c ConsumerConfig) withDefaults() ConsumerConfig {
	if c.RetryCount < 1 {
		c.RetryCount = 3
	}
	if c.RetryInitial <= 0 {
		c.RetryInitial = 100 * time.Millisecond
	}
	if c.CloseTimeout <= 0 {
		c.CloseTimeout = 30 * time.Second
	}
	return c
}

// Runner is what the consumer needs from the orchestrator.
type Runner interface {
	Run(ctx context.Context, jobType batch.JobType) error
	Rollback(ctx context.Context) (string, error)
}

// Consumer is the Watermill router consuming the control topics.
type Consumer struct {
	router *message.Router
	logger zerolog.Logger
}

// NewConsumer builds the router over a subscriber and registers the two
// signal handlers.
func NewConsumer(sub message.Subscriber, runner Runner, cfg ConsumerConfig, logger zerolog.Logger) (*Consumer, error) {
	cfg = cfg.withDefaults()
	log := logger.With().Str("component", "trigger-consumer").Logger()
	wmLogger := watermill.NewStdLogger(false, false)

	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: cfg.CloseTimeout}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("create trigger router: %w", err)
	}

	router.AddMiddleware(middleware.Recoverer)
	retry := middleware.Retry{
		MaxRetries:      cfg.RetryCount,
		InitialInterval: cfg.RetryInitial,
		Logger:          wmLogger,
	}
	router.AddMiddleware(retry.Middleware)

	c := &Consumer{router: router, logger: log}

	router.AddNoPublisherHandler("batch-trigger", TopicBatch, sub, c.handleBatch(runner))
	router.AddNoPublisherHandler("rollback-trigger", TopicRollback, sub, c.handleRollback(runner))

	return c, nil
}

func (c *Consumer) handleBatch(runner Runner) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		var m Message
		if err := json.Unmarshal(msg.Payload, &m); err != nil {
			// Malformed payloads never become valid; ack and drop.
			c.logger.Error().Err(err).Str("message_id", msg.UUID).Msg("malformed batch trigger dropped")
			metrics.TriggerMessages.WithLabelValues("unknown", "malformed").Inc()
			return nil
		}

		jobType, err := batch.ParseJobType(m.JobType)
		if err != nil {
			c.logger.Error().Err(err).Str("message_id", msg.UUID).Msg("invalid job type dropped")
			metrics.TriggerMessages.WithLabelValues(m.JobType, "invalid").Inc()
			return nil
		}

		c.logger.Info().
			Str("job_type", string(jobType)).
			Str("requested_by", m.RequestedBy).
			Msg("batch trigger received")

		if err := runner.Run(msg.Context(), jobType); err != nil {
			metrics.TriggerMessages.WithLabelValues(string(jobType), "error").Inc()
			return fmt.Errorf("run %s batch: %w", jobType, err)
		}
		metrics.TriggerMessages.WithLabelValues(string(jobType), "success").Inc()
		return nil
	}
}

func (c *Consumer) handleRollback(runner Runner) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		var m Message
		if err := json.Unmarshal(msg.Payload, &m); err != nil {
			c.logger.Error().Err(err).Str("message_id", msg.UUID).Msg("malformed rollback trigger dropped")
			metrics.TriggerMessages.WithLabelValues("rollback", "malformed").Inc()
			return nil
		}

		restored, err := runner.Rollback(msg.Context())
		if err != nil {
			metrics.TriggerMessages.WithLabelValues("rollback", "error").Inc()
			return fmt.Errorf("rollback: %w", err)
		}

		c.logger.Info().
			Str("restored", restored).
			Str("requested_by", m.RequestedBy).
			Msg("rollback trigger applied")
		metrics.TriggerMessages.WithLabelValues("rollback", "success").Inc()
		return nil
	}
}

// Run blocks consuming signals until the context is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.router.Run(ctx)
}

// Running is closed once the router consumes from all topics.
func (c *Consumer) Running() <-chan struct{} {
	return c.router.Running()
}

// Close shuts the router down.
func (c *Consumer) Close() error {
	return c.router.Close()
}
