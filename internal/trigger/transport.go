// Basketry - Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketry

package trigger

import (
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	natsgo "github.com/nats-io/nats.go"
)

// Transport bundles the publisher and subscriber ends of the control
// topics plus their shutdown hook.
type Transport struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
}

// Close releases both ends.
func (t *Transport) Close() error {
	if err := t.Publisher.Close(); err != nil {
		return err
	}
	return t.Subscriber.Close()
}

// NewChannelTransport builds the in-process transport used by standalone
// deployments and tests. Publisher and subscriber share one gochannel, so
// signals published over the HTTP surface reach the consumer without a
// broker.
func NewChannelTransport() *Transport {
	ch := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 64},
		watermill.NewStdLogger(false, false),
	)
	return &Transport{Publisher: ch, Subscriber: ch}
}

// NATSTransportConfig locates the production JetStream transport.
type NATSTransportConfig struct {
	URL         string
	DurableName string
	QueueGroup  string
}

// NewNATSTransport builds the JetStream-backed transport.
func NewNATSTransport(cfg NATSTransportConfig) (*Transport, error) {
	wmLogger := watermill.NewStdLogger(false, false)
	marshaler := &wmNats.NATSMarshaler{}
	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.Timeout(10 * time.Second),
		natsgo.ReconnectWait(time.Second),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   marshaler,
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: true,
		},
	}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("create nats publisher: %w", err)
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              cfg.URL,
		QueueGroupPrefix: cfg.QueueGroup,
		SubscribersCount: 1,
		AckWaitTimeout:   30 * time.Second,
		NatsOptions:      natsOpts,
		Unmarshaler:      marshaler,
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: true,
			DurablePrefix: cfg.DurableName,
		},
	}, wmLogger)
	if err != nil {
		_ = pub.Close()
		return nil, fmt.Errorf("create nats subscriber: %w", err)
	}

	return &Transport{Publisher: pub, Subscriber: sub}, nil
}
