// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"

	"github.com/clipsight/clipsight/internal/config"
	"github.com/clipsight/clipsight/internal/logging"
	"github.com/clipsight/clipsight/internal/metrics"
)

// Subscriber consumes a job topic through a durable JetStream queue group,
// so multiple workers load-balance one topic.
type Subscriber struct {
	subscriber message.Subscriber
	topic      string
}

// NewSubscriber binds a durable consumer for one topic.
func NewSubscriber(cfg *config.QueueConfig, url, topic, durableName string) (*Subscriber, error) {
	logger := NewLoggerAdapter()

	maxDeliver := cfg.MaxDeliver
	if maxDeliver <= 0 {
		maxDeliver = 3
	}
	ackWait := cfg.AckWaitTimeout
	if ackWait <= 0 {
		ackWait = 35 * time.Minute // longer than the 30-minute job timeout
	}

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(time.Second),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS subscriber disconnected", err, nil)
			}
		}),
	}

	subOpts := []natsgo.SubOpt{
		natsgo.MaxDeliver(maxDeliver),
		natsgo.MaxAckPending(16),
		natsgo.AckWait(ackWait),
		natsgo.BindStream(StreamName),
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              url,
		QueueGroupPrefix: durableName,
		SubscribersCount: 1,
		AckWaitTimeout:   ackWait,
		CloseTimeout:     30 * time.Second,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:         false,
			AutoProvision:    false,
			AckAsync:         false,
			SubscribeOptions: subOpts,
			DurablePrefix:    durableName,
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create subscriber for %s: %w", topic, err)
	}

	return &Subscriber{subscriber: sub, topic: topic}, nil
}

// Handler processes one decoded message. A returned error nacks the
// message for redelivery.
type Handler func(ctx context.Context, msg *message.Message) error

// Consume runs workerCount goroutines over the topic until ctx ends.
// It blocks until all workers drain.
func (s *Subscriber) Consume(ctx context.Context, workerCount int, handler Handler) error {
	if workerCount <= 0 {
		workerCount = 2
	}

	messages, err := s.subscriber.Subscribe(ctx, s.topic)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", s.topic, err)
	}

	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for msg := range messages {
				if err := handler(ctx, msg); err != nil {
					metrics.QueueMessagesProcessed.WithLabelValues(s.topic, "error").Inc()
					logging.Error().
						Err(err).
						Str("topic", s.topic).
						Int("worker", workerID).
						Str("message_id", msg.UUID).
						Msg("Job handler failed, nacking for redelivery")
					msg.Nack()
					continue
				}
				metrics.QueueMessagesProcessed.WithLabelValues(s.topic, "ok").Inc()
				msg.Ack()
			}
		}(i)
	}

	wg.Wait()
	return nil
}

// Close stops the underlying subscriber.
func (s *Subscriber) Close() error {
	return s.subscriber.Close()
}
