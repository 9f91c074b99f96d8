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

	"github.com/clipsight/clipsight/internal/apperr"
	"github.com/clipsight/clipsight/internal/metrics"
)

// JobPublisher is the enqueue surface handlers and the feed loop use.
type JobPublisher interface {
	PublishAuditJob(ctx context.Context, job *AuditJob) error
	PublishMediaJob(ctx context.Context, job *MediaJob) error
	Close() error
}

// Publisher sends jobs to JetStream. Message UUIDs double as Nats-Msg-Id
// so redelivered enqueues deduplicate inside the stream's window.
type Publisher struct {
	publisher message.Publisher
	mu        sync.RWMutex
	closed    bool
}

var _ JobPublisher = (*Publisher)(nil)

// NewPublisher connects a Watermill JetStream publisher to the broker.
func NewPublisher(url string) (*Publisher, error) {
	logger := NewLoggerAdapter()

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(time.Second),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS publisher disconnected", err, nil)
			}
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         url,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: false, // EnsureStream runs first
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create job publisher: %w", err)
	}

	return &Publisher{publisher: pub}, nil
}

func (p *Publisher) publish(topic string, payload any) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return apperr.ServiceUnavailable("job queue is shut down")
	}
	p.mu.RUnlock()

	msg, err := marshalJob(payload)
	if err != nil {
		return err
	}
	msg.Metadata.Set(natsgo.MsgIdHdr, msg.UUID)

	if err := p.publisher.Publish(topic, msg); err != nil {
		metrics.QueuePublishErrors.WithLabelValues(topic).Inc()
		return apperr.Wrap(apperr.KindServiceUnavailable, "job queue unavailable", err)
	}
	metrics.QueuePublishes.WithLabelValues(topic).Inc()
	return nil
}

// PublishAuditJob enqueues one audit run.
func (p *Publisher) PublishAuditJob(_ context.Context, job *AuditJob) error {
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}
	return p.publish(TopicAuditJobs, job)
}

// PublishMediaJob enqueues one media download.
func (p *Publisher) PublishMediaJob(_ context.Context, job *MediaJob) error {
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}
	return p.publish(TopicMediaJobs, job)
}

// Close shuts the publisher down. Further publishes fail fast.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.publisher.Close()
}
