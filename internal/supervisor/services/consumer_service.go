// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

package services

import (
	"context"
	"fmt"

	"github.com/clipsight/clipsight/internal/queue"
)

// Consumer matches the queue.Subscriber consume loop.
type Consumer interface {
	Consume(ctx context.Context, workerCount int, handler queue.Handler) error
	Close() error
}

// ConsumerService runs one durable queue consumer under supervision.
// Consume blocks until the context is canceled; any other return is a
// failure and triggers a supervised restart.
type ConsumerService struct {
	name     string
	consumer Consumer
	workers  int
	handler  queue.Handler
}

func NewConsumerService(name string, consumer Consumer, workers int, handler queue.Handler) *ConsumerService {
	return &ConsumerService{name: name, consumer: consumer, workers: workers, handler: handler}
}

// Serve implements suture.Service.
func (s *ConsumerService) Serve(ctx context.Context) error {
	if err := s.consumer.Consume(ctx, s.workers, s.handler); err != nil && ctx.Err() == nil {
		return fmt.Errorf("%s consumer failed: %w", s.name, err)
	}
	return ctx.Err()
}

func (s *ConsumerService) String() string { return s.name }
