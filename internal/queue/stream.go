// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/clipsight/clipsight/internal/logging"
)

// EnsureStream provisions the job stream before publishers and
// subscribers start. Idempotent; an existing stream is updated in place.
func EnsureStream(ctx context.Context, url string) error {
	nc, err := natsgo.Connect(url,
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(5),
		natsgo.ReconnectWait(time.Second),
	)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS for stream init: %w", err)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	streamCfg := jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{TopicAuditJobs, TopicMediaJobs},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      48 * time.Hour,
		Duplicates:  10 * time.Minute,
		Storage:     jetstream.FileStorage,
		AllowDirect: true,
		Discard:     jetstream.DiscardOld,
	}

	if _, err := js.Stream(ctx, StreamName); err == nil {
		if _, err := js.UpdateStream(ctx, streamCfg); err != nil {
			return fmt.Errorf("failed to update stream %s: %w", StreamName, err)
		}
		logging.Debug().Str("stream", StreamName).Msg("Job stream updated")
		return nil
	} else if !errors.Is(err, jetstream.ErrStreamNotFound) {
		return fmt.Errorf("failed to check stream %s: %w", StreamName, err)
	}

	if _, err := js.CreateStream(ctx, streamCfg); err != nil {
		return fmt.Errorf("failed to create stream %s: %w", StreamName, err)
	}
	logging.Info().Str("stream", StreamName).Msg("Job stream created")
	return nil
}

// Ping verifies the broker answers a round trip. Used by the readiness
// probe.
func Ping(ctx context.Context, url string) error {
	nc, err := natsgo.Connect(url)
	if err != nil {
		return fmt.Errorf("broker unreachable: %w", err)
	}
	defer nc.Close()
	if err := nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("broker flush failed: %w", err)
	}
	return nil
}
