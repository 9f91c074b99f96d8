// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

package clients

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/clipsight/clipsight/internal/logging"
	"github.com/clipsight/clipsight/internal/metrics"
)

// PlatformDataClient is the provider surface the feed loop and blueprint
// consume. The breaker wrapper and the raw client both satisfy it.
type PlatformDataClient interface {
	Configured() bool
	SearchVideos(ctx context.Context, query string, maxResults int, publishedAfter *time.Time) ([]YouTubeVideo, error)
	ChannelVideos(ctx context.Context, channelID string, maxResults int) ([]YouTubeVideo, error)
	VideoDetails(ctx context.Context, videoIDs []string) ([]YouTubeVideo, error)
}

var _ PlatformDataClient = (*YouTubeBreakerClient)(nil)

// YouTubeBreakerClient wraps YouTubeClient with a circuit breaker so quota
// exhaustion or provider outages fail fast instead of piling up workers.
//
// The breaker uses real time for its interval and timeout calculations.
type YouTubeBreakerClient struct {
	client *YouTubeClient
	cb     *gobreaker.CircuitBreaker[any]
	name   string
}

// NewYouTubeBreakerClient wraps a Data API client. The breaker opens after
// a 60% failure rate over at least 10 requests, waits 2 minutes before
// half-open, and admits 3 probes in half-open state.
func NewYouTubeBreakerClient(client *YouTubeClient) *YouTubeBreakerClient {
	cbName := "youtube-api"
	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			if failureRatio >= 0.6 {
				logging.Warn().
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("Opening YouTube circuit")
				return true
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("from", breakerStateString(from)).
				Str("to", breakerStateString(to)).
				Msg("YouTube circuit state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, breakerStateString(from), breakerStateString(to)).Inc()
		},
	})

	return &YouTubeBreakerClient{client: client, cb: cb, name: cbName}
}

func (b *YouTubeBreakerClient) execute(fn func() (any, error)) (any, error) {
	result, err := b.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
		} else {
			metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
		}
		return nil, err
	}
	metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
	return result, nil
}

// Configured reports whether the wrapped client has an API key.
func (b *YouTubeBreakerClient) Configured() bool {
	return b.client.Configured()
}

// SearchVideos runs a protected keyword search.
func (b *YouTubeBreakerClient) SearchVideos(ctx context.Context, query string, maxResults int, publishedAfter *time.Time) ([]YouTubeVideo, error) {
	result, err := b.execute(func() (any, error) {
		return b.client.SearchVideos(ctx, query, maxResults, publishedAfter)
	})
	if err != nil {
		return nil, err
	}
	return result.([]YouTubeVideo), nil
}

// ChannelVideos runs a protected channel listing.
func (b *YouTubeBreakerClient) ChannelVideos(ctx context.Context, channelID string, maxResults int) ([]YouTubeVideo, error) {
	result, err := b.execute(func() (any, error) {
		return b.client.ChannelVideos(ctx, channelID, maxResults)
	})
	if err != nil {
		return nil, err
	}
	return result.([]YouTubeVideo), nil
}

// VideoDetails runs a protected stats hydration.
func (b *YouTubeBreakerClient) VideoDetails(ctx context.Context, videoIDs []string) ([]YouTubeVideo, error) {
	result, err := b.execute(func() (any, error) {
		return b.client.VideoDetails(ctx, videoIDs)
	})
	if err != nil {
		return nil, err
	}
	return result.([]YouTubeVideo), nil
}

func breakerStateString(s gobreaker.State) string {
	switch s {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func breakerStateFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
