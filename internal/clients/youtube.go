// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

// Package clients holds the upstream provider clients: the YouTube Data
// API, the OpenAI API, and the local yt-dlp/ffmpeg tool wrappers. Every
// network client paces itself and reports through the shared metrics.
package clients

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/clipsight/clipsight/internal/config"
	"github.com/clipsight/clipsight/internal/metrics"
	"github.com/clipsight/clipsight/internal/models"
)

const youtubeAPIBase = "https://www.googleapis.com/youtube/v3"

// YouTubeVideo is one normalized Data API result.
type YouTubeVideo struct {
	ExternalID   string
	Title        string
	ChannelID    string
	ChannelTitle string
	DurationS    float64
	Metrics      models.ItemMetrics
	PublishedAt  *time.Time
	ThumbnailURL string
	Tags         []string
}

// YouTubeClient calls the YouTube Data API v3. Outbound calls are paced by
// a token bucket so quota exhaustion surfaces as latency, not errors.
type YouTubeClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewYouTubeClient builds the Data API client.
func NewYouTubeClient(cfg *config.YouTubeConfig) *YouTubeClient {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &YouTubeClient{
		apiKey:  cfg.APIKey,
		baseURL: youtubeAPIBase,
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// Configured reports whether an API key is present.
func (c *YouTubeClient) Configured() bool {
	return strings.TrimSpace(c.apiKey) != ""
}

func (c *YouTubeClient) get(ctx context.Context, path string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	params.Set("key", c.apiKey)
	reqURL := c.baseURL + path + "?" + params.Encode()

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build youtube request: %w", err)
	}
	resp, err := c.http.Do(req)
	metrics.RecordExternalCall("youtube", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("youtube request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("failed to read youtube response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		metrics.ExternalAPIErrors.WithLabelValues("youtube").Inc()
		return fmt.Errorf("youtube API returned status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode youtube response: %w", err)
	}
	return nil
}

type ytSearchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
	} `json:"items"`
}

type ytVideosResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title        string   `json:"title"`
			ChannelID    string   `json:"channelId"`
			ChannelTitle string   `json:"channelTitle"`
			PublishedAt  string   `json:"publishedAt"`
			Tags         []string `json:"tags"`
			Thumbnails   struct {
				High struct {
					URL string `json:"url"`
				} `json:"high"`
			} `json:"thumbnails"`
		} `json:"snippet"`
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
		Statistics struct {
			ViewCount    string `json:"viewCount"`
			LikeCount    string `json:"likeCount"`
			CommentCount string `json:"commentCount"`
		} `json:"statistics"`
	} `json:"items"`
}

// SearchVideos runs a keyword search and hydrates statistics for the hits.
func (c *YouTubeClient) SearchVideos(ctx context.Context, query string, maxResults int, publishedAfter *time.Time) ([]YouTubeVideo, error) {
	if maxResults <= 0 || maxResults > 50 {
		maxResults = 25
	}

	params := url.Values{}
	params.Set("part", "id")
	params.Set("type", "video")
	params.Set("q", query)
	params.Set("maxResults", strconv.Itoa(maxResults))
	params.Set("order", "viewCount")
	if publishedAfter != nil {
		params.Set("publishedAfter", publishedAfter.UTC().Format(time.RFC3339))
	}

	var search ytSearchResponse
	if err := c.get(ctx, "/search", params, &search); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(search.Items))
	for _, item := range search.Items {
		if item.ID.VideoID != "" {
			ids = append(ids, item.ID.VideoID)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return c.VideoDetails(ctx, ids)
}

// ChannelVideos returns recent uploads for a channel.
func (c *YouTubeClient) ChannelVideos(ctx context.Context, channelID string, maxResults int) ([]YouTubeVideo, error) {
	if maxResults <= 0 || maxResults > 50 {
		maxResults = 25
	}

	params := url.Values{}
	params.Set("part", "id")
	params.Set("type", "video")
	params.Set("channelId", channelID)
	params.Set("maxResults", strconv.Itoa(maxResults))
	params.Set("order", "date")

	var search ytSearchResponse
	if err := c.get(ctx, "/search", params, &search); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(search.Items))
	for _, item := range search.Items {
		if item.ID.VideoID != "" {
			ids = append(ids, item.ID.VideoID)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return c.VideoDetails(ctx, ids)
}

// VideoDetails hydrates snippet, duration, and statistics for up to 50 IDs.
func (c *YouTubeClient) VideoDetails(ctx context.Context, videoIDs []string) ([]YouTubeVideo, error) {
	if len(videoIDs) == 0 {
		return nil, nil
	}
	if len(videoIDs) > 50 {
		videoIDs = videoIDs[:50]
	}

	params := url.Values{}
	params.Set("part", "snippet,contentDetails,statistics")
	params.Set("id", strings.Join(videoIDs, ","))

	var resp ytVideosResponse
	if err := c.get(ctx, "/videos", params, &resp); err != nil {
		return nil, err
	}

	videos := make([]YouTubeVideo, 0, len(resp.Items))
	for _, item := range resp.Items {
		v := YouTubeVideo{
			ExternalID:   item.ID,
			Title:        item.Snippet.Title,
			ChannelID:    item.Snippet.ChannelID,
			ChannelTitle: item.Snippet.ChannelTitle,
			DurationS:    parseISO8601Duration(item.ContentDetails.Duration),
			ThumbnailURL: item.Snippet.Thumbnails.High.URL,
			Tags:         item.Snippet.Tags,
			Metrics: models.ItemMetrics{
				Views:    parseCount(item.Statistics.ViewCount),
				Likes:    parseCount(item.Statistics.LikeCount),
				Comments: parseCount(item.Statistics.CommentCount),
			},
		}
		if ts, err := time.Parse(time.RFC3339, item.Snippet.PublishedAt); err == nil {
			v.PublishedAt = &ts
		}
		videos = append(videos, v)
	}
	return videos, nil
}

// parseISO8601Duration converts PT#H#M#S to seconds. Invalid input maps
// to zero rather than an error; durations are advisory.
func parseISO8601Duration(s string) float64 {
	s = strings.TrimPrefix(s, "PT")
	if s == "" {
		return 0
	}

	var total float64
	var number strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			number.WriteRune(r)
		case r == 'H' || r == 'M' || r == 'S':
			n, _ := strconv.ParseFloat(number.String(), 64)
			number.Reset()
			switch r {
			case 'H':
				total += n * 3600
			case 'M':
				total += n * 60
			case 'S':
				total += n
			}
		default:
			return total
		}
	}
	return total
}

func parseCount(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
