// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

// Package models defines the persisted entities and API payloads shared by
// all Clipsight components. Entities are plain structs; open mappings such
// as ResearchItem.MediaMeta use JSONMap and are merged, never replaced.
package models

import "time"

// Platform identifies a social-video platform.
type Platform string

const (
	PlatformYouTube   Platform = "youtube"
	PlatformInstagram Platform = "instagram"
	PlatformTikTok    Platform = "tiktok"
)

// Valid reports whether the platform is one of the supported values.
func (p Platform) Valid() bool {
	switch p {
	case PlatformYouTube, PlatformInstagram, PlatformTikTok:
		return true
	}
	return false
}

// FormatType classifies content length.
type FormatType string

const (
	FormatShort   FormatType = "short_form"
	FormatLong    FormatType = "long_form"
	FormatUnknown FormatType = "unknown"
)

// FormatFor returns the format type for a duration in seconds.
// Zero duration is unknown; at most 60 seconds is short form.
func FormatFor(durationSeconds float64) FormatType {
	switch {
	case durationSeconds <= 0:
		return FormatUnknown
	case durationSeconds <= 60:
		return FormatShort
	default:
		return FormatLong
	}
}

// User is the root of every ownership edge. Created lazily on first reference.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// JSONMap is an open string-keyed mapping persisted as JSON.
type JSONMap map[string]any

// Merge copies entries from other into a copy of m and returns it.
// Neither input is mutated; nil receivers are treated as empty.
func (m JSONMap) Merge(other JSONMap) JSONMap {
	out := make(JSONMap, len(m)+len(other))
	for k, v := range m {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// GetString returns the string value for key, or "" when absent or not a string.
func (m JSONMap) GetString(key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetBool returns the bool value for key, or false when absent or not a bool.
func (m JSONMap) GetBool(key string) bool {
	if v, ok := m[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return false
}

// GetFloat returns a numeric value for key as float64, handling the
// float64/int/int64 shapes JSON decoding produces.
func (m JSONMap) GetFloat(key string) (float64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// Confidence grades how much a score can be trusted.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// MinConfidence returns the lower of two confidence grades.
func MinConfidence(a, b Confidence) Confidence {
	rank := func(c Confidence) int {
		switch c {
		case ConfidenceHigh:
			return 2
		case ConfidenceMedium:
			return 1
		default:
			return 0
		}
	}
	if rank(a) <= rank(b) {
		return a
	}
	return b
}
