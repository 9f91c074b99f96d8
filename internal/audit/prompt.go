// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

package audit

import (
	"fmt"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/clipsight/clipsight/internal/models"
	"github.com/clipsight/clipsight/internal/optimizer"
)

// promptTranscriptMax bounds the transcript portion of the user prompt.
const promptTranscriptMax = 10000

// analysisSystemPrompt constrains the model to the strict analysis schema.
const analysisSystemPrompt = `You are a short-form video coach reviewing a creator's video from sampled frames and a timed transcript.
Respond with ONLY a JSON object, no prose and no markdown, matching exactly:
{
  "video_id": string,
  "overall_score": number between 0 and 10,
  "summary": string,
  "sections": [{"name": string, "score": number between 0 and 10, "feedback": [string]}],
  "timestamp_feedback": [{"timestamp": "MM:SS", "category": "Hook"|"Pacing"|"Visuals"|"Audio", "observation": string, "impact": "Positive"|"Negative"|"Neutral", "suggestion": string}]
}
Sections must cover Hook, Pacing, Visuals, and Audio. Timestamps must reference moments visible in the transcript.`

// buildUserPrompt assembles the title and timestamped transcript, capped
// at promptTranscriptMax chars of transcript.
func buildUserPrompt(title string, tr optimizer.Transcript) string {
	var b strings.Builder
	if strings.TrimSpace(title) != "" {
		fmt.Fprintf(&b, "Video title: %s\n\n", strings.TrimSpace(title))
	}
	b.WriteString("Timed transcript:\n")

	written := 0
	for _, seg := range tr.Segments {
		line := fmt.Sprintf("[%s] %s\n", formatTimestamp(seg.Start), seg.Text)
		if written+len(line) > promptTranscriptMax {
			b.WriteString("[transcript truncated]\n")
			break
		}
		b.WriteString(line)
		written += len(line)
	}
	if len(tr.Segments) == 0 {
		text := tr.Text
		if len(text) > promptTranscriptMax {
			text = text[:promptTranscriptMax]
		}
		b.WriteString(text)
		b.WriteString("\n")
	}

	b.WriteString("\nThe attached images are frames sampled uniformly across the video.")
	return b.String()
}

// formatTimestamp renders seconds as MM:SS.
func formatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// parseAnalysis decodes a provider response into a VideoAnalysis,
// tolerating markdown fences and clamping the overall score.
func parseAnalysis(raw, videoID string) (*models.VideoAnalysis, error) {
	cleaned := strings.TrimSpace(raw)
	if start := strings.Index(cleaned, "{"); start >= 0 {
		if end := strings.LastIndex(cleaned, "}"); end > start {
			cleaned = cleaned[start : end+1]
		}
	}

	var analysis models.VideoAnalysis
	if err := json.Unmarshal([]byte(cleaned), &analysis); err != nil {
		return nil, fmt.Errorf("analysis response is not valid JSON: %w", err)
	}
	if len(analysis.Sections) == 0 {
		return nil, fmt.Errorf("analysis response has no sections")
	}

	if analysis.VideoID == "" {
		analysis.VideoID = videoID
	}
	if analysis.OverallScore < 0 {
		analysis.OverallScore = 0
	}
	if analysis.OverallScore > 10 {
		analysis.OverallScore = 10
	}
	for i := range analysis.Sections {
		if analysis.Sections[i].Score < 0 {
			analysis.Sections[i].Score = 0
		}
		if analysis.Sections[i].Score > 10 {
			analysis.Sections[i].Score = 10
		}
	}
	return &analysis, nil
}
