// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

package clients

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/clipsight/clipsight/internal/config"
	"github.com/clipsight/clipsight/internal/metrics"
	"github.com/clipsight/clipsight/internal/models"
	"github.com/clipsight/clipsight/internal/optimizer"
)

const defaultOpenAIBase = "https://api.openai.com/v1"

// OpenAIClient calls the chat completions and audio transcription APIs.
// Callers must check Configured() and fall back deterministically when no
// key is present.
type OpenAIClient struct {
	apiKey     string
	baseURL    string
	chatModel  string
	audioModel string
	http       *http.Client
}

var _ optimizer.ScriptGenerator = (*OpenAIClient)(nil)

// NewOpenAIClient builds the provider client.
func NewOpenAIClient(cfg *config.OpenAIConfig) *OpenAIClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultOpenAIBase
	}
	chatModel := cfg.ChatModel
	if chatModel == "" {
		chatModel = "gpt-4o-mini"
	}
	audioModel := cfg.AudioModel
	if audioModel == "" {
		audioModel = "whisper-1"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &OpenAIClient{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		chatModel:  chatModel,
		audioModel: audioModel,
		http:       &http.Client{Timeout: timeout},
	}
}

// Configured reports whether a usable API key is present. Placeholder
// values from sample env files count as unconfigured.
func (c *OpenAIClient) Configured() bool {
	key := strings.TrimSpace(c.apiKey)
	return key != "" && !strings.HasPrefix(key, "your-") && !strings.HasPrefix(key, "sk-placeholder")
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *OpenAIClient) chat(ctx context.Context, req chatRequest) (string, error) {
	if !c.Configured() {
		return "", fmt.Errorf("openai API key not configured")
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to encode chat request: %w", err)
	}

	start := time.Now()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build chat request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	metrics.RecordExternalCall("openai", time.Since(start), err)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read chat response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode chat response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := "unknown error"
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		metrics.ExternalAPIErrors.WithLabelValues("openai").Inc()
		return "", fmt.Errorf("openai returned status %d: %s", resp.StatusCode, msg)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// ChatJSON sends a system+user prompt pair and requires a JSON object
// response.
func (c *OpenAIClient) ChatJSON(ctx context.Context, system, user string) (string, error) {
	return c.chat(ctx, chatRequest{
		Model: c.chatModel,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature:    0.7,
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
}

// AnalyzeFrames sends a vision prompt with inline base64 frames and
// requires a JSON object response. Frames beyond the first ten are ignored.
func (c *OpenAIClient) AnalyzeFrames(ctx context.Context, system, user string, framePaths []string) (string, error) {
	if len(framePaths) > 10 {
		framePaths = framePaths[:10]
	}

	content := []map[string]any{{"type": "text", "text": user}}
	for _, path := range framePaths {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read frame %s: %w", filepath.Base(path), err)
		}
		content = append(content, map[string]any{
			"type": "image_url",
			"image_url": map[string]string{
				"url": "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data),
			},
		})
	}

	return c.chat(ctx, chatRequest{
		Model: c.chatModel,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: content},
		},
		Temperature:    0.4,
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
}

// TranscribeAudio uploads an audio file for transcription and returns the
// plain transcript text.
func (c *OpenAIClient) TranscribeAudio(ctx context.Context, audioPath string) (string, error) {
	if !c.Configured() {
		return "", fmt.Errorf("openai API key not configured")
	}

	file, err := os.Open(audioPath)
	if err != nil {
		return "", fmt.Errorf("failed to open audio file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return "", fmt.Errorf("failed to build transcription form: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", fmt.Errorf("failed to copy audio into form: %w", err)
	}
	if err := writer.WriteField("model", c.audioModel); err != nil {
		return "", fmt.Errorf("failed to write model field: %w", err)
	}
	if err := writer.WriteField("response_format", "text"); err != nil {
		return "", fmt.Errorf("failed to write format field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize transcription form: %w", err)
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", &buf)
	if err != nil {
		return "", fmt.Errorf("failed to build transcription request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	metrics.RecordExternalCall("openai", time.Since(start), err)
	if err != nil {
		return "", fmt.Errorf("transcription request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read transcription response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		metrics.ExternalAPIErrors.WithLabelValues("openai").Inc()
		return "", fmt.Errorf("openai transcription returned status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
	return strings.TrimSpace(string(body)), nil
}

// variantSchemaPrompt is the strict output contract for script generation.
const variantSchemaPrompt = `You write short-form video scripts. Respond with a JSON object:
{"variants":[{"style_key":"variant_a|variant_b|variant_c","structure":{"hook":"...","setup":"...","value":"...","cta":"..."}}]}
variant_a uses an outcome+proof strategy, variant_b a curiosity_gap strategy, variant_c a contrarian strategy. Exactly three variants, one per style key.`

type variantEnvelope struct {
	Variants []optimizer.GeneratedVariant `json:"variants"`
}

// GenerateScriptVariants asks the chat model for the three styled scripts.
// Malformed or missing styles are handled by the optimizer's fallback
// policy, not here.
func (c *OpenAIClient) GenerateScriptVariants(ctx context.Context, req *models.VariantRequest, durationS float64) ([]optimizer.GeneratedVariant, error) {
	user := fmt.Sprintf(
		"Platform: %s\nTopic: %s\nAudience: %s\nObjective: %s\nTone: %s\nTarget duration: %.0f seconds",
		req.Platform, req.Topic, req.Audience, req.Objective, req.Tone, durationS)

	raw, err := c.ChatJSON(ctx, variantSchemaPrompt, user)
	if err != nil {
		return nil, err
	}

	var envelope variantEnvelope
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse variant response: %w", err)
	}
	return envelope.Variants, nil
}
