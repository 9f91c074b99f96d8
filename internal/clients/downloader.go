// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

package clients

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/clipsight/clipsight/internal/logging"
)

// CommandRunner executes an external tool. Tests substitute a fake.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// execRunner shells out for real.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("%s failed: %w: %s", name, err, truncate(string(out), 300))
	}
	return out, nil
}

// Downloader wraps yt-dlp for external media fetches.
type Downloader struct {
	runner CommandRunner
	binary string
}

// NewDownloader builds the yt-dlp wrapper.
func NewDownloader() *Downloader {
	return &Downloader{runner: execRunner{}, binary: "yt-dlp"}
}

// NewDownloaderWithRunner builds the wrapper around a custom runner.
func NewDownloaderWithRunner(runner CommandRunner) *Downloader {
	return &Downloader{runner: runner, binary: "yt-dlp"}
}

// Available reports whether the yt-dlp binary is on PATH.
func (d *Downloader) Available() bool {
	_, err := exec.LookPath(d.binary)
	return err == nil
}

// SafeFilename reduces a name to [a-zA-Z0-9._-], collapsing everything
// else to underscores.
func SafeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := b.String()
	if out == "" {
		out = "media"
	}
	return out
}

// Download fetches a video into destDir and returns the local file path.
// The output template keeps filenames predictable for cleanup sweeps.
func (d *Downloader) Download(ctx context.Context, sourceURL, destDir, baseName string) (string, error) {
	if err := os.MkdirAll(destDir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create download dir: %w", err)
	}

	outTemplate := filepath.Join(destDir, SafeFilename(baseName)+".%(ext)s")
	args := []string{
		"--no-playlist",
		"--no-progress",
		"--max-filesize", "500M",
		"-f", "mp4/best",
		"-o", outTemplate,
		"--print", "after_move:filepath",
		sourceURL,
	}

	out, err := d.runner.Run(ctx, d.binary, args...)
	if err != nil {
		return "", err
	}

	// The last non-empty output line is the printed filepath.
	var path string
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			path = trimmed
		}
	}
	if path == "" {
		return "", fmt.Errorf("yt-dlp produced no output path")
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("downloaded file missing: %w", err)
	}

	logging.Debug().Str("path", path).Msg("Media download finished")
	return path, nil
}

// Subtitles fetches auto-generated captions as VTT text when available.
func (d *Downloader) Subtitles(ctx context.Context, sourceURL, destDir, baseName string) (string, error) {
	if err := os.MkdirAll(destDir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create captions dir: %w", err)
	}

	base := filepath.Join(destDir, SafeFilename(baseName))
	args := []string{
		"--no-playlist",
		"--skip-download",
		"--write-auto-subs",
		"--sub-format", "vtt",
		"--sub-langs", "en.*",
		"-o", base + ".%(ext)s",
		sourceURL,
	}
	if _, err := d.runner.Run(ctx, d.binary, args...); err != nil {
		return "", err
	}

	matches, err := filepath.Glob(base + "*.vtt")
	if err != nil || len(matches) == 0 {
		return "", fmt.Errorf("no captions available")
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		return "", fmt.Errorf("failed to read captions: %w", err)
	}
	return string(data), nil
}
