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
	"sort"
	"strconv"
	"strings"
)

// FFmpeg wraps ffmpeg/ffprobe for audit preprocessing.
type FFmpeg struct {
	runner CommandRunner
}

// NewFFmpeg builds the tool wrapper.
func NewFFmpeg() *FFmpeg {
	return &FFmpeg{runner: execRunner{}}
}

// NewFFmpegWithRunner builds the wrapper around a custom runner.
func NewFFmpegWithRunner(runner CommandRunner) *FFmpeg {
	return &FFmpeg{runner: runner}
}

// Available reports whether both binaries are on PATH.
func (f *FFmpeg) Available() bool {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return false
	}
	_, err := exec.LookPath("ffprobe")
	return err == nil
}

// ProbeDuration returns a media file's duration in seconds.
func (f *FFmpeg) ProbeDuration(ctx context.Context, path string) (float64, error) {
	out, err := f.runner.Run(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path)
	if err != nil {
		return 0, err
	}

	dur, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse probed duration %q: %w", strings.TrimSpace(string(out)), err)
	}
	return dur, nil
}

// ExtractFrames samples one frame per intervalS seconds into destDir and
// returns the frame paths in timeline order.
func (f *FFmpeg) ExtractFrames(ctx context.Context, videoPath, destDir string, intervalS float64) ([]string, error) {
	if intervalS <= 0 {
		intervalS = 5
	}
	if err := os.MkdirAll(destDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create frames dir: %w", err)
	}

	pattern := filepath.Join(destDir, "frame_%04d.jpg")
	_, err := f.runner.Run(ctx, "ffmpeg",
		"-hide_banner", "-loglevel", "error",
		"-i", videoPath,
		"-vf", fmt.Sprintf("fps=1/%g", intervalS),
		"-q:v", "4",
		pattern)
	if err != nil {
		return nil, err
	}

	frames, err := filepath.Glob(filepath.Join(destDir, "frame_*.jpg"))
	if err != nil {
		return nil, fmt.Errorf("failed to list frames: %w", err)
	}
	sort.Strings(frames)
	return frames, nil
}

// ExtractAudio writes a mono 16 kHz mp3 next to the frames for
// transcription and returns its path.
func (f *FFmpeg) ExtractAudio(ctx context.Context, videoPath, destDir string) (string, error) {
	if err := os.MkdirAll(destDir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create audio dir: %w", err)
	}

	audioPath := filepath.Join(destDir, "audio.mp3")
	_, err := f.runner.Run(ctx, "ffmpeg",
		"-hide_banner", "-loglevel", "error",
		"-i", videoPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-b:a", "64k",
		audioPath)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(audioPath); err != nil {
		return "", fmt.Errorf("extracted audio missing: %w", err)
	}
	return audioPath, nil
}
