// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

package media

import (
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/clipsight/clipsight/internal/config"
	"github.com/clipsight/clipsight/internal/logging"
)

// SweepUploads removes files in the uploads tree older than the configured
// retention window. A zero retention disables the sweep.
func SweepUploads(cfg *config.UploadsConfig) {
	if cfg.RetentionHours <= 0 {
		return
	}
	cutoff := time.Now().Add(-time.Duration(cfg.RetentionHours) * time.Hour)

	removed := 0
	err := filepath.WalkDir(cfg.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil //nolint:nilerr // unreadable entries are skipped, not fatal
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().Before(cutoff) {
			if rmErr := os.Remove(path); rmErr == nil {
				removed++
			}
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		logging.Warn().Err(err).Str("dir", cfg.Dir).Msg("Upload retention sweep failed")
		return
	}
	if removed > 0 {
		logging.Info().Int("removed", removed).Msg("Upload retention sweep removed expired files")
	}
}
