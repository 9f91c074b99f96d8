// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

package blueprint

import (
	"crypto/sha1"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/clipsight/clipsight/internal/models"
)

// competitorSignature is a stable SHA1 over the platform, the sorted
// competitor external IDs, and, for instagram/tiktok, the sorted research
// item IDs. Any roster change invalidates the cached blueprint.
func competitorSignature(platform models.Platform, competitors []models.Competitor, researchItemIDs []string) string {
	externalIDs := make([]string, 0, len(competitors))
	for _, c := range competitors {
		externalIDs = append(externalIDs, c.ExternalID)
	}
	sort.Strings(externalIDs)

	parts := []string{string(platform)}
	parts = append(parts, externalIDs...)

	if platform == models.PlatformInstagram || platform == models.PlatformTikTok {
		ids := make([]string, len(researchItemIDs))
		copy(ids, researchItemIDs)
		sort.Strings(ids)
		parts = append(parts, ids...)
	}

	sum := sha1.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
