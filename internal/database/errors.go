// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

package database

import "errors"

// ErrNotFound is returned when a row does not exist or is not owned by the
// scoped user. Callers translate it to a NotFound error kind at the edge.
var ErrNotFound = errors.New("not found")
