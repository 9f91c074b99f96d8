// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

package database

import (
	"database/sql"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
)

// marshalJSON serializes a value for a JSON column. Nil values become the
// empty object so columns stay non-null.
func marshalJSON(v any) (string, error) {
	if v == nil {
		return "{}", nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON column: %w", err)
	}
	return string(data), nil
}

// unmarshalJSON deserializes a JSON column into out. Empty and NULL columns
// leave out untouched.
func unmarshalJSON(raw sql.NullString, out any) error {
	if !raw.Valid || raw.String == "" || raw.String == "null" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw.String), out); err != nil {
		return fmt.Errorf("failed to unmarshal JSON column: %w", err)
	}
	return nil
}

// nullTime converts an optional time into a driver-friendly value.
func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

// timePtr converts a scanned nullable timestamp back into a pointer.
func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	utc := t.Time.UTC()
	return &utc
}

// nullString converts an optional string into a driver-friendly value.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// stringVal unwraps a scanned nullable string.
func stringVal(s sql.NullString) string {
	if !s.Valid {
		return ""
	}
	return s.String
}

// floatPtr unwraps a scanned nullable float.
func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}
