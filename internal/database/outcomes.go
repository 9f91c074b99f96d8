// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clipsight/clipsight/internal/models"
)

const outcomeColumns = `id, user_id, platform, content_item_id, draft_snapshot_id, report_id,
	video_external_id, posted_at, actual_metrics, retention_points, predicted_score,
	actual_score, calibration_delta, created_at`

// AppendOutcomeMetric writes one immutable outcome row.
func (db *DB) AppendOutcomeMetric(ctx context.Context, m *models.OutcomeMetric) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	metrics, err := marshalJSON(m.ActualMetrics)
	if err != nil {
		return err
	}
	var retention any
	if m.RetentionPoints != nil {
		raw, err := marshalJSON(m.RetentionPoints)
		if err != nil {
			return err
		}
		retention = raw
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO outcome_metrics (
			id, user_id, platform, content_item_id, draft_snapshot_id, report_id,
			video_external_id, posted_at, actual_metrics, retention_points,
			predicted_score, actual_score, calibration_delta, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.UserID, string(m.Platform), nullString(m.ContentItemID),
		nullString(m.DraftSnapshotID), nullString(m.ReportID),
		nullString(m.VideoExternalID), m.PostedAt.UTC(), metrics, retention,
		nullFloat(m.PredictedScore), m.ActualScore, nullFloat(m.CalibrationDelta),
		m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert outcome metric: %w", err)
	}
	return nil
}

// RecentOutcomeMetrics lists the newest outcomes for (user, platform).
func (db *DB) RecentOutcomeMetrics(ctx context.Context, userID string, platform models.Platform, limit int) ([]models.OutcomeMetric, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if limit <= 0 {
		limit = 250
	}
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+outcomeColumns+` FROM outcome_metrics
		 WHERE user_id = ? AND platform = ?
		 ORDER BY created_at DESC LIMIT ?`,
		userID, string(platform), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list outcome metrics: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return collectOutcomes(rows)
}

// OutcomeMetricsSince lists outcomes posted after the cutoff.
func (db *DB) OutcomeMetricsSince(ctx context.Context, userID string, platform models.Platform, since time.Time) ([]models.OutcomeMetric, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+outcomeColumns+` FROM outcome_metrics
		 WHERE user_id = ? AND platform = ? AND posted_at >= ?
		 ORDER BY posted_at DESC`,
		userID, string(platform), since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list outcome metrics since: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return collectOutcomes(rows)
}

// OutcomeByReportID finds the outcome linked to an audit report.
func (db *DB) OutcomeByReportID(ctx context.Context, userID, reportID string) (*models.OutcomeMetric, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+outcomeColumns+` FROM outcome_metrics
		 WHERE user_id = ? AND report_id = ?
		 ORDER BY created_at DESC LIMIT 1`, userID, reportID)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcome by report: %w", err)
	}
	defer func() { _ = rows.Close() }()

	outcomes, err := collectOutcomes(rows)
	if err != nil {
		return nil, err
	}
	if len(outcomes) == 0 {
		return nil, ErrNotFound
	}
	return &outcomes[0], nil
}

// DistinctOutcomePairs enumerates all (user, platform) pairs present in the
// outcome store. Used by bulk recalibration.
func (db *DB) DistinctOutcomePairs(ctx context.Context) ([][2]string, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT DISTINCT user_id, platform FROM outcome_metrics ORDER BY user_id, platform`)
	if err != nil {
		return nil, fmt.Errorf("failed to list outcome pairs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var pairs [][2]string
	for rows.Next() {
		var userID, platform string
		if err := rows.Scan(&userID, &platform); err != nil {
			return nil, fmt.Errorf("failed to scan outcome pair: %w", err)
		}
		pairs = append(pairs, [2]string{userID, platform})
	}
	return pairs, rows.Err()
}

func collectOutcomes(rows *sql.Rows) ([]models.OutcomeMetric, error) {
	var outcomes []models.OutcomeMetric
	for rows.Next() {
		var (
			m         models.OutcomeMetric
			platform  string
			contentID sql.NullString
			draftID   sql.NullString
			reportID  sql.NullString
			videoID   sql.NullString
			metrics   sql.NullString
			retention sql.NullString
			predicted sql.NullFloat64
			delta     sql.NullFloat64
		)
		err := rows.Scan(&m.ID, &m.UserID, &platform, &contentID, &draftID,
			&reportID, &videoID, &m.PostedAt, &metrics, &retention,
			&predicted, &m.ActualScore, &delta, &m.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outcome metric: %w", err)
		}
		m.Platform = models.Platform(platform)
		m.ContentItemID = stringVal(contentID)
		m.DraftSnapshotID = stringVal(draftID)
		m.ReportID = stringVal(reportID)
		m.VideoExternalID = stringVal(videoID)
		if err := unmarshalJSON(metrics, &m.ActualMetrics); err != nil {
			return nil, err
		}
		if retention.Valid {
			if err := unmarshalJSON(retention, &m.RetentionPoints); err != nil {
				return nil, err
			}
		}
		m.PredictedScore = floatPtr(predicted)
		m.CalibrationDelta = floatPtr(delta)
		outcomes = append(outcomes, m)
	}
	return outcomes, rows.Err()
}

// ============================================================================
// Calibration Snapshots
// ============================================================================

// UpsertCalibrationSnapshot replaces the snapshot for (user, platform).
// Refresh is last-write-wins.
func (db *DB) UpsertCalibrationSnapshot(ctx context.Context, s *models.CalibrationSnapshot) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	s.UpdatedAt = time.Now().UTC()

	recommendations, err := marshalJSON(s.Recommendations)
	if err != nil {
		return err
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin snapshot transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`DELETE FROM calibration_snapshots WHERE user_id = ? AND platform = ?`,
		s.UserID, string(s.Platform))
	if err != nil {
		return fmt.Errorf("failed to clear calibration snapshot: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO calibration_snapshots (id, user_id, platform, sample_size, mean_abs_error, hit_rate, trend, confidence, recommendations, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, string(s.Platform), s.SampleSize, s.MeanAbsError,
		s.HitRate, string(s.Trend), string(s.Confidence), recommendations,
		s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert calibration snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit calibration snapshot: %w", err)
	}
	return nil
}

// GetCalibrationSnapshot retrieves the snapshot for (user, platform).
func (db *DB) GetCalibrationSnapshot(ctx context.Context, userID string, platform models.Platform) (*models.CalibrationSnapshot, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var (
		s               models.CalibrationSnapshot
		platformStr     string
		trend           string
		confidence      string
		recommendations sql.NullString
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, user_id, platform, sample_size, mean_abs_error, hit_rate, trend, confidence, recommendations, updated_at
		 FROM calibration_snapshots WHERE user_id = ? AND platform = ?`,
		userID, string(platform)).
		Scan(&s.ID, &s.UserID, &platformStr, &s.SampleSize, &s.MeanAbsError,
			&s.HitRate, &trend, &confidence, &recommendations, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query calibration snapshot: %w", err)
	}
	s.Platform = models.Platform(platformStr)
	s.Trend = models.CalibrationTrend(trend)
	s.Confidence = models.Confidence(confidence)
	s.Recommendations = []string{}
	if err := unmarshalJSON(recommendations, &s.Recommendations); err != nil {
		return nil, err
	}
	return &s, nil
}
