// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

// research.go - Research Corpus Database Operations
//
// CRUD and search over research items, collections, and exports. Search
// applies platform/collection/timeframe filters, free-text contains over
// the descriptive fields, and stable sorts (secondary order by id).

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clipsight/clipsight/internal/models"
)

// itemSortColumns whitelists sortable columns. posted_at maps to the
// published_at column.
var itemSortColumns = map[string]string{
	"created_at": "created_at",
	"posted_at":  "published_at",
	"views":      "views",
	"likes":      "likes",
	"comments":   "comments",
	"shares":     "shares",
	"saves":      "saves",
}

// timeframeCutoff returns the cutoff instant for a timeframe, or zero when
// the timeframe disables filtering.
func timeframeCutoff(timeframe string, now time.Time) time.Time {
	switch timeframe {
	case "24h":
		return now.Add(-24 * time.Hour)
	case "7d":
		return now.Add(-7 * 24 * time.Hour)
	case "30d":
		return now.Add(-30 * 24 * time.Hour)
	case "90d":
		return now.Add(-90 * 24 * time.Hour)
	default: // "all" or empty
		return time.Time{}
	}
}

// CreateResearchItem inserts a new research item.
func (db *DB) CreateResearchItem(ctx context.Context, item *models.ResearchItem) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	if item.MediaMeta == nil {
		item.MediaMeta = models.JSONMap{}
	}

	metaJSON, err := marshalJSON(item.MediaMeta)
	if err != nil {
		return err
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO research_items (
			id, user_id, collection_id, platform, source_type, url, external_id,
			creator_handle, creator_display_name, title, caption,
			views, likes, comments, shares, saves,
			media_meta, published_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.UserID, nullString(item.CollectionID), string(item.Platform),
		string(item.SourceType), nullString(item.URL), nullString(item.ExternalID),
		nullString(item.CreatorHandle), nullString(item.CreatorDisplayName),
		nullString(item.Title), nullString(item.Caption),
		item.Metrics.Views, item.Metrics.Likes, item.Metrics.Comments,
		item.Metrics.Shares, item.Metrics.Saves,
		metaJSON, nullTime(item.PublishedAt), item.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert research item: %w", err)
	}
	return nil
}

const researchItemColumns = `id, user_id, collection_id, platform, source_type, url, external_id,
	creator_handle, creator_display_name, title, caption,
	views, likes, comments, shares, saves,
	media_meta, published_at, created_at`

// GetResearchItem retrieves an item scoped to its owner.
func (db *DB) GetResearchItem(ctx context.Context, userID, id string) (*models.ResearchItem, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx,
		`SELECT `+researchItemColumns+` FROM research_items WHERE id = ? AND user_id = ?`,
		id, userID)
	return scanResearchItem(row)
}

// MergeResearchItemMeta merges entries into the item's media_meta mapping.
// Existing keys not present in patch are preserved.
func (db *DB) MergeResearchItemMeta(ctx context.Context, userID, id string, patch models.JSONMap) (*models.ResearchItem, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	item, err := db.GetResearchItem(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	item.MediaMeta = item.MediaMeta.Merge(patch)

	metaJSON, err := marshalJSON(item.MediaMeta)
	if err != nil {
		return nil, err
	}
	_, err = db.conn.ExecContext(ctx,
		`UPDATE research_items SET media_meta = ? WHERE id = ? AND user_id = ?`,
		metaJSON, id, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to update research item meta: %w", err)
	}
	return item, nil
}

// UpdateResearchItemMetrics replaces the engagement counters for an item.
func (db *DB) UpdateResearchItemMetrics(ctx context.Context, userID, id string, m models.ItemMetrics) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(ctx,
		`UPDATE research_items SET views = ?, likes = ?, comments = ?, shares = ?, saves = ?
		 WHERE id = ? AND user_id = ?`,
		m.Views, m.Likes, m.Comments, m.Shares, m.Saves, id, userID)
	if err != nil {
		return fmt.Errorf("failed to update research item metrics: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// AssignCollection moves an item into a collection. An item belongs to at
// most one collection at a time.
func (db *DB) AssignCollection(ctx context.Context, userID, itemID, collectionID string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(ctx,
		`UPDATE research_items SET collection_id = ? WHERE id = ? AND user_id = ?`,
		nullString(collectionID), itemID, userID)
	if err != nil {
		return fmt.Errorf("failed to assign collection: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SearchResearchItems applies filters, sorting, and pagination. Sorts are
// stable: ties break on item id ascending.
func (db *DB) SearchResearchItems(ctx context.Context, userID string, f models.ItemSearchFilters) (*models.ItemPage, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	where := []string{"user_id = ?"}
	args := []any{userID}

	if f.Platform != "" {
		where = append(where, "platform = ?")
		args = append(args, string(f.Platform))
	}
	if f.CollectionID != "" {
		where = append(where, "collection_id = ?")
		args = append(args, f.CollectionID)
	}
	if cutoff := timeframeCutoff(f.Timeframe, time.Now().UTC()); !cutoff.IsZero() {
		where = append(where, "COALESCE(published_at, created_at) >= ?")
		args = append(args, cutoff)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		where = append(where, `(LOWER(COALESCE(title, '')) LIKE ?
			OR LOWER(COALESCE(caption, '')) LIKE ?
			OR LOWER(COALESCE(creator_handle, '')) LIKE ?
			OR LOWER(COALESCE(creator_display_name, '')) LIKE ?)`)
		args = append(args, like, like, like, like)
	}

	whereClause := strings.Join(where, " AND ")

	var total int
	countQuery := "SELECT COUNT(*) FROM research_items WHERE " + whereClause
	if err := db.conn.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count research items: %w", err)
	}

	sortCol, ok := itemSortColumns[f.SortBy]
	if !ok {
		sortCol = "created_at"
	}
	dir := "DESC"
	if strings.EqualFold(f.SortDirection, "asc") {
		dir = "ASC"
	}

	page := f.Page
	if page < 1 {
		page = 1
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset := (page - 1) * limit

	query := fmt.Sprintf(
		`SELECT %s FROM research_items WHERE %s ORDER BY %s %s, id ASC LIMIT ? OFFSET ?`,
		researchItemColumns, whereClause, sortCol, dir)
	args = append(args, limit, offset)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search research items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := make([]models.ResearchItem, 0, limit)
	for rows.Next() {
		item, err := scanResearchItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate research items: %w", err)
	}

	totalPages := (total + limit - 1) / limit
	return &models.ItemPage{
		Items:      items,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
	}, nil
}

// ListResearchItemsByIDs fetches items by id preserving ownership scoping.
func (db *DB) ListResearchItemsByIDs(ctx context.Context, userID string, ids []string) ([]models.ResearchItem, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat("?, ", len(ids)-1) + "?"
	args := make([]any, 0, len(ids)+1)
	args = append(args, userID)
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := db.conn.QueryContext(ctx,
		fmt.Sprintf(`SELECT %s FROM research_items WHERE user_id = ? AND id IN (%s)`,
			researchItemColumns, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query research items by ids: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []models.ResearchItem
	for rows.Next() {
		item, err := scanResearchItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// rowScanner abstracts sql.Row and sql.Rows for shared scan helpers.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanResearchItem(row rowScanner) (*models.ResearchItem, error) {
	var (
		item         models.ResearchItem
		collectionID sql.NullString
		platform     string
		sourceType   string
		url          sql.NullString
		externalID   sql.NullString
		handle       sql.NullString
		displayName  sql.NullString
		title        sql.NullString
		caption      sql.NullString
		metaRaw      sql.NullString
		publishedAt  sql.NullTime
	)
	err := row.Scan(&item.ID, &item.UserID, &collectionID, &platform, &sourceType,
		&url, &externalID, &handle, &displayName, &title, &caption,
		&item.Metrics.Views, &item.Metrics.Likes, &item.Metrics.Comments,
		&item.Metrics.Shares, &item.Metrics.Saves,
		&metaRaw, &publishedAt, &item.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan research item: %w", err)
	}

	item.CollectionID = stringVal(collectionID)
	item.Platform = models.Platform(platform)
	item.SourceType = models.SourceType(sourceType)
	item.URL = stringVal(url)
	item.ExternalID = stringVal(externalID)
	item.CreatorHandle = stringVal(handle)
	item.CreatorDisplayName = stringVal(displayName)
	item.Title = stringVal(title)
	item.Caption = stringVal(caption)
	item.MediaMeta = models.JSONMap{}
	if err := unmarshalJSON(metaRaw, &item.MediaMeta); err != nil {
		return nil, err
	}
	item.PublishedAt = timePtr(publishedAt)
	return &item, nil
}
