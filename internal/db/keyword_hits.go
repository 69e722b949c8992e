package db

import (
	"context"

	"livesub/internal/models"
)

// IncrementKeywordHit upserts a keyword hit count by component.
func (d *DB) IncrementKeywordHit(ctx context.Context, keyword, component string) error {
	_, err := d.Pool.Exec(ctx, `
		INSERT INTO keyword_hits (keyword, component, count, last_seen_at)
		VALUES ($1, $2, 1, NOW())
		ON CONFLICT (keyword, component) DO UPDATE
		SET count = keyword_hits.count + 1, last_seen_at = NOW()
	`, keyword, component)
	return err
}

// GetAllKeywordHits returns all keyword hit rows for metrics export.
func (d *DB) GetAllKeywordHits(ctx context.Context) ([]models.KeywordHit, error) {
	rows, err := d.Pool.Query(ctx, `SELECT keyword, component, count, last_seen_at FROM keyword_hits`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []models.KeywordHit
	for rows.Next() {
		var h models.KeywordHit
		if err := rows.Scan(&h.Keyword, &h.Component, &h.Count, &h.LastSeenAt); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}
