package db

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"livesub/internal/models"
)

// keywordPairColumns is the standard column list for keyword pair queries.
const keywordPairColumns = `id, source, replacement, enabled, created_at, updated_at`

// scanKeywordPair scans a row into a KeywordPair.
func scanKeywordPair(row pgx.Row) (*models.KeywordPair, error) {
	var p models.KeywordPair
	err := row.Scan(&p.ID, &p.Source, &p.Replacement, &p.Enabled, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrKeywordPairNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// scanKeywordPairs scans multiple rows into a slice of KeywordPairs.
func scanKeywordPairs(rows pgx.Rows) ([]models.KeywordPair, error) {
	defer rows.Close()

	var pairs []models.KeywordPair
	for rows.Next() {
		p, err := scanKeywordPair(rows)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, *p)
	}
	return pairs, rows.Err()
}

// ListKeywordPairs returns every pair ordered by source.
func (d *DB) ListKeywordPairs(ctx context.Context) ([]models.KeywordPair, error) {
	rows, err := d.Pool.Query(ctx, `SELECT `+keywordPairColumns+` FROM keyword_pairs ORDER BY source`)
	if err != nil {
		return nil, err
	}
	return scanKeywordPairs(rows)
}

// ListEnabledKeywordPairs returns the pairs that make up the live mapping.
func (d *DB) ListEnabledKeywordPairs(ctx context.Context) ([]models.KeywordPair, error) {
	rows, err := d.Pool.Query(ctx, `SELECT `+keywordPairColumns+` FROM keyword_pairs WHERE enabled ORDER BY source`)
	if err != nil {
		return nil, err
	}
	return scanKeywordPairs(rows)
}

// GetKeywordPairByID retrieves a pair by ID.
func (d *DB) GetKeywordPairByID(ctx context.Context, id uuid.UUID) (*models.KeywordPair, error) {
	return scanKeywordPair(d.Pool.QueryRow(ctx,
		`SELECT `+keywordPairColumns+` FROM keyword_pairs WHERE id = $1`, id))
}

// CreateKeywordPair inserts a new pair and fills in its generated fields.
func (d *DB) CreateKeywordPair(ctx context.Context, p *models.KeywordPair) error {
	if p.Source == "" {
		return ErrEmptySource
	}
	err := d.Pool.QueryRow(ctx, `
		INSERT INTO keyword_pairs (source, replacement, enabled)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`, p.Source, p.Replacement, p.Enabled).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateSource
		}
		return err
	}
	return nil
}

// UpdateKeywordPair changes a pair's replacement and enabled flag.
func (d *DB) UpdateKeywordPair(ctx context.Context, id uuid.UUID, replacement string, enabled bool) (*models.KeywordPair, error) {
	return scanKeywordPair(d.Pool.QueryRow(ctx, `
		UPDATE keyword_pairs
		SET replacement = $2, enabled = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING `+keywordPairColumns,
		id, replacement, enabled))
}

// DeleteKeywordPair removes a pair.
func (d *DB) DeleteKeywordPair(ctx context.Context, id uuid.UUID) error {
	result, err := d.Pool.Exec(ctx, `DELETE FROM keyword_pairs WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrKeywordPairNotFound
	}
	return nil
}
