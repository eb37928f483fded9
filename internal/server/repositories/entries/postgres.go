// Package entries provides the PostgreSQL repository of the record service.
package entries

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/lifedash/internal/common"
	"github.com/dmitrijs2005/lifedash/internal/dbx"
	"github.com/dmitrijs2005/lifedash/internal/models"
)

const columns = `id, domain, title, description, metadata, owner_id, scope_id, created_at, updated_at`

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

var _ Repository = (*PostgresRepository)(nil)

// ScopeClause returns the WHERE fragment selecting rows of scope, using
// placeholder $n. Rows without a scope only belong to the default scope.
func ScopeClause(scope string, n int) (string, any) {
	scope = models.ScopeOrDefault(scope)
	if scope == models.DefaultScope {
		return fmt.Sprintf("(scope_id = $%d OR scope_id IS NULL)", n), scope
	}
	return fmt.Sprintf("scope_id = $%d", n), scope
}

func (r *PostgresRepository) List(ctx context.Context, ownerID, domain, scope string) ([]models.Entry, error) {
	query := `SELECT ` + columns + ` FROM entries WHERE owner_id = $1`
	args := []any{ownerID}
	if domain != "" {
		args = append(args, domain)
		query += fmt.Sprintf(" AND domain = $%d", len(args))
	}
	clause, arg := ScopeClause(scope, len(args)+1)
	args = append(args, arg)
	query += " AND " + clause + " ORDER BY created_at, id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select entries: %w", err)
	}
	defer rows.Close()

	result := []models.Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) Get(ctx context.Context, ownerID, id string) (models.Entry, error) {
	query := `SELECT ` + columns + ` FROM entries WHERE id = $1 AND owner_id = $2 FOR UPDATE`
	e, err := scanEntry(r.db.QueryRowContext(ctx, query, id, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Entry{}, common.ErrNotFound
	}
	if err != nil {
		return models.Entry{}, fmt.Errorf("failed to select entry: %w", err)
	}
	return e, nil
}

func (r *PostgresRepository) Insert(ctx context.Context, e models.Entry) error {
	meta, err := encodeMetadata(e.Metadata)
	if err != nil {
		return err
	}
	query := `INSERT INTO entries (` + columns + `)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7, $8, $9)`
	_, err = r.db.ExecContext(ctx, query,
		e.ID, e.Domain, e.Title, e.Description, meta, e.OwnerID, nullString(e.ScopeID), e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Update(ctx context.Context, e models.Entry) error {
	meta, err := encodeMetadata(e.Metadata)
	if err != nil {
		return err
	}
	query := `UPDATE entries SET title = $1, description = $2, metadata = $3::jsonb, updated_at = $4
		WHERE id = $5 AND owner_id = $6`
	res, err := r.db.ExecContext(ctx, query, e.Title, e.Description, meta, e.UpdatedAt, e.ID, e.OwnerID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return dbx.ExactlyOne(res, common.ErrNotFound)
}

func (r *PostgresRepository) Delete(ctx context.Context, ownerID, id string) ([]models.Entry, error) {
	query := `DELETE FROM entries WHERE id = $1 AND owner_id = $2 RETURNING ` + columns
	rows, err := r.db.QueryContext(ctx, query, id, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete entry: %w", err)
	}
	defer rows.Close()

	var removed []models.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		removed = append(removed, e)
	}
	return removed, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (models.Entry, error) {
	var (
		e     models.Entry
		meta  []byte
		scope sql.NullString
	)
	if err := s.Scan(&e.ID, &e.Domain, &e.Title, &e.Description, &meta, &e.OwnerID, &scope, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return models.Entry{}, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &e.Metadata); err != nil {
			return models.Entry{}, fmt.Errorf("decode metadata of %s: %w", e.ID, err)
		}
	}
	if scope.Valid {
		e.ScopeID = models.StringPtr(scope.String)
	}
	return e, nil
}

func encodeMetadata(m map[string]any) (string, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	return string(b), nil
}

func nullString(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
