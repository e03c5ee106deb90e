package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"promotions/internal/promotion/models"
	"promotions/pkg/platform/sentinel"
	"promotions/pkg/platform/tx"
)

// uniqueViolation is the PostgreSQL error code for duplicate keys.
const uniqueViolation = "23505"

// Schema creates the promotions table. It is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS promotions (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	class      TEXT NOT NULL,
	active     BOOLEAN NOT NULL,
	priority   INTEGER NOT NULL,
	condition  JSONB NOT NULL,
	discount   JSONB,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS promotions_active_priority_idx
	ON promotions (priority, created_at, id) WHERE active;
`

const promotionColumns = `id, title, class, active, priority, condition, discount, created_at, updated_at`

// PostgresStore persists promotions in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed promotion store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn returns the transaction carried by ctx, or the pool.
func (s *PostgresStore) conn(ctx context.Context) queryer {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.db
}

// WithinTx runs fn in a transaction. FindByID locks the row it reads while
// the transaction is open.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return tx.Run(ctx, s.db, fn)
}

// Migrate applies Schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("migrate promotions schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, promo *models.Promotion) error {
	if promo == nil {
		return fmt.Errorf("promotion is required")
	}
	query := `
		INSERT INTO promotions (` + promotionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7::jsonb, $8, $9)
	`
	_, err := s.conn(ctx).ExecContext(ctx, query,
		promo.ID, promo.Title, promo.Class, promo.Active, promo.Priority,
		string(promo.If), nullJSON(promo.Then), promo.CreatedAt, promo.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("promotion %s: %w", promo.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("create promotion: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, promo *models.Promotion) error {
	if promo == nil {
		return fmt.Errorf("promotion is required")
	}
	query := `
		UPDATE promotions
		SET title = $2, class = $3, active = $4, priority = $5,
			condition = $6::jsonb, discount = $7::jsonb, updated_at = $8
		WHERE id = $1
	`
	result, err := s.conn(ctx).ExecContext(ctx, query,
		promo.ID, promo.Title, promo.Class, promo.Active, promo.Priority,
		string(promo.If), nullJSON(promo.Then), promo.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update promotion: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update promotion: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("promotion %s: %w", promo.ID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (*models.Promotion, error) {
	query := `SELECT ` + promotionColumns + ` FROM promotions WHERE id = $1`
	if _, inTx := tx.From(ctx); inTx {
		query += ` FOR UPDATE`
	}
	promo, err := scanPromotion(s.conn(ctx).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("promotion %s: %w", id, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find promotion: %w", err)
	}
	return promo, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.Promotion, error) {
	return s.query(ctx, `SELECT `+promotionColumns+` FROM promotions ORDER BY created_at, id`)
}

// ListActive returns active promotions by ascending priority.
func (s *PostgresStore) ListActive(ctx context.Context) ([]*models.Promotion, error) {
	return s.query(ctx, `SELECT `+promotionColumns+` FROM promotions WHERE active ORDER BY priority, created_at, id`)
}

func (s *PostgresStore) query(ctx context.Context, query string, args ...any) ([]*models.Promotion, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list promotions: %w", err)
	}
	defer rows.Close()

	var out []*models.Promotion
	for rows.Next() {
		promo, err := scanPromotion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan promotion: %w", err)
		}
		out = append(out, promo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list promotions: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPromotion(row rowScanner) (*models.Promotion, error) {
	var (
		promo          models.Promotion
		cond, discount []byte
	)
	err := row.Scan(
		&promo.ID, &promo.Title, &promo.Class, &promo.Active, &promo.Priority,
		&cond, &discount, &promo.CreatedAt, &promo.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	promo.If = json.RawMessage(cond)
	if discount != nil {
		promo.Then = json.RawMessage(discount)
	}
	return &promo, nil
}

func nullJSON(raw json.RawMessage) sql.NullString {
	if len(raw) == 0 || string(raw) == "null" {
		return sql.NullString{}
	}
	return sql.NullString{String: string(raw), Valid: true}
}
