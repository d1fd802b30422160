// Package postgres persists analysis results in a Postgres users table.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/siteintel/internal/analytics"
	"github.com/JakeFAU/siteintel/internal/store"
)

var validIdentifier = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Defaults matching the existing users schema.
const (
	DefaultTable  = "users"
	DefaultColumn = "similarweb_result"
)

// Config controls the Postgres connection pool and the target table/column.
type Config struct {
	DSN             string
	Table           string
	Column          string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// ResultStore upserts the JSON-encoded results into one column of the row
// keyed by user id.
type ResultStore struct {
	pool   pool
	table  string
	column string
}

var _ store.ResultStore = (*ResultStore)(nil)

// New creates a Postgres-backed ResultStore using the provided config.
func New(ctx context.Context, cfg Config) (*ResultStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table, column, err := identifiers(cfg.Table, cfg.Column)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &ResultStore{pool: p, table: table, column: column}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(p pool, table, column string) (*ResultStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	table, column, err := identifiers(table, column)
	if err != nil {
		return nil, err
	}
	return &ResultStore{pool: p, table: table, column: column}, nil
}

func identifiers(table, column string) (string, string, error) {
	if table == "" {
		table = DefaultTable
	}
	if column == "" {
		column = DefaultColumn
	}
	if !validIdentifier.MatchString(table) {
		return "", "", fmt.Errorf("invalid table name %q", table)
	}
	if !validIdentifier.MatchString(column) {
		return "", "", fmt.Errorf("invalid column name %q", column)
	}
	return table, column, nil
}

// Close releases the underlying pool resources.
func (s *ResultStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// SaveResults writes results for userID, replacing whatever was stored before.
func (s *ResultStore) SaveResults(ctx context.Context, userID string, results []analytics.AnalysisResult) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("result store is not configured")
	}
	if userID == "" {
		return store.ErrEmptyUserID
	}
	payload, err := store.EncodeResults(results)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
INSERT INTO %[1]s (id, %[2]s)
VALUES ($1, $2)
ON CONFLICT (id) DO UPDATE SET %[2]s = EXCLUDED.%[2]s`, s.table, s.column)
	if _, err := s.pool.Exec(ctx, query, userID, string(payload)); err != nil {
		return fmt.Errorf("upsert results: %w", err)
	}
	return nil
}

// LoadResults reads the stored results for userID.
func (s *ResultStore) LoadResults(ctx context.Context, userID string) ([]analytics.AnalysisResult, bool, error) {
	if s == nil || s.pool == nil {
		return nil, false, fmt.Errorf("result store is not configured")
	}
	if userID == "" {
		return nil, false, store.ErrEmptyUserID
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, s.column, s.table)
	var raw *string
	if err := s.pool.QueryRow(ctx, query, userID).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("load results: %w", err)
	}
	if raw == nil {
		return nil, false, nil
	}
	return store.DecodeResults([]byte(*raw))
}
