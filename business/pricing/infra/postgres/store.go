// Package postgres persists pool descriptors in PostgreSQL.
package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fd1az/token-price-engine/business/pricing/app"
	"github.com/fd1az/token-price-engine/business/pricing/domain"
	"github.com/fd1az/token-price-engine/internal/apperror"
)

//go:embed schema.sql
var schema string

const pgErrUndefinedTable = "42P01"

var _ app.PoolStore = (*Store)(nil)

// Store implements app.PoolStore on a pgx pool. Each token owns one row and
// saves are last-writer-wins upserts.
type Store struct {
	pool *pgxpool.Pool
}

// NewPool opens and pings a connection pool.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithCause(err), apperror.WithContext("parse postgres dsn"))
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, storeErr("connect", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, storeErr("ping", err)
	}

	return pool, nil
}

// NewStore creates a store over pool. Call EnsureSchema before first use.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureSchema creates the table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return storeErr("ensure schema", err)
	}
	return nil
}

// Get returns the descriptor persisted for tokenID, or nil when none is.
func (s *Store) Get(ctx context.Context, tokenID string) (*domain.PoolDescriptor, error) {
	query := `
		SELECT descriptor, updated_at
		FROM pool_descriptors
		WHERE token_id = $1
	`

	var (
		raw       []byte
		updatedAt time.Time
	)
	err := s.pool.QueryRow(ctx, query, tokenID).Scan(&raw, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, storeErr("get "+tokenID, err)
	}

	var d domain.PoolDescriptor
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, storeErr("decode descriptor of "+tokenID, err)
	}
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = updatedAt
	}
	return &d, nil
}

// Save upserts the descriptor of tokenID.
func (s *Store) Save(ctx context.Context, tokenID string, pool domain.PoolDescriptor) error {
	if err := pool.Validate(); err != nil {
		return err
	}
	if pool.UpdatedAt.IsZero() {
		pool.UpdatedAt = time.Now().UTC()
	}

	raw, err := json.Marshal(pool)
	if err != nil {
		return storeErr("encode descriptor of "+tokenID, err)
	}

	query := `
		INSERT INTO pool_descriptors (token_id, chain, dex, venue_id, descriptor, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (token_id) DO UPDATE SET
			chain = EXCLUDED.chain,
			dex = EXCLUDED.dex,
			venue_id = EXCLUDED.venue_id,
			descriptor = EXCLUDED.descriptor,
			updated_at = EXCLUDED.updated_at
	`

	_, err = s.pool.Exec(ctx, query,
		tokenID,
		string(pool.Chain),
		string(pool.Dex),
		pool.VenueID,
		raw,
		pool.UpdatedAt,
	)
	if err != nil {
		return storeErr("save "+tokenID, err)
	}
	return nil
}

// Ping checks the pool can reach the database.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return storeErr("ping", err)
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

func storeErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgErrUndefinedTable {
		op += " (schema missing)"
	}
	return apperror.New(apperror.CodeStoreFailed, apperror.WithCause(err), apperror.WithContext(op))
}
