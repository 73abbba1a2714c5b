package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"

	"github.com/rikhii20/DoKaka/internal/store"
)

// pool is the subset of *pgxpool.Pool the store uses. pgxmock.PgxPoolIface
// satisfies it as well.
type pool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

type Store struct {
	pool pool
}

func NewStore(databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	p, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	// Ping to fail fast.
	ctxPing, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := p.Ping(ctxPing); err != nil {
		p.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &Store{pool: p}, nil
}

// NewStoreWithPool wraps an already connected pool.
func NewStoreWithPool(p pool) *Store {
	return &Store{pool: p}
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func mapPgErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return store.ErrConflict
	}
	return oops.Code("DB_QUERY_FAILED").Wrap(err)
}
