// Package postgres persists orders and their payments in PostgreSQL.
package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/merchant-billing/db"
)

const defaultPingTimeout = 5 * time.Second

// Options tunes the pool behind a Store.
type Options struct {
	// MaxConns caps the pool size. Zero keeps the pgx default.
	MaxConns int32
	// PingTimeout bounds the connectivity check on Open.
	PingTimeout time.Duration
}

// Store holds the billing repositories sharing one pool.
type Store struct {
	Orders   *OrderRepository
	Payments *PaymentRepository

	pool *pgxpool.Pool
}

// Open connects to databaseURL, checks the server answers, applies the
// schema and returns the repositories over the pool.
func Open(ctx context.Context, databaseURL string, opts Options) (*Store, error) {
	pool, err := NewPool(ctx, databaseURL, opts.MaxConns)
	if err != nil {
		return nil, err
	}
	s := &Store{
		Orders:   NewOrderRepository(pool),
		Payments: NewPaymentRepository(pool),
		pool:     pool,
	}

	timeout := opts.PingTimeout
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := s.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}

	if err := RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return errors.Wrap(err, "ping database")
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// NewPool creates a pool with NUMERIC columns mapped to shopspring/decimal,
// which line item tax rates are stored as.
func NewPool(ctx context.Context, databaseURL string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse database config")
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "create connection pool")
	}
	return pool, nil
}

// RunMigrations applies the billing schema. The DDL is idempotent.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, db.Schema); err != nil {
		return errors.Wrap(err, "apply billing schema")
	}
	return nil
}
