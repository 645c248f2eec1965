package postgres

import (
	"context"
	"fmt"
	"time"

	"credential_service/internal/config"
	"credential_service/internal/storage"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, cfg *config.Config) (*Repo, error) {
	const op = "storage.postgres.New"

	poolConfig, err := pgxpool.ParseConfig(DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse config: %w", op, err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = time.Minute * 30

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create pool: %w", op, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: failed to ping database: %w", op, err)
	}

	return &Repo{pool: pool}, nil
}

// WithinTx runs fn against a transaction-bound store and commits on success
// or rolls back on error/panic. Panics are rethrown.
func (r *Repo) WithinTx(ctx context.Context, fn func(ctx context.Context, s storage.Store) error) error {
	const op = "storage.postgres.WithinTx"

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s: failed to begin: %w", op, err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(ctx, &Store{db: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%s: failed to commit: %w", op, err)
	}

	return nil
}

func (r *Repo) Pool() *pgxpool.Pool {
	return r.pool
}

func (r *Repo) Close() {
	r.pool.Close()
}

// DSN builds the connection string from config.
func DSN(cfg *config.Config) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s database=%s sslmode=%s",
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.DBName,
		cfg.Postgres.SSLMode,
	)
}
