package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/dtroode/authgate/database"
)

// Querier is the subset of *sql.DB the repositories use.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Connection owns the pgx pool and a database/sql handle on top of it.
type Connection struct {
	*pgxpool.Pool
	db *sql.DB
}

// NewConnection opens a pool, applies pending migrations and returns the connection.
func NewConnection(ctx context.Context, dsn string, maxConns int32) (*Connection, error) {
	conf, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres dsn: %w", err)
	}
	if maxConns > 0 {
		conf.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, conf)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection pool: %w", err)
	}

	conn := &Connection{
		Pool: pool,
		db:   stdlib.OpenDBFromPool(pool),
	}

	if err := database.Migrate(ctx, conn.db); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return conn, nil
}

// DB returns the database/sql handle backed by the pool.
func (c *Connection) DB() *sql.DB {
	return c.db
}

func (c *Connection) Close() error {
	if c.db != nil {
		_ = c.db.Close()
	}
	if c.Pool != nil {
		c.Pool.Close()
	}
	return nil
}

func (c *Connection) Ping(ctx context.Context) error {
	if c.Pool == nil {
		return fmt.Errorf("connection pool is nil")
	}
	return c.Pool.Ping(ctx)
}
