package store

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"
)

// PoolConfig tunes the database/sql connection pool
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultPoolConfig matches the sizing used by the API server
var DefaultPoolConfig = PoolConfig{
	MaxOpenConns:    25,
	MaxIdleConns:    5,
	ConnMaxLifetime: 5 * time.Minute,
}

// ConnectPostgres establishes a connection to PostgreSQL
func ConnectPostgres(ctx context.Context, connStr string, pool PoolConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)

	return db, nil
}

var schema = []string{
	`CREATE EXTENSION IF NOT EXISTS pg_trgm`,
	`CREATE TABLE IF NOT EXISTS shopping_carts (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL UNIQUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS shopping_cart_items (
		cart_id    TEXT NOT NULL REFERENCES shopping_carts(id),
		product_id UUID NOT NULL,
		quantity   INTEGER NOT NULL CHECK (quantity > 0),
		unit_price NUMERIC(10, 2) NOT NULL,
		added_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (cart_id, product_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_shopping_cart_items_added_at
		ON shopping_cart_items (cart_id, added_at DESC)`,
}

// Migrate creates the cart tables. The products catalog is owned elsewhere.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
