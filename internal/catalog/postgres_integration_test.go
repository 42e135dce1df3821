package catalog

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Integration: runs against a real PostgreSQL with pg_trgm when
// CART_TEST_DATABASE_URL is set.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("CART_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("CART_TEST_DATABASE_URL not set")
	}

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	// temp tables are per connection
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	_, err = db.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS pg_trgm`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `
		CREATE TEMP TABLE products (
			product_id   UUID PRIMARY KEY,
			product_name TEXT NOT NULL,
			category     TEXT,
			is_organic   BOOLEAN NOT NULL DEFAULT false,
			is_vip       BOOLEAN NOT NULL DEFAULT false
		)`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `
		INSERT INTO products (product_id, product_name, category, is_organic, is_vip) VALUES
			('11111111-1111-1111-1111-111111111111', 'Tomato', 'Vegetables', false, false),
			('22222222-2222-2222-2222-222222222222', 'Cherry Tomato', 'Vegetables', true, false),
			('33333333-3333-3333-3333-333333333333', 'Beluga Caviar', NULL, false, true)`)
	require.NoError(t, err)
	return db
}

func TestIntegration_PostgresSearcher(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	s := NewPostgresSearcher(db, Options{}, zap.NewNop())

	p, err := s.Search(ctx, Query{Name: "Tomatoe"})
	require.NoError(t, err)
	assert.Equal(t, "11111111-1111-1111-1111-111111111111", p.ID)
	assert.Equal(t, "Vegetables", p.Category)
	assert.InDelta(t, Similarity("Tomato", "Tomatoe"), p.Similarity, 1e-4)

	_, err = s.Search(ctx, Query{Name: "Beluga Caviar"})
	assert.ErrorIs(t, err, ErrNotFound)

	p, err = s.Search(ctx, Query{Name: "Beluga Caviar", Privileged: true})
	require.NoError(t, err)
	assert.Equal(t, "", p.Category)

	_, err = s.Search(ctx, Query{Name: "Spaceship"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIntegration_PostgresSearcher_Filters(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	organic := true

	unfiltered := NewPostgresSearcher(db, Options{}, zap.NewNop())
	p, err := unfiltered.Search(ctx, Query{Name: "Tomato", Organic: &organic})
	require.NoError(t, err)
	assert.Equal(t, "Tomato", p.Name)

	filtered := NewPostgresSearcher(db, Options{ApplyFilters: true}, zap.NewNop())
	p, err = filtered.Search(ctx, Query{Name: "Tomato", Organic: &organic})
	require.NoError(t, err)
	assert.Equal(t, "Cherry Tomato", p.Name)
}
