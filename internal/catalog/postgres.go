package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const searchQuery = `
	SELECT
		product_id,
		product_name,
		COALESCE(category, ''),
		is_organic,
		is_vip,
		similarity(product_name, $1) AS sim
	FROM products
	WHERE (is_vip = false OR $2::boolean = true)
	  AND similarity(product_name, $1) > $3`

const filterClause = `
	  AND ($4::text IS NULL OR category = $4)
	  AND ($5::boolean IS NULL OR is_organic = $5)`

const orderClause = `
	ORDER BY sim DESC
	LIMIT 1`

// PostgresSearcher matches product names with pg_trgm's similarity()
type PostgresSearcher struct {
	db     *sql.DB
	opts   Options
	logger *zap.Logger
}

func NewPostgresSearcher(db *sql.DB, opts Options, logger *zap.Logger) *PostgresSearcher {
	return &PostgresSearcher{db: db, opts: opts, logger: logger.Named("catalog")}
}

// Search returns the best visible match above SimilarityThreshold, or
// ErrNotFound.
func (s *PostgresSearcher) Search(ctx context.Context, q Query) (*Product, error) {
	name := strings.TrimSpace(q.Name)
	query := searchQuery
	args := []any{name, q.Privileged, SimilarityThreshold}
	if s.opts.ApplyFilters {
		query += filterClause
		args = append(args, q.Category, q.Organic)
	}
	query += orderClause

	var p Product
	err := s.db.QueryRowContext(ctx, query, args...).
		Scan(&p.ID, &p.Name, &p.Category, &p.IsOrganic, &p.IsVIP, &p.Similarity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}

	s.logger.Info("found product",
		zap.String("query", name),
		zap.String("product_name", p.Name),
		zap.Float64("similarity", p.Similarity))
	return &p, nil
}
