package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PostgresCartStore implements CartStoreInterface using PostgreSQL
type PostgresCartStore struct {
	db *sql.DB
}

// NewPostgresCartStore creates a new PostgreSQL-based cart store
func NewPostgresCartStore(db *sql.DB) *PostgresCartStore {
	return &PostgresCartStore{db: db}
}

// WithTx runs fn inside a single transaction. Any error or panic from fn
// rolls the whole transaction back.
func (s *PostgresCartStore) WithTx(ctx context.Context, fn func(tx CartTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&postgresCartTx{tx: tx}); err != nil {
		return withRollbackErr(err, tx.Rollback())
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// withRollbackErr attaches a failed rollback to err. sql.ErrTxDone is dropped:
// database/sql has already rolled back a transaction whose context was
// cancelled.
func withRollbackErr(err, rbErr error) error {
	if rbErr == nil || errors.Is(rbErr, sql.ErrTxDone) {
		return err
	}
	return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
}

// GetLines returns the user's cart lines, most recently added first
func (s *PostgresCartStore) GetLines(ctx context.Context, userID string) ([]CartLine, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sci.cart_id, sci.product_id, p.product_name, sci.quantity, sci.unit_price,
		       sci.added_at, sci.updated_at
		FROM shopping_carts sc
		JOIN shopping_cart_items sci ON sci.cart_id = sc.id
		JOIN products p ON p.product_id = sci.product_id
		WHERE sc.user_id = $1
		ORDER BY sci.added_at DESC, sci.product_id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query cart lines: %w", err)
	}
	defer rows.Close()

	lines := make([]CartLine, 0)
	for rows.Next() {
		var l CartLine
		if err := rows.Scan(&l.CartID, &l.ProductID, &l.ProductName, &l.Quantity, &l.UnitPrice, &l.AddedAt, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cart lines: %w", err)
	}
	return lines, nil
}

type postgresCartTx struct {
	tx *sql.Tx
}

func (t *postgresCartTx) EnsureCart(ctx context.Context, userID string) (string, error) {
	var cartID string
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO shopping_carts (id, user_id, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE SET updated_at = NOW()
		RETURNING id
	`, uuid.New().String(), userID).Scan(&cartID)
	if err != nil {
		return "", fmt.Errorf("ensure cart: %w", err)
	}
	return cartID, nil
}

func (t *postgresCartTx) FindCart(ctx context.Context, userID string) (string, error) {
	var cartID string
	err := t.tx.QueryRowContext(ctx,
		`SELECT id FROM shopping_carts WHERE user_id = $1`, userID,
	).Scan(&cartID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrCartNotFound
	}
	if err != nil {
		return "", fmt.Errorf("find cart: %w", err)
	}
	return cartID, nil
}

func (t *postgresCartTx) UpsertLine(ctx context.Context, cartID, productID string, delta int, unitPrice decimal.Decimal) (LineState, error) {
	var state LineState
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO shopping_cart_items
			(cart_id, product_id, quantity, unit_price, added_at, updated_at)
		VALUES ($1, $2, $3, $4, clock_timestamp(), NOW())
		ON CONFLICT (cart_id, product_id)
		DO UPDATE SET
			quantity = shopping_cart_items.quantity + EXCLUDED.quantity,
			updated_at = NOW()
		RETURNING quantity, unit_price
	`, cartID, productID, delta, unitPrice).Scan(&state.Quantity, &state.UnitPrice)
	if err != nil {
		return LineState{}, fmt.Errorf("upsert cart line: %w", err)
	}
	return state, nil
}

func (t *postgresCartTx) SetLineQuantity(ctx context.Context, cartID, productID string, quantity int) (bool, error) {
	var (
		res sql.Result
		err error
	)
	switch {
	case quantity < 0:
		return false, ErrInvalidQuantity
	case quantity == 0:
		res, err = t.tx.ExecContext(ctx, `
			DELETE FROM shopping_cart_items
			WHERE cart_id = $1 AND product_id = $2
		`, cartID, productID)
	default:
		res, err = t.tx.ExecContext(ctx, `
			UPDATE shopping_cart_items
			SET quantity = $1, updated_at = NOW()
			WHERE cart_id = $2 AND product_id = $3
		`, quantity, cartID, productID)
	}
	if err != nil {
		return false, fmt.Errorf("set line quantity: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set line quantity: %w", err)
	}
	return n > 0, nil
}

func (t *postgresCartTx) ClearLines(ctx context.Context, userID string) (string, int64, error) {
	cartID, err := t.FindCart(ctx, userID)
	if errors.Is(err, ErrCartNotFound) {
		return "", 0, nil
	}
	if err != nil {
		return "", 0, err
	}

	res, err := t.tx.ExecContext(ctx,
		`DELETE FROM shopping_cart_items WHERE cart_id = $1`, cartID)
	if err != nil {
		return "", 0, fmt.Errorf("clear cart lines: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", 0, fmt.Errorf("clear cart lines: %w", err)
	}
	return cartID, n, nil
}
