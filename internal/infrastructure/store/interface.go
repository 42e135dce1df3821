package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrCartNotFound    = errors.New("cart not found")
	ErrInvalidQuantity = errors.New("quantity cannot be negative")
)

// CartLine is a stored cart item joined with its product name
type CartLine struct {
	CartID      string          `json:"cart_id"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	AddedAt     time.Time       `json:"added_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// LineState is the row state after an upsert
type LineState struct {
	Quantity  int
	UnitPrice decimal.Decimal
}

// CartTx groups the row operations of one service call
type CartTx interface {
	// EnsureCart creates the user's cart or touches its updated_at.
	EnsureCart(ctx context.Context, userID string) (string, error)
	FindCart(ctx context.Context, userID string) (string, error)
	// UpsertLine inserts a line or adds delta to an existing one. An
	// existing unit price is never replaced.
	UpsertLine(ctx context.Context, cartID, productID string, delta int, unitPrice decimal.Decimal) (LineState, error)
	// SetLineQuantity updates a line; quantity 0 deletes it. It reports
	// whether a line existed.
	SetLineQuantity(ctx context.Context, cartID, productID string, quantity int) (bool, error)
	// ClearLines deletes every line of the user's cart and returns the cart
	// id ("" when the user has no cart) and the number of lines removed.
	ClearLines(ctx context.Context, userID string) (string, int64, error)
}

// CartStoreInterface defines the persistence port for carts
type CartStoreInterface interface {
	// WithTx runs fn in a transaction that commits only if fn returns nil.
	WithTx(ctx context.Context, fn func(tx CartTx) error) error
	// GetLines returns the user's lines, most recently added first.
	GetLines(ctx context.Context, userID string) ([]CartLine, error)
}
