package cart

import (
	"time"

	"github.com/shopspring/decimal"
)

// Reason is the machine-readable cause of a business-rule failure
type Reason string

const (
	ReasonNameRequired      Reason = "name_required"
	ReasonInvalidQuantity   Reason = "invalid_quantity"
	ReasonProductNotFound   Reason = "product_not_found"
	ReasonInsufficientStock Reason = "insufficient_stock"
	ReasonReducedToStock    Reason = "reduced_to_available_stock"
	ReasonInvalidProductID  Reason = "invalid_product_id"
	ReasonNegativeQuantity  Reason = "negative_quantity"
	ReasonCartNotFound      Reason = "cart_not_found"
)

// ItemRequest is one line of an add-to-cart call
type ItemRequest struct {
	ProductName string
	Quantity    int
	// Optional hints; see catalog.Query
	Category  *string
	IsOrganic *bool
}

// Failure describes why a line or call was rejected
type Failure struct {
	ProductName       string `json:"product_name,omitempty"`
	ProductID         string `json:"product_id,omitempty"`
	Reason            Reason `json:"reason"`
	Error             string `json:"error"`
	RequestedQuantity *int   `json:"requested_quantity,omitempty"`
	AvailableStock    *int   `json:"available_stock,omitempty"`
}

// AddedItem reports a written line. LineTotal is UnitPrice times the
// requested Quantity; StoredQuantity is the line's quantity after the write,
// which is lower than expected when it was clamped to available stock.
type AddedItem struct {
	ProductID      string          `json:"product_id"`
	ProductName    string          `json:"product_name"`
	Quantity       int             `json:"quantity"`
	StoredQuantity int             `json:"stored_quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	LineTotal      decimal.Decimal `json:"total_price"`
}

type AddResult struct {
	Success    bool            `json:"success"`
	Added      []AddedItem     `json:"added_items"`
	Failed     []Failure       `json:"failed_items"`
	CartTotal  decimal.Decimal `json:"cart_total"`
	TotalItems int             `json:"total_items"`
}

// Item is a cart line enriched with live stock
type Item struct {
	ProductID      string          `json:"product_id"`
	ProductName    string          `json:"product_name"`
	Quantity       int             `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	TotalPrice     decimal.Decimal `json:"total_price"`
	AvailableStock int             `json:"available_stock"`
	AddedAt        time.Time       `json:"added_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type Summary struct {
	Items      []Item          `json:"items"`
	TotalItems int             `json:"total_items"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Currency   string          `json:"currency"`
}

type UpdateResult struct {
	Success bool     `json:"success"`
	Failure *Failure `json:"failure,omitempty"`
	Cart    *Summary `json:"cart,omitempty"`
}

type ClearResult struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	RemovedLines int64  `json:"removed_lines"`
}

func intPtr(v int) *int { return &v }
