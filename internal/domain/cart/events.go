package cart

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventItemAdded           = "ItemAddedToCart"
	EventItemQuantityChanged = "ItemQuantityChanged"
	EventItemRemoved         = "ItemRemovedFromCart"
	EventCartCleared         = "CartCleared"
)

// Event is the envelope published for every committed cart change
type Event struct {
	ID        string    `json:"id"`
	CartID    string    `json:"cart_id,omitempty"`
	UserID    string    `json:"user_id"`
	EventType string    `json:"event_type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

func newEvent(eventType, cartID, userID string, data any) Event {
	return Event{
		ID:        uuid.New().String(),
		CartID:    cartID,
		UserID:    userID,
		EventType: eventType,
		Data:      data,
		Timestamp: time.Now(),
	}
}

type ItemAddedToCart struct {
	ProductID      string          `json:"product_id"`
	Quantity       int             `json:"quantity"`
	StoredQuantity int             `json:"stored_quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	Clamped        bool            `json:"clamped"`
}

type ItemQuantityChanged struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type ItemRemovedFromCart struct {
	ProductID string `json:"product_id"`
}

type CartCleared struct {
	RemovedLines int64 `json:"removed_lines"`
}
