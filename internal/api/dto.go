package api

import (
	"time"

	"github.com/example/farm-cart/internal/domain/cart"
)

// Request DTOs

type addItemRequest struct {
	ProductName string  `json:"product_name"`
	Quantity    *int    `json:"quantity"`
	Category    *string `json:"category"`
	IsOrganic   *bool   `json:"is_organic"`
}

type addItemsRequest struct {
	Items []addItemRequest `json:"items" validate:"required,min=1,max=50"`
}

type updateItemRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

// toItemRequests maps the wire items; a missing quantity means one
func (r addItemsRequest) toItemRequests() []cart.ItemRequest {
	items := make([]cart.ItemRequest, len(r.Items))
	for i, it := range r.Items {
		qty := 1
		if it.Quantity != nil {
			qty = *it.Quantity
		}
		items[i] = cart.ItemRequest{
			ProductName: it.ProductName,
			Quantity:    qty,
			Category:    it.Category,
			IsOrganic:   it.IsOrganic,
		}
	}
	return items
}

// Response DTOs. Money leaves the service as decimal and is rendered as a
// JSON number only here.

type addedItemResponse struct {
	ProductID      string  `json:"product_id"`
	ProductName    string  `json:"product_name"`
	Quantity       int     `json:"quantity"`
	StoredQuantity int     `json:"stored_quantity"`
	UnitPrice      float64 `json:"unit_price"`
	TotalPrice     float64 `json:"total_price"`
}

type addResultResponse struct {
	Success    bool                `json:"success"`
	Added      []addedItemResponse `json:"added_items"`
	Failed     []cart.Failure      `json:"failed_items"`
	CartTotal  float64             `json:"cart_total"`
	TotalItems int                 `json:"total_items"`
}

type cartItemResponse struct {
	ProductID      string    `json:"product_id"`
	ProductName    string    `json:"product_name"`
	Quantity       int       `json:"quantity"`
	UnitPrice      float64   `json:"unit_price"`
	TotalPrice     float64   `json:"total_price"`
	AvailableStock int       `json:"available_stock"`
	AddedAt        time.Time `json:"added_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type cartResponse struct {
	Items      []cartItemResponse `json:"items"`
	TotalItems int                `json:"total_items"`
	TotalPrice float64            `json:"total_price"`
	Currency   string             `json:"currency"`
}

type updateResultResponse struct {
	Success bool          `json:"success"`
	Failure *cart.Failure `json:"failure,omitempty"`
	Cart    *cartResponse `json:"cart,omitempty"`
}

func newAddResultResponse(r *cart.AddResult) addResultResponse {
	resp := addResultResponse{
		Success:    r.Success,
		Added:      make([]addedItemResponse, 0, len(r.Added)),
		Failed:     r.Failed,
		CartTotal:  r.CartTotal.InexactFloat64(),
		TotalItems: r.TotalItems,
	}
	if resp.Failed == nil {
		resp.Failed = []cart.Failure{}
	}
	for _, a := range r.Added {
		resp.Added = append(resp.Added, addedItemResponse{
			ProductID:      a.ProductID,
			ProductName:    a.ProductName,
			Quantity:       a.Quantity,
			StoredQuantity: a.StoredQuantity,
			UnitPrice:      a.UnitPrice.InexactFloat64(),
			TotalPrice:     a.LineTotal.InexactFloat64(),
		})
	}
	return resp
}

func newCartResponse(s *cart.Summary) *cartResponse {
	if s == nil {
		return nil
	}
	resp := &cartResponse{
		Items:      make([]cartItemResponse, 0, len(s.Items)),
		TotalItems: s.TotalItems,
		TotalPrice: s.TotalPrice.InexactFloat64(),
		Currency:   s.Currency,
	}
	for _, it := range s.Items {
		resp.Items = append(resp.Items, cartItemResponse{
			ProductID:      it.ProductID,
			ProductName:    it.ProductName,
			Quantity:       it.Quantity,
			UnitPrice:      it.UnitPrice.InexactFloat64(),
			TotalPrice:     it.TotalPrice.InexactFloat64(),
			AvailableStock: it.AvailableStock,
			AddedAt:        it.AddedAt,
			UpdatedAt:      it.UpdatedAt,
		})
	}
	return resp
}

func newUpdateResultResponse(r *cart.UpdateResult) updateResultResponse {
	return updateResultResponse{
		Success: r.Success,
		Failure: r.Failure,
		Cart:    newCartResponse(r.Cart),
	}
}
