package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/example/farm-cart/internal/catalog"
	"github.com/example/farm-cart/internal/infrastructure/store"
	"github.com/example/farm-cart/internal/metrics"
	"github.com/example/farm-cart/internal/pricing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProductSearcher resolves a free-text product name
type ProductSearcher interface {
	Search(ctx context.Context, q catalog.Query) (*catalog.Product, error)
}

// StockLookup returns on-hand stock; failures are reported as 0
type StockLookup interface {
	GetStock(ctx context.Context, productID string) int
}

// EventPublisher receives committed cart events
type EventPublisher interface {
	Publish(ctx context.Context, key, eventType string, event any) error
}

type Config struct {
	Currency string
	// StockConcurrency bounds parallel stock lookups in GetCart.
	StockConcurrency int
}

type Service struct {
	cfg       Config
	store     store.CartStoreInterface
	catalog   ProductSearcher
	stock     StockLookup
	pricer    *pricing.Generator
	publisher EventPublisher
	metrics   *metrics.Registry
	logger    *zap.Logger
}

func NewService(
	cfg Config,
	cartStore store.CartStoreInterface,
	searcher ProductSearcher,
	stock StockLookup,
	pricer *pricing.Generator,
	reg *metrics.Registry,
	logger *zap.Logger,
) *Service {
	if cfg.Currency == "" {
		cfg.Currency = "EUR"
	}
	if cfg.StockConcurrency <= 0 {
		cfg.StockConcurrency = 8
	}
	return &Service{
		cfg:     cfg,
		store:   cartStore,
		catalog: searcher,
		stock:   stock,
		pricer:  pricer,
		metrics: reg,
		logger:  logger.Named("cart"),
	}
}

// WithPublisher enables event publishing after each commit
func (s *Service) WithPublisher(p EventPublisher) *Service {
	s.publisher = p
	return s
}

// pendingLine is a validated, priced item waiting to be written
type pendingLine struct {
	index     int
	product   catalog.Product
	quantity  int
	available int
	price     decimal.Decimal
}

type outcome struct {
	added    *AddedItem
	failures []Failure
}

// AddToCart adds each requested item independently. Business-rule failures
// are reported per item; catalog and store errors abort the whole call with
// nothing committed.
func (s *Service) AddToCart(ctx context.Context, userID string, items []ItemRequest, privileged bool) (*AddResult, error) {
	outcomes := make([]outcome, len(items))
	var pending []pendingLine

	// Catalog and stock calls happen before the transaction is opened
	for i, item := range items {
		line, failure, err := s.prepare(ctx, item, privileged)
		if err != nil {
			return nil, err
		}
		if failure != nil {
			outcomes[i].failures = append(outcomes[i].failures, *failure)
			continue
		}
		line.index = i
		pending = append(pending, *line)
	}

	// The cart row is ensured even when every item failed validation
	var events []Event
	if len(items) > 0 {
		var err error
		events, err = s.writeLines(ctx, userID, pending, outcomes)
		if err != nil {
			return nil, err
		}
	}

	result := &AddResult{Added: []AddedItem{}, Failed: []Failure{}}
	for _, o := range outcomes {
		switch {
		case o.added != nil && len(o.failures) > 0:
			s.metrics.ItemsProcessed.WithLabelValues(metrics.OutcomeClamped).Inc()
		case o.added != nil:
			s.metrics.ItemsProcessed.WithLabelValues(metrics.OutcomeAdded).Inc()
		default:
			s.metrics.ItemsProcessed.WithLabelValues(metrics.OutcomeFailed).Inc()
		}
		if o.added != nil {
			result.Added = append(result.Added, *o.added)
		}
		result.Failed = append(result.Failed, o.failures...)
	}
	result.Success = len(result.Failed) == 0

	s.publish(ctx, userID, events)

	summary, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	result.CartTotal = summary.TotalPrice
	result.TotalItems = summary.TotalItems
	return result, nil
}

func (s *Service) prepare(ctx context.Context, item ItemRequest, privileged bool) (*pendingLine, *Failure, error) {
	name := strings.TrimSpace(item.ProductName)
	if name == "" {
		return nil, &Failure{Reason: ReasonNameRequired, Error: "Product name is required"}, nil
	}
	if item.Quantity <= 0 {
		return nil, &Failure{ProductName: name, Reason: ReasonInvalidQuantity, Error: "Quantity must be positive"}, nil
	}

	product, err := s.catalog.Search(ctx, catalog.Query{
		Name:       name,
		Privileged: privileged,
		Category:   item.Category,
		Organic:    item.IsOrganic,
	})
	if errors.Is(err, catalog.ErrNotFound) {
		return nil, &Failure{
			ProductName:       name,
			Reason:            ReasonProductNotFound,
			Error:             "Product not found",
			RequestedQuantity: intPtr(item.Quantity),
		}, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("search product %q: %w", name, err)
	}

	available := s.stock.GetStock(ctx, product.ID)
	if item.Quantity > available {
		return nil, insufficientStock(product.Name, product.ID, item.Quantity, available), nil
	}

	category := product.Category
	if category == "" && item.Category != nil {
		category = *item.Category
	}

	return &pendingLine{
		product:   *product,
		quantity:  item.Quantity,
		available: available,
		price:     s.pricer.Generate(category),
	}, nil, nil
}

// writeLines upserts all pending lines in one transaction, clamping any line
// whose total now exceeds the stock seen for that item.
func (s *Service) writeLines(ctx context.Context, userID string, pending []pendingLine, outcomes []outcome) ([]Event, error) {
	var (
		events  []Event
		results map[int]outcome
	)

	start := time.Now()
	err := s.store.WithTx(ctx, func(tx store.CartTx) error {
		events = events[:0]
		results = make(map[int]outcome, len(pending))

		cartID, err := tx.EnsureCart(ctx, userID)
		if err != nil {
			return err
		}

		for _, p := range pending {
			state, err := tx.UpsertLine(ctx, cartID, p.product.ID, p.quantity, p.price)
			if err != nil {
				return err
			}

			var o outcome
			stored := state.Quantity
			if stored > p.available {
				if _, err := tx.SetLineQuantity(ctx, cartID, p.product.ID, p.available); err != nil {
					return err
				}
				o.failures = append(o.failures, Failure{
					ProductName:       p.product.Name,
					ProductID:         p.product.ID,
					Reason:            ReasonReducedToStock,
					Error:             fmt.Sprintf("Reduced quantity to available stock (%d)", p.available),
					RequestedQuantity: intPtr(p.quantity),
					AvailableStock:    intPtr(p.available),
				})
				stored = p.available
			}

			o.added = &AddedItem{
				ProductID:      p.product.ID,
				ProductName:    p.product.Name,
				Quantity:       p.quantity,
				StoredQuantity: stored,
				UnitPrice:      state.UnitPrice,
				LineTotal:      state.UnitPrice.Mul(decimal.NewFromInt(int64(p.quantity))),
			}
			results[p.index] = o

			events = append(events, newEvent(EventItemAdded, cartID, userID, ItemAddedToCart{
				ProductID:      p.product.ID,
				Quantity:       p.quantity,
				StoredQuantity: stored,
				UnitPrice:      state.UnitPrice,
				Clamped:        len(o.failures) > 0,
			}))
		}
		return nil
	})
	s.metrics.TxLatencySec.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("add to cart: %w", err)
	}

	for i, o := range results {
		outcomes[i] = o
	}
	s.logger.Info("cart updated",
		zap.String("user_id", userID),
		zap.Int("lines_written", len(pending)))
	return events, nil
}

// GetCart returns the user's lines with live stock and decimal totals
func (s *Service) GetCart(ctx context.Context, userID string) (*Summary, error) {
	lines, err := s.store.GetLines(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}

	stocks := s.fetchStocks(ctx, lines)

	summary := &Summary{
		Items:      make([]Item, 0, len(lines)),
		TotalPrice: decimal.Zero,
		Currency:   s.cfg.Currency,
	}
	for i, l := range lines {
		total := l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
		summary.Items = append(summary.Items, Item{
			ProductID:      l.ProductID,
			ProductName:    l.ProductName,
			Quantity:       l.Quantity,
			UnitPrice:      l.UnitPrice,
			TotalPrice:     total,
			AvailableStock: stocks[i],
			AddedAt:        l.AddedAt,
			UpdatedAt:      l.UpdatedAt,
		})
		summary.TotalItems += l.Quantity
		summary.TotalPrice = summary.TotalPrice.Add(total)
	}
	return summary, nil
}

func (s *Service) fetchStocks(ctx context.Context, lines []store.CartLine) []int {
	stocks := make([]int, len(lines))
	sem := make(chan struct{}, s.cfg.StockConcurrency)
	var wg sync.WaitGroup

	for i, l := range lines {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, productID string) {
			defer wg.Done()
			defer func() { <-sem }()
			stocks[i] = s.stock.GetStock(ctx, productID)
		}(i, l.ProductID)
	}
	wg.Wait()
	return stocks
}

// UpdateCartItem sets a line's quantity; 0 removes the line
func (s *Service) UpdateCartItem(ctx context.Context, userID, productID string, quantity int) (*UpdateResult, error) {
	id, err := uuid.Parse(productID)
	if err != nil {
		return failed(Failure{ProductID: productID, Reason: ReasonInvalidProductID, Error: "Invalid product ID"}), nil
	}
	productID = id.String()

	if quantity < 0 {
		return failed(Failure{
			ProductID:         productID,
			Reason:            ReasonNegativeQuantity,
			Error:             "Quantity cannot be negative",
			RequestedQuantity: intPtr(quantity),
		}), nil
	}

	if quantity > 0 {
		available := s.stock.GetStock(ctx, productID)
		if quantity > available {
			return failed(*insufficientStock("", productID, quantity, available)), nil
		}
	}

	var events []Event
	err = s.store.WithTx(ctx, func(tx store.CartTx) error {
		events = nil
		cartID, err := tx.FindCart(ctx, userID)
		if err != nil {
			return err
		}
		changed, err := tx.SetLineQuantity(ctx, cartID, productID, quantity)
		if err != nil {
			return err
		}
		// A product that is not in the cart is a successful no-op
		if !changed {
			return nil
		}
		if quantity == 0 {
			events = append(events, newEvent(EventItemRemoved, cartID, userID, ItemRemovedFromCart{ProductID: productID}))
		} else {
			events = append(events, newEvent(EventItemQuantityChanged, cartID, userID, ItemQuantityChanged{ProductID: productID, Quantity: quantity}))
		}
		return nil
	})
	if errors.Is(err, store.ErrCartNotFound) {
		return failed(Failure{ProductID: productID, Reason: ReasonCartNotFound, Error: "Cart not found"}), nil
	}
	if err != nil {
		return nil, fmt.Errorf("update cart item: %w", err)
	}

	s.publish(ctx, userID, events)

	summary, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &UpdateResult{Success: true, Cart: summary}, nil
}

// RemoveFromCart deletes one product line
func (s *Service) RemoveFromCart(ctx context.Context, userID, productID string) (*UpdateResult, error) {
	return s.UpdateCartItem(ctx, userID, productID, 0)
}

// ClearCart deletes every line of the user's cart. The cart row stays.
func (s *Service) ClearCart(ctx context.Context, userID string) (*ClearResult, error) {
	var (
		cartID  string
		removed int64
	)
	err := s.store.WithTx(ctx, func(tx store.CartTx) error {
		var err error
		cartID, removed, err = tx.ClearLines(ctx, userID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("clear cart: %w", err)
	}

	if removed > 0 {
		s.publish(ctx, userID, []Event{newEvent(EventCartCleared, cartID, userID, CartCleared{RemovedLines: removed})})
	}
	return &ClearResult{Success: true, Message: "Cart cleared", RemovedLines: removed}, nil
}

// publish sends committed events; failures never fail the call
func (s *Service) publish(ctx context.Context, userID string, events []Event) {
	if s.publisher == nil {
		return
	}
	for _, e := range events {
		if err := s.publisher.Publish(ctx, userID, e.EventType, e); err != nil {
			s.metrics.EventPublishFailures.Inc()
			s.logger.Warn("failed to publish cart event",
				zap.String("event_type", e.EventType),
				zap.String("user_id", userID),
				zap.Error(err))
		}
	}
}

func insufficientStock(name, productID string, requested, available int) *Failure {
	return &Failure{
		ProductName:       name,
		ProductID:         productID,
		Reason:            ReasonInsufficientStock,
		Error:             fmt.Sprintf("Insufficient stock (only %d available)", available),
		RequestedQuantity: intPtr(requested),
		AvailableStock:    intPtr(available),
	}
}

func failed(f Failure) *UpdateResult {
	return &UpdateResult{Success: false, Failure: &f}
}
