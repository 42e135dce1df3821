package cart

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/example/farm-cart/internal/catalog"
	"github.com/example/farm-cart/internal/infrastructure/store"
	"github.com/example/farm-cart/internal/infrastructure/store/mocks"
	"github.com/example/farm-cart/internal/metrics"
	"github.com/example/farm-cart/internal/pricing"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"
)

const (
	tomatoID = "6f1d1a52-0d6b-4c39-9a2e-1b7a3c5d9e01"
	milkID   = "8a3e2b11-4c7d-4f0a-b5e6-2d9c8f1a7b02"
	caviarID = "c2b7e9f4-1a3d-4e6b-8c5f-9d0a2e4b6c03"
	userID   = "user-1"
)

type fakeStock struct {
	mu     sync.Mutex
	levels map[string]int
	calls  int
}

func (f *fakeStock) GetStock(ctx context.Context, productID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.levels[productID]
}

func (f *fakeStock) set(productID string, qty int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.levels[productID] = qty
}

type publishedEvent struct {
	key       string
	eventType string
	event     Event
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (f *fakePublisher) Publish(ctx context.Context, key, eventType string, event any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, publishedEvent{key: key, eventType: eventType, event: event.(Event)})
	return nil
}

type failingSearcher struct{ err error }

func (f failingSearcher) Search(ctx context.Context, q catalog.Query) (*catalog.Product, error) {
	return nil, f.err
}

type testEnv struct {
	svc     *Service
	store   *mocks.MockCartStore
	stock   *fakeStock
	catalog *catalog.MemorySearcher
	metrics *metrics.Registry
}

func newTestService() *testEnv {
	cartStore := mocks.NewMockCartStore()
	cartStore.AddProduct(tomatoID, "Tomato")
	cartStore.AddProduct(milkID, "Milk")
	cartStore.AddProduct(caviarID, "Caviar")

	searcher := catalog.NewMemorySearcher([]catalog.Product{
		{ID: tomatoID, Name: "Tomato", Category: "Vegetables", IsOrganic: true},
		{ID: milkID, Name: "Milk", Category: "Dairy"},
		{ID: caviarID, Name: "Caviar", Category: "Seafood", IsVIP: true},
	}, catalog.Options{})

	stock := &fakeStock{levels: map[string]int{tomatoID: 10, milkID: 5, caviarID: 0}}
	reg := metrics.NewRegistry()

	svc := NewService(Config{}, cartStore, searcher, stock, pricing.NewSeededGenerator(42), reg, zap.NewNop())
	return &testEnv{svc: svc, store: cartStore, stock: stock, catalog: searcher, metrics: reg}
}

func itemsProcessed(reg *metrics.Registry, outcome string) float64 {
	return testutil.ToFloat64(reg.ItemsProcessed.WithLabelValues(outcome))
}

// ============================================
// Add To Cart Tests
// ============================================

func TestService_AddToCart_FuzzyMatch(t *testing.T) {
	env := newTestService()
	ctx := context.Background()

	result, err := env.svc.AddToCart(ctx, userID, []ItemRequest{{ProductName: "Tomatoe", Quantity: 2}}, false)

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Empty(t, result.Failed)
	require.Len(t, result.Added, 1)

	added := result.Added[0]
	assert.Equal(t, tomatoID, added.ProductID)
	assert.Equal(t, "Tomato", added.ProductName)
	assert.Equal(t, 2, added.Quantity)
	assert.Equal(t, 2, added.StoredQuantity)

	r := pricing.Range("Vegetables")
	assert.True(t, added.UnitPrice.GreaterThanOrEqual(r.Min()))
	assert.True(t, added.UnitPrice.LessThan(r.Max()))
	assert.True(t, added.LineTotal.Equal(added.UnitPrice.Mul(decimal.NewFromInt(2))))

	assert.Equal(t, 2, result.TotalItems)
	assert.True(t, result.CartTotal.Equal(added.LineTotal))
	assert.Equal(t, float64(1), itemsProcessed(env.metrics, metrics.OutcomeAdded))
}

func TestService_AddToCart_VIPOutOfStock(t *testing.T) {
	env := newTestService()
	ctx := context.Background()

	result, err := env.svc.AddToCart(ctx, userID, []ItemRequest{{ProductName: "Caviar", Quantity: 1}}, true)

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Empty(t, result.Added)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, ReasonInsufficientStock, result.Failed[0].Reason)
	assert.Equal(t, "Insufficient stock (only 0 available)", result.Failed[0].Error)
	require.NotNil(t, result.Failed[0].AvailableStock)
	assert.Equal(t, 0, *result.Failed[0].AvailableStock)

	// The cart row is created even though no line was written
	assert.True(t, env.store.HasCart(userID))
	assert.Equal(t, 1, env.store.Commits)
	assert.True(t, result.CartTotal.IsZero())
}

func TestService_AddToCart_AllFailedStillCreatesCart(t *testing.T) {
	env := newTestService()
	ctx := context.Background()

	result, err := env.svc.AddToCart(ctx, userID, []ItemRequest{{ProductName: "Xyzzy", Quantity: 1}}, false)
	require.NoError(t, err)
	assert.False(t, result.Success)

	removed, err := env.svc.RemoveFromCart(ctx, userID, milkID)

	require.NoError(t, err)
	assert.True(t, removed.Success)
	assert.Nil(t, removed.Failure)
	assert.Empty(t, removed.Cart.Items)
}

func TestService_AddToCart_VIPHiddenFromRegularUser(t *testing.T) {
	env := newTestService()
	env.stock.set(caviarID, 3)

	result, err := env.svc.AddToCart(context.Background(), userID, []ItemRequest{{ProductName: "Caviar", Quantity: 1}}, false)

	require.NoError(t, err)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, ReasonProductNotFound, result.Failed[0].Reason)
	assert.Equal(t, "Product not found", result.Failed[0].Error)
	require.NotNil(t, result.Failed[0].RequestedQuantity)
	assert.Equal(t, 1, *result.Failed[0].RequestedQuantity)
}

func TestService_AddToCart_ValidationFailures(t *testing.T) {
	env := newTestService()

	result, err := env.svc.AddToCart(context.Background(), userID, []ItemRequest{
		{ProductName: "   ", Quantity: 1},
		{ProductName: "Milk", Quantity: 0},
		{ProductName: "Tomato", Quantity: 1},
		{ProductName: "Xyzzy", Quantity: 4},
	}, false)

	require.NoError(t, err)
	assert.False(t, result.Success)
	require.Len(t, result.Added, 1)
	assert.Equal(t, tomatoID, result.Added[0].ProductID)

	// Failures keep input order
	require.Len(t, result.Failed, 3)
	assert.Equal(t, ReasonNameRequired, result.Failed[0].Reason)
	assert.Equal(t, "Product name is required", result.Failed[0].Error)
	assert.Equal(t, ReasonInvalidQuantity, result.Failed[1].Reason)
	assert.Equal(t, "Quantity must be positive", result.Failed[1].Error)
	assert.Equal(t, "Milk", result.Failed[1].ProductName)
	assert.Equal(t, ReasonProductNotFound, result.Failed[2].Reason)
	assert.Equal(t, "Xyzzy", result.Failed[2].ProductName)

	assert.Equal(t, float64(1), itemsProcessed(env.metrics, metrics.OutcomeAdded))
	assert.Equal(t, float64(3), itemsProcessed(env.metrics, metrics.OutcomeFailed))
}

func TestService_AddToCart_PinsFirstPrice(t *testing.T) {
	env := newTestService()
	ctx := context.Background()

	first, err := env.svc.AddToCart(ctx, userID, []ItemRequest{{ProductName: "Tomato", Quantity: 1}}, false)
	require.NoError(t, err)
	second, err := env.svc.AddToCart(ctx, userID, []ItemRequest{{ProductName: "Tomato", Quantity: 2}}, false)
	require.NoError(t, err)

	assert.True(t, second.Added[0].UnitPrice.Equal(first.Added[0].UnitPrice))
	assert.Equal(t, 3, second.Added[0].StoredQuantity)

	line, ok := env.store.Line(userID, tomatoID)
	require.True(t, ok)
	assert.Equal(t, 3, line.Quantity)
	assert.True(t, line.UnitPrice.Equal(first.Added[0].UnitPrice))
	assert.Equal(t, 3, second.TotalItems)
}

func TestService_AddToCart_ClampsToStock(t *testing.T) {
	env := newTestService()

	result, err := env.svc.AddToCart(context.Background(), userID, []ItemRequest{
		{ProductName: "Tomato", Quantity: 6},
		{ProductName: "Tomato", Quantity: 6},
	}, false)

	require.NoError(t, err)
	assert.False(t, result.Success)
	require.Len(t, result.Added, 2)
	assert.Equal(t, 6, result.Added[0].StoredQuantity)
	assert.Equal(t, 10, result.Added[1].StoredQuantity)
	assert.Equal(t, 6, result.Added[1].Quantity)

	require.Len(t, result.Failed, 1)
	assert.Equal(t, ReasonReducedToStock, result.Failed[0].Reason)
	assert.Equal(t, "Reduced quantity to available stock (10)", result.Failed[0].Error)

	line, ok := env.store.Line(userID, tomatoID)
	require.True(t, ok)
	assert.Equal(t, 10, line.Quantity)
	assert.Equal(t, 10, result.TotalItems)
	assert.Equal(t, 1, env.store.Commits)
	assert.Equal(t, float64(1), itemsProcessed(env.metrics, metrics.OutcomeClamped))
}

func TestService_AddToCart_ClampsAgainstExistingLine(t *testing.T) {
	env := newTestService()
	ctx := context.Background()

	_, err := env.svc.AddToCart(ctx, userID, []ItemRequest{{ProductName: "Milk", Quantity: 4}}, false)
	require.NoError(t, err)

	result, err := env.svc.AddToCart(ctx, userID, []ItemRequest{{ProductName: "Milk", Quantity: 3}}, false)

	require.NoError(t, err)
	assert.False(t, result.Success)
	require.Len(t, result.Added, 1)
	assert.Equal(t, 5, result.Added[0].StoredQuantity)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, ReasonReducedToStock, result.Failed[0].Reason)
}

func TestService_AddToCart_RollsBackOnStoreError(t *testing.T) {
	env := newTestService()
	env.store.UpsertErr = errors.New("connection reset")

	result, err := env.svc.AddToCart(context.Background(), userID, []ItemRequest{
		{ProductName: "Tomato", Quantity: 1},
		{ProductName: "Milk", Quantity: 1},
	}, false)

	assert.Error(t, err)
	assert.ErrorIs(t, err, env.store.UpsertErr)
	assert.Nil(t, result)
	assert.Equal(t, 1, env.store.Rollbacks)
	assert.Equal(t, 0, env.store.Commits)
	assert.False(t, env.store.HasCart(userID))
}

func TestService_AddToCart_SearchErrorAborts(t *testing.T) {
	env := newTestService()
	boom := errors.New("catalog unavailable")
	env.svc.catalog = failingSearcher{err: boom}

	result, err := env.svc.AddToCart(context.Background(), userID, []ItemRequest{{ProductName: "Tomato", Quantity: 1}}, false)

	assert.ErrorIs(t, err, boom)
	assert.Nil(t, result)
	assert.Equal(t, 0, env.store.CallCount())
}

func TestService_AddToCart_CategoryFallsBackToHint(t *testing.T) {
	env := newTestService()
	const breadID = "1e2d3c4b-5a69-4788-9a0b-c1d2e3f4a504"
	env.catalog.Add(catalog.Product{ID: breadID, Name: "Sourdough"})
	env.store.AddProduct(breadID, "Sourdough")
	env.stock.set(breadID, 5)
	hint := "Bakery"

	result, err := env.svc.AddToCart(context.Background(), userID, []ItemRequest{{ProductName: "Sourdough", Quantity: 1, Category: &hint}}, false)

	require.NoError(t, err)
	require.Len(t, result.Added, 1)
	r := pricing.Range("Bakery")
	assert.True(t, result.Added[0].UnitPrice.GreaterThanOrEqual(r.Min()))
	assert.True(t, result.Added[0].UnitPrice.LessThan(r.Max()))
}

func TestService_AddToCart_LineTotalProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		env := newTestService()
		qty := rapid.IntRange(1, 10).Draw(t, "qty")

		result, err := env.svc.AddToCart(context.Background(), userID, []ItemRequest{{ProductName: "Tomato", Quantity: qty}}, false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		added := result.Added[0]
		if !added.LineTotal.Equal(added.UnitPrice.Mul(decimal.NewFromInt(int64(qty)))) {
			t.Fatalf("line total %s != %s * %d", added.LineTotal, added.UnitPrice, qty)
		}
		if !result.CartTotal.Equal(added.LineTotal) {
			t.Fatalf("cart total %s != line total %s", result.CartTotal, added.LineTotal)
		}
		if result.TotalItems != qty {
			t.Fatalf("total items %d != %d", result.TotalItems, qty)
		}
	})
}

// ============================================
// Get Cart Tests
// ============================================

func TestService_GetCart_Empty(t *testing.T) {
	env := newTestService()

	summary, err := env.svc.GetCart(context.Background(), userID)

	require.NoError(t, err)
	assert.Empty(t, summary.Items)
	assert.NotNil(t, summary.Items)
	assert.Equal(t, 0, summary.TotalItems)
	assert.True(t, summary.TotalPrice.IsZero())
	assert.Equal(t, "EUR", summary.Currency)
}

func TestService_GetCart_Totals(t *testing.T) {
	env := newTestService()
	ctx := context.Background()

	_, err := env.svc.AddToCart(ctx, userID, []ItemRequest{
		{ProductName: "Tomato", Quantity: 3},
		{ProductName: "Milk", Quantity: 2},
	}, false)
	require.NoError(t, err)
	env.stock.set(milkID, 1)

	summary, err := env.svc.GetCart(ctx, userID)

	require.NoError(t, err)
	require.Len(t, summary.Items, 2)
	assert.Equal(t, 5, summary.TotalItems)

	// Most recently added first
	assert.Equal(t, milkID, summary.Items[0].ProductID)
	assert.Equal(t, tomatoID, summary.Items[1].ProductID)
	assert.Equal(t, 1, summary.Items[0].AvailableStock)
	assert.Equal(t, 10, summary.Items[1].AvailableStock)

	expected := decimal.Zero
	for _, item := range summary.Items {
		assert.True(t, item.TotalPrice.Equal(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))))
		expected = expected.Add(item.TotalPrice)
	}
	assert.True(t, summary.TotalPrice.Equal(expected))
}

func TestService_GetCart_StoreError(t *testing.T) {
	env := newTestService()
	env.store.GetLinesErr = errors.New("timeout")

	summary, err := env.svc.GetCart(context.Background(), userID)

	assert.ErrorIs(t, err, env.store.GetLinesErr)
	assert.Nil(t, summary)
}

// ============================================
// Update / Remove Tests
// ============================================

func TestService_UpdateCartItem_InvalidProductID(t *testing.T) {
	env := newTestService()

	result, err := env.svc.UpdateCartItem(context.Background(), userID, "not-a-uuid", 2)

	require.NoError(t, err)
	assert.False(t, result.Success)
	require.NotNil(t, result.Failure)
	assert.Equal(t, ReasonInvalidProductID, result.Failure.Reason)
	assert.Equal(t, "Invalid product ID", result.Failure.Error)
	assert.Equal(t, 0, env.store.CallCount())
	assert.Equal(t, 0, env.stock.calls)
}

func TestService_UpdateCartItem_NegativeQuantity(t *testing.T) {
	env := newTestService()

	result, err := env.svc.UpdateCartItem(context.Background(), userID, tomatoID, -1)

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, ReasonNegativeQuantity, result.Failure.Reason)
	assert.Equal(t, "Quantity cannot be negative", result.Failure.Error)
	assert.Equal(t, 0, env.store.CallCount())
}

func TestService_UpdateCartItem_InsufficientStock(t *testing.T) {
	env := newTestService()
	ctx := context.Background()
	_, err := env.svc.AddToCart(ctx, userID, []ItemRequest{{ProductName: "Milk", Quantity: 1}}, false)
	require.NoError(t, err)

	result, err := env.svc.UpdateCartItem(ctx, userID, milkID, 6)

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, ReasonInsufficientStock, result.Failure.Reason)
	assert.Equal(t, "Insufficient stock (only 5 available)", result.Failure.Error)

	line, _ := env.store.Line(userID, milkID)
	assert.Equal(t, 1, line.Quantity)
}

func TestService_UpdateCartItem_SetsQuantity(t *testing.T) {
	env := newTestService()
	ctx := context.Background()
	_, err := env.svc.AddToCart(ctx, userID, []ItemRequest{{ProductName: "Tomato", Quantity: 1}}, false)
	require.NoError(t, err)

	result, err := env.svc.UpdateCartItem(ctx, userID, tomatoID, 7)

	require.NoError(t, err)
	assert.True(t, result.Success)
	require.NotNil(t, result.Cart)
	assert.Equal(t, 7, result.Cart.TotalItems)
	line, _ := env.store.Line(userID, tomatoID)
	assert.Equal(t, 7, line.Quantity)
}

func TestService_UpdateCartItem_ZeroRemovesLine(t *testing.T) {
	env := newTestService()
	ctx := context.Background()
	_, err := env.svc.AddToCart(ctx, userID, []ItemRequest{{ProductName: "Tomato", Quantity: 2}}, false)
	require.NoError(t, err)
	stockCalls := env.stock.calls

	result, err := env.svc.UpdateCartItem(ctx, userID, tomatoID, 0)

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Empty(t, result.Cart.Items)
	_, ok := env.store.Line(userID, tomatoID)
	assert.False(t, ok)
	// Zero skips the stock check
	assert.Equal(t, stockCalls, env.stock.calls)
}

func TestService_UpdateCartItem_CartNotFound(t *testing.T) {
	env := newTestService()

	result, err := env.svc.UpdateCartItem(context.Background(), userID, tomatoID, 1)

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, ReasonCartNotFound, result.Failure.Reason)
	assert.Equal(t, "Cart not found", result.Failure.Error)
	assert.Equal(t, 1, env.store.Rollbacks)
}

func TestService_UpdateCartItem_MissingLineSucceeds(t *testing.T) {
	env := newTestService()
	ctx := context.Background()
	_, err := env.svc.AddToCart(ctx, userID, []ItemRequest{{ProductName: "Tomato", Quantity: 1}}, false)
	require.NoError(t, err)
	pub := &fakePublisher{}
	env.svc.WithPublisher(pub)

	updated, err := env.svc.UpdateCartItem(ctx, userID, milkID, 2)
	require.NoError(t, err)
	removed, err := env.svc.RemoveFromCart(ctx, userID, milkID)
	require.NoError(t, err)

	assert.True(t, updated.Success)
	assert.True(t, removed.Success)
	_, ok := env.store.Line(userID, milkID)
	assert.False(t, ok)

	// Nothing changed, so nothing is published
	assert.Empty(t, pub.events)
}

func TestService_UpdateCartItem_StoreError(t *testing.T) {
	env := newTestService()
	ctx := context.Background()
	_, err := env.svc.AddToCart(ctx, userID, []ItemRequest{{ProductName: "Tomato", Quantity: 1}}, false)
	require.NoError(t, err)
	env.store.SetQuantityErr = errors.New("deadlock detected")

	result, err := env.svc.UpdateCartItem(ctx, userID, tomatoID, 2)

	assert.ErrorIs(t, err, env.store.SetQuantityErr)
	assert.Nil(t, result)
}

func TestService_RemoveFromCart(t *testing.T) {
	env := newTestService()
	ctx := context.Background()
	_, err := env.svc.AddToCart(ctx, userID, []ItemRequest{
		{ProductName: "Tomato", Quantity: 1},
		{ProductName: "Milk", Quantity: 1},
	}, false)
	require.NoError(t, err)

	result, err := env.svc.RemoveFromCart(ctx, userID, milkID)

	require.NoError(t, err)
	assert.True(t, result.Success)
	require.Len(t, result.Cart.Items, 1)
	assert.Equal(t, tomatoID, result.Cart.Items[0].ProductID)
}

// ============================================
// Clear Cart Tests
// ============================================

func TestService_ClearCart_NoCart(t *testing.T) {
	env := newTestService()

	result, err := env.svc.ClearCart(context.Background(), userID)

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "Cart cleared", result.Message)
	assert.Equal(t, int64(0), result.RemovedLines)
	assert.False(t, env.store.HasCart(userID))
}

func TestService_ClearCart_KeepsCartRow(t *testing.T) {
	env := newTestService()
	ctx := context.Background()
	_, err := env.svc.AddToCart(ctx, userID, []ItemRequest{
		{ProductName: "Tomato", Quantity: 1},
		{ProductName: "Milk", Quantity: 1},
	}, false)
	require.NoError(t, err)

	result, err := env.svc.ClearCart(ctx, userID)

	require.NoError(t, err)
	assert.Equal(t, int64(2), result.RemovedLines)
	assert.True(t, env.store.HasCart(userID))

	summary, err := env.svc.GetCart(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, summary.Items)
}

func TestService_ClearCart_StoreError(t *testing.T) {
	env := newTestService()
	env.store.ClearErr = errors.New("disk full")

	result, err := env.svc.ClearCart(context.Background(), userID)

	assert.ErrorIs(t, err, env.store.ClearErr)
	assert.Nil(t, result)
}

// ============================================
// Event Publishing Tests
// ============================================

func TestService_PublishesCommittedEvents(t *testing.T) {
	env := newTestService()
	pub := &fakePublisher{}
	env.svc.WithPublisher(pub)
	ctx := context.Background()

	_, err := env.svc.AddToCart(ctx, userID, []ItemRequest{{ProductName: "Tomato", Quantity: 2}}, false)
	require.NoError(t, err)
	_, err = env.svc.UpdateCartItem(ctx, userID, tomatoID, 4)
	require.NoError(t, err)
	_, err = env.svc.RemoveFromCart(ctx, userID, tomatoID)
	require.NoError(t, err)
	_, err = env.svc.ClearCart(ctx, userID)
	require.NoError(t, err)

	// Clearing an already empty cart publishes nothing
	require.Len(t, pub.events, 3)
	assert.Equal(t, EventItemAdded, pub.events[0].eventType)
	assert.Equal(t, EventItemQuantityChanged, pub.events[1].eventType)
	assert.Equal(t, EventItemRemoved, pub.events[2].eventType)
	for _, e := range pub.events {
		assert.Equal(t, userID, e.key)
		assert.NotEmpty(t, e.event.CartID)
	}

	added, ok := pub.events[0].event.Data.(ItemAddedToCart)
	require.True(t, ok)
	assert.Equal(t, 2, added.Quantity)
	assert.False(t, added.Clamped)
}

func TestService_CartClearedCarriesCartID(t *testing.T) {
	env := newTestService()
	ctx := context.Background()
	_, err := env.svc.AddToCart(ctx, userID, []ItemRequest{
		{ProductName: "Tomato", Quantity: 1},
		{ProductName: "Milk", Quantity: 1},
	}, false)
	require.NoError(t, err)
	pub := &fakePublisher{}
	env.svc.WithPublisher(pub)

	_, err = env.svc.ClearCart(ctx, userID)
	require.NoError(t, err)

	require.Len(t, pub.events, 1)
	assert.Equal(t, EventCartCleared, pub.events[0].eventType)
	assert.NotEmpty(t, pub.events[0].event.CartID)
	cleared, ok := pub.events[0].event.Data.(CartCleared)
	require.True(t, ok)
	assert.Equal(t, int64(2), cleared.RemovedLines)
}

func TestService_NoEventsOnRollback(t *testing.T) {
	env := newTestService()
	pub := &fakePublisher{}
	env.svc.WithPublisher(pub)
	env.store.EnsureCartErr = errors.New("boom")

	_, err := env.svc.AddToCart(context.Background(), userID, []ItemRequest{{ProductName: "Tomato", Quantity: 1}}, false)

	assert.Error(t, err)
	assert.Empty(t, pub.events)
}

func TestService_PublishFailureDoesNotFailCall(t *testing.T) {
	env := newTestService()
	env.svc.WithPublisher(&fakePublisher{err: errors.New("broker down")})

	result, err := env.svc.AddToCart(context.Background(), userID, []ItemRequest{{ProductName: "Tomato", Quantity: 1}}, false)

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, float64(1), testutil.ToFloat64(env.metrics.EventPublishFailures))
}

var _ store.CartStoreInterface = (*mocks.MockCartStore)(nil)
