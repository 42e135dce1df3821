package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/example/farm-cart/internal/infrastructure/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MockCartStore is an in-memory, transactional implementation of
// CartStoreInterface for testing. Transactions are serialized and work on a
// copy of the state that is swapped in on commit.
type MockCartStore struct {
	mu       sync.Mutex
	carts    map[string]string                      // userID -> cartID
	lines    map[string]map[string]*store.CartLine // cartID -> productID -> line
	products map[string]string                      // productID -> name
	clock    time.Time

	// For tracking calls in tests
	Calls     []string
	Commits   int
	Rollbacks int

	// Errors returned by the matching operation when set
	BeginErr       error
	EnsureCartErr  error
	UpsertErr      error
	SetQuantityErr error
	ClearErr       error
	GetLinesErr    error
}

// NewMockCartStore creates a new MockCartStore
func NewMockCartStore() *MockCartStore {
	return &MockCartStore{
		carts:    make(map[string]string),
		lines:    make(map[string]map[string]*store.CartLine),
		products: make(map[string]string),
		clock:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// AddProduct registers a catalog product so GetLines can join its name
func (m *MockCartStore) AddProduct(productID, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[productID] = name
}

// Line returns the stored line for a user and product
func (m *MockCartStore) Line(userID, productID string) (store.CartLine, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cartID, ok := m.carts[userID]
	if !ok {
		return store.CartLine{}, false
	}
	l, ok := m.lines[cartID][productID]
	if !ok {
		return store.CartLine{}, false
	}
	return *l, true
}

// HasCart reports whether a cart row exists for the user
func (m *MockCartStore) HasCart(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.carts[userID]
	return ok
}

// CallCount returns the number of recorded calls
func (m *MockCartStore) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

func (m *MockCartStore) tick() time.Time {
	m.clock = m.clock.Add(time.Millisecond)
	return m.clock
}

// WithTx runs fn against a copy of the state and keeps it only on success
func (m *MockCartStore) WithTx(ctx context.Context, fn func(tx store.CartTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, "WithTx")
	if m.BeginErr != nil {
		return m.BeginErr
	}

	tx := &mockCartTx{
		store: m,
		carts: make(map[string]string, len(m.carts)),
		lines: make(map[string]map[string]*store.CartLine, len(m.lines)),
	}
	for userID, cartID := range m.carts {
		tx.carts[userID] = cartID
	}
	for cartID, byProduct := range m.lines {
		copied := make(map[string]*store.CartLine, len(byProduct))
		for productID, l := range byProduct {
			line := *l
			copied[productID] = &line
		}
		tx.lines[cartID] = copied
	}

	committed := false
	defer func() {
		if !committed {
			m.Rollbacks++
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	m.carts = tx.carts
	m.lines = tx.lines
	m.Commits++
	committed = true
	return nil
}

// GetLines returns lines joined with product names, most recently added first
func (m *MockCartStore) GetLines(ctx context.Context, userID string) ([]store.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, "GetLines")
	if m.GetLinesErr != nil {
		return nil, m.GetLinesErr
	}

	lines := make([]store.CartLine, 0)
	cartID, ok := m.carts[userID]
	if !ok {
		return lines, nil
	}
	for productID, l := range m.lines[cartID] {
		name, ok := m.products[productID]
		if !ok {
			continue
		}
		line := *l
		line.ProductName = name
		lines = append(lines, line)
	}
	sort.Slice(lines, func(i, j int) bool {
		if !lines[i].AddedAt.Equal(lines[j].AddedAt) {
			return lines[i].AddedAt.After(lines[j].AddedAt)
		}
		return lines[i].ProductID < lines[j].ProductID
	})
	return lines, nil
}

type mockCartTx struct {
	store *MockCartStore
	carts map[string]string
	lines map[string]map[string]*store.CartLine
}

func (t *mockCartTx) EnsureCart(ctx context.Context, userID string) (string, error) {
	t.store.Calls = append(t.store.Calls, "EnsureCart")
	if t.store.EnsureCartErr != nil {
		return "", t.store.EnsureCartErr
	}
	if cartID, ok := t.carts[userID]; ok {
		return cartID, nil
	}
	cartID := uuid.New().String()
	t.carts[userID] = cartID
	return cartID, nil
}

func (t *mockCartTx) FindCart(ctx context.Context, userID string) (string, error) {
	t.store.Calls = append(t.store.Calls, "FindCart")
	cartID, ok := t.carts[userID]
	if !ok {
		return "", store.ErrCartNotFound
	}
	return cartID, nil
}

func (t *mockCartTx) UpsertLine(ctx context.Context, cartID, productID string, delta int, unitPrice decimal.Decimal) (store.LineState, error) {
	t.store.Calls = append(t.store.Calls, "UpsertLine")
	if t.store.UpsertErr != nil {
		return store.LineState{}, t.store.UpsertErr
	}

	now := t.store.tick()
	if t.lines[cartID] == nil {
		t.lines[cartID] = make(map[string]*store.CartLine)
	}
	if existing, ok := t.lines[cartID][productID]; ok {
		existing.Quantity += delta
		existing.UpdatedAt = now
		return store.LineState{Quantity: existing.Quantity, UnitPrice: existing.UnitPrice}, nil
	}

	t.lines[cartID][productID] = &store.CartLine{
		CartID:    cartID,
		ProductID: productID,
		Quantity:  delta,
		UnitPrice: unitPrice,
		AddedAt:   now,
		UpdatedAt: now,
	}
	return store.LineState{Quantity: delta, UnitPrice: unitPrice}, nil
}

func (t *mockCartTx) SetLineQuantity(ctx context.Context, cartID, productID string, quantity int) (bool, error) {
	t.store.Calls = append(t.store.Calls, "SetLineQuantity")
	if t.store.SetQuantityErr != nil {
		return false, t.store.SetQuantityErr
	}
	if quantity < 0 {
		return false, store.ErrInvalidQuantity
	}

	line, ok := t.lines[cartID][productID]
	if !ok {
		return false, nil
	}
	if quantity == 0 {
		delete(t.lines[cartID], productID)
		return true, nil
	}
	line.Quantity = quantity
	line.UpdatedAt = t.store.tick()
	return true, nil
}

func (t *mockCartTx) ClearLines(ctx context.Context, userID string) (string, int64, error) {
	t.store.Calls = append(t.store.Calls, "ClearLines")
	if t.store.ClearErr != nil {
		return "", 0, t.store.ClearErr
	}
	cartID, ok := t.carts[userID]
	if !ok {
		return "", 0, nil
	}
	n := int64(len(t.lines[cartID]))
	delete(t.lines, cartID)
	return cartID, n, nil
}
