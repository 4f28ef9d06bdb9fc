package cart

import (
	"context"
	"sync"
	"time"

	"github.com/wichananm65/urbancart-backend/internal/apperror"
)

var (
	ErrNoCart          = apperror.NotFound("cart not found")
	ErrInvalidQuantity = apperror.Validation("quantity must be greater than zero")
)

// Store is the persistence contract for customer carts. It never checks
// stock; that belongs to Service.
type Store interface {
	// Find returns ErrNoCart when the customer has no cart yet.
	Find(ctx context.Context, customerID int) (Cart, error)
	GetOrCreate(ctx context.Context, customerID int) (Cart, error)
	Lines(ctx context.Context, cartID int) ([]Line, error)
	// AddLine adds to an existing line's quantity or inserts a new line.
	AddLine(ctx context.Context, cartID, itemID, quantity int) (Line, error)
	// SetLineQuantity replaces the quantity; quantity <= 0 removes the line.
	SetLineQuantity(ctx context.Context, cartID, itemID, quantity int) error
	RemoveLine(ctx context.Context, cartID, itemID int) error
	Clear(ctx context.Context, cartID int) error
}

type memCart struct {
	cart  Cart
	lines map[int]Line
}

type InMemoryStore struct {
	mu         sync.Mutex
	byCustomer map[int]*memCart
	byID       map[int]*memCart
	nextID     int
	now        func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byCustomer: make(map[int]*memCart),
		byID:       make(map[int]*memCart),
		nextID:     1,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *InMemoryStore) Find(_ context.Context, customerID int) (Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mc, ok := s.byCustomer[customerID]
	if !ok {
		return Cart{}, ErrNoCart
	}
	return mc.cart, nil
}

func (s *InMemoryStore) GetOrCreate(_ context.Context, customerID int) (Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if mc, ok := s.byCustomer[customerID]; ok {
		return mc.cart, nil
	}
	mc := &memCart{
		cart:  Cart{ID: s.nextID, CustomerID: customerID, CreatedAt: s.now()},
		lines: make(map[int]Line),
	}
	s.nextID++
	s.byCustomer[customerID] = mc
	s.byID[mc.cart.ID] = mc
	return mc.cart, nil
}

func (s *InMemoryStore) Lines(_ context.Context, cartID int) ([]Line, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mc, ok := s.byID[cartID]
	if !ok {
		return nil, ErrNoCart
	}
	out := make([]Line, 0, len(mc.lines))
	for _, l := range mc.lines {
		out = append(out, l)
	}
	sortLines(out)
	return out, nil
}

func (s *InMemoryStore) AddLine(_ context.Context, cartID, itemID, quantity int) (Line, error) {
	if quantity <= 0 {
		return Line{}, ErrInvalidQuantity
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	mc, ok := s.byID[cartID]
	if !ok {
		return Line{}, ErrNoCart
	}
	l, exists := mc.lines[itemID]
	if !exists {
		l = Line{ItemID: itemID, AddedAt: s.now()}
	}
	l.Quantity += quantity
	mc.lines[itemID] = l
	return l, nil
}

func (s *InMemoryStore) SetLineQuantity(_ context.Context, cartID, itemID, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	mc, ok := s.byID[cartID]
	if !ok {
		return ErrNoCart
	}
	if quantity <= 0 {
		delete(mc.lines, itemID)
		return nil
	}
	l, exists := mc.lines[itemID]
	if !exists {
		l = Line{ItemID: itemID, AddedAt: s.now()}
	}
	l.Quantity = quantity
	mc.lines[itemID] = l
	return nil
}

func (s *InMemoryStore) RemoveLine(_ context.Context, cartID, itemID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if mc, ok := s.byID[cartID]; ok {
		delete(mc.lines, itemID)
	}
	return nil
}

func (s *InMemoryStore) Clear(_ context.Context, cartID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if mc, ok := s.byID[cartID]; ok {
		mc.lines = make(map[int]Line)
	}
	return nil
}
