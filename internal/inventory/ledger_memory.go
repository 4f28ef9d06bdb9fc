package inventory

import (
	"context"
	"sync"

	"github.com/wichananm65/urbancart-backend/internal/apperror"
)

// InMemoryLedger keeps stock in a map guarded by a single mutex. It backs the
// in-memory catalog and the tests.
type InMemoryLedger struct {
	mu    sync.Mutex
	stock map[int]Stock
}

func NewInMemoryLedger(seed []Stock) *InMemoryLedger {
	l := &InMemoryLedger{stock: make(map[int]Stock, len(seed))}
	for _, s := range seed {
		l.stock[s.ItemID] = s
	}
	return l
}

// Put registers or replaces an item's stock row.
func (l *InMemoryLedger) Put(s Stock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stock[s.ItemID] = s
}

// Rename updates the display name used in stock errors.
func (l *InMemoryLedger) Rename(itemID int, name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if s, ok := l.stock[itemID]; ok {
		s.Name = name
		l.stock[itemID] = s
	}
}

func (l *InMemoryLedger) Remove(itemID int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.stock, itemID)
}

func (l *InMemoryLedger) Stock(_ context.Context, itemID int) (Stock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.stock[itemID]
	if !ok {
		return Stock{}, ErrNotFound
	}
	return s, nil
}

func (l *InMemoryLedger) GetAvailable(ctx context.Context, itemID int) (int, error) {
	s, err := l.Stock(ctx, itemID)
	if err != nil {
		return 0, err
	}
	return s.Quantity, nil
}

func (l *InMemoryLedger) DecrementIfAvailable(_ context.Context, itemID, amount int) (Stock, error) {
	if amount <= 0 {
		return Stock{}, ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.stock[itemID]
	if !ok {
		return Stock{}, ErrNotFound
	}
	if s.Quantity < amount {
		return Stock{}, apperror.InsufficientStock(s.ItemID, s.Name, s.Quantity)
	}
	s.Quantity -= amount
	l.stock[itemID] = s
	return s, nil
}

func (l *InMemoryLedger) DecrementBatch(_ context.Context, lines []Decrement) error {
	lines, err := normalize(lines)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, d := range lines {
		s, ok := l.stock[d.ItemID]
		if !ok {
			return ErrNotFound
		}
		if s.Quantity < d.Amount {
			return apperror.InsufficientStock(s.ItemID, s.Name, s.Quantity)
		}
	}
	for _, d := range lines {
		s := l.stock[d.ItemID]
		s.Quantity -= d.Amount
		l.stock[d.ItemID] = s
	}
	return nil
}

func (l *InMemoryLedger) SetQuantity(_ context.Context, itemID, quantity int) (Stock, error) {
	if quantity < 0 {
		return Stock{}, ErrNegativeQuantity
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.stock[itemID]
	if !ok {
		return Stock{}, ErrNotFound
	}
	s.Quantity = quantity
	l.stock[itemID] = s
	return s, nil
}

func (l *InMemoryLedger) Restock(_ context.Context, itemID, amount int) (Stock, error) {
	if amount <= 0 {
		return Stock{}, ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.stock[itemID]
	if !ok {
		return Stock{}, ErrNotFound
	}
	s.Quantity += amount
	l.stock[itemID] = s
	return s, nil
}
