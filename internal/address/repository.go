package address

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wichananm65/urbancart-backend/internal/apperror"
)

var (
	ErrNotFound = apperror.NotFound("address not found")
	ErrInUse    = apperror.Conflict("address is referenced by an order")
)

type Repository interface {
	Create(ctx context.Context, a Address) (Address, error)
	Find(ctx context.Context, id int) (Address, error)
	ListByCustomer(ctx context.Context, customerID int) ([]Address, error)
	// Update only touches rows owned by a.CustomerID.
	Update(ctx context.Context, a Address) (Address, error)
	Delete(ctx context.Context, customerID, id int) error
}

type InMemoryRepository struct {
	mu     sync.RWMutex
	data   map[int]Address
	nextID int
}

func NewInMemoryRepository(seed []Address) *InMemoryRepository {
	r := &InMemoryRepository{data: make(map[int]Address, len(seed)), nextID: 1}
	for _, a := range seed {
		r.data[a.ID] = a
		if a.ID >= r.nextID {
			r.nextID = a.ID + 1
		}
	}
	return r
}

func (r *InMemoryRepository) Create(_ context.Context, a Address) (Address, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a.ID = r.nextID
	r.nextID++
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	r.data[a.ID] = a
	return a, nil
}

func (r *InMemoryRepository) Find(_ context.Context, id int) (Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.data[id]
	if !ok {
		return Address{}, ErrNotFound
	}
	return a, nil
}

func (r *InMemoryRepository) ListByCustomer(_ context.Context, customerID int) ([]Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Address, 0)
	for _, a := range r.data {
		if a.CustomerID == customerID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *InMemoryRepository) Update(_ context.Context, a Address) (Address, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.data[a.ID]
	if !ok || cur.CustomerID != a.CustomerID {
		return Address{}, ErrNotFound
	}
	a.CreatedAt = cur.CreatedAt
	a.UpdatedAt = time.Now().UTC()
	r.data[a.ID] = a
	return a, nil
}

func (r *InMemoryRepository) Delete(_ context.Context, customerID, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.data[id]
	if !ok || cur.CustomerID != customerID {
		return ErrNotFound
	}
	delete(r.data, id)
	return nil
}
