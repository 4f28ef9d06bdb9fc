package customer

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wichananm65/urbancart-backend/internal/apperror"
)

var (
	ErrNotFound = apperror.NotFound("customer not found")
	ErrInactive = apperror.Forbidden("customer account is deactivated")
)

type Repository interface {
	// CreateIfMissing returns the existing profile for c.UserID or inserts c.
	CreateIfMissing(ctx context.Context, c Customer) (Customer, error)
	Get(ctx context.Context, id int) (Customer, error)
	GetByUser(ctx context.Context, userID int) (Customer, error)
	Update(ctx context.Context, c Customer) (Customer, error)
	List(ctx context.Context) ([]Customer, error)
	SetActive(ctx context.Context, id int, active bool) (Customer, error)
}

type InMemoryRepository struct {
	mu     sync.RWMutex
	byID   map[int]Customer
	nextID int
}

func NewInMemoryRepository(seed []Customer) *InMemoryRepository {
	r := &InMemoryRepository{byID: make(map[int]Customer, len(seed)), nextID: 1}
	for _, c := range seed {
		r.byID[c.ID] = c
		if c.ID >= r.nextID {
			r.nextID = c.ID + 1
		}
	}
	return r
}

func (r *InMemoryRepository) CreateIfMissing(_ context.Context, c Customer) (Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if existing.UserID == c.UserID {
			return existing, nil
		}
	}
	c.ID = r.nextID
	r.nextID++
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	r.byID[c.ID] = c
	return c, nil
}

func (r *InMemoryRepository) Get(_ context.Context, id int) (Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[id]
	if !ok {
		return Customer{}, ErrNotFound
	}
	return c, nil
}

func (r *InMemoryRepository) GetByUser(_ context.Context, userID int) (Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.byID {
		if c.UserID == userID {
			return c, nil
		}
	}
	return Customer{}, ErrNotFound
}

func (r *InMemoryRepository) Update(_ context.Context, c Customer) (Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.byID[c.ID]
	if !ok {
		return Customer{}, ErrNotFound
	}
	cur.GivenName = c.GivenName
	cur.FamilyName = c.FamilyName
	cur.Phone = c.Phone
	cur.ShippingAddressID = c.ShippingAddressID
	cur.BillingAddressID = c.BillingAddressID
	cur.UpdatedAt = time.Now().UTC()
	r.byID[c.ID] = cur
	return cur, nil
}

func (r *InMemoryRepository) List(_ context.Context) ([]Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Customer, 0, len(r.byID))
	for _, c := range r.byID {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *InMemoryRepository) SetActive(_ context.Context, id int, active bool) (Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return Customer{}, ErrNotFound
	}
	c.Active = active
	c.UpdatedAt = time.Now().UTC()
	r.byID[id] = c
	return c, nil
}
