package review

import (
	"context"
	"sort"
	"sync"
	"time"
)

type Repository interface {
	// Upsert creates the customer's review of an item or replaces it.
	Upsert(ctx context.Context, r Review) (Review, error)
	ListByItem(ctx context.Context, itemID int) ([]Review, error)
}

type InMemoryRepository struct {
	mu      sync.RWMutex
	reviews []Review
	nextID  int
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{nextID: 1}
}

func (r *InMemoryRepository) Upsert(_ context.Context, rv Review) (Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	for i, existing := range r.reviews {
		if existing.ItemID == rv.ItemID && existing.CustomerID == rv.CustomerID {
			existing.Rating = rv.Rating
			existing.Body = rv.Body
			existing.ReviewerName = rv.ReviewerName
			existing.UpdatedAt = now
			r.reviews[i] = existing
			return existing, nil
		}
	}
	rv.ID = r.nextID
	r.nextID++
	rv.CreatedAt, rv.UpdatedAt = now, now
	r.reviews = append(r.reviews, rv)
	return rv, nil
}

func (r *InMemoryRepository) ListByItem(_ context.Context, itemID int) ([]Review, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Review, 0)
	for _, rv := range r.reviews {
		if rv.ItemID == itemID {
			out = append(out, rv)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}
