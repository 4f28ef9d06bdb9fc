package catalog

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wichananm65/urbancart-backend/internal/apperror"
	"github.com/wichananm65/urbancart-backend/internal/inventory"
)

var (
	ErrNotFound     = apperror.NotFound("item not found")
	ErrDuplicateSKU = apperror.Conflict("sku already exists")
)

type Repository interface {
	List(ctx context.Context, f Filter) ([]Item, error)
	GetByID(ctx context.Context, id int) (Item, error)
	GetBySKU(ctx context.Context, sku string) (Item, error)
	// ListByIDs returns the matching items ordered like ids; unknown ids are skipped.
	ListByIDs(ctx context.Context, ids []int) ([]Item, error)
	Categories(ctx context.Context) ([]string, error)
	Create(ctx context.Context, it Item) (Item, error)
	Update(ctx context.Context, id int, it Item) (Item, error)
	Delete(ctx context.Context, id int) error
}

// InMemoryRepository keeps items in a slice and their stock in an
// inventory.InMemoryLedger, so checkout and catalog reads see one quantity.
type InMemoryRepository struct {
	mu      sync.RWMutex
	storage []Item
	nextID  int
	stock   *inventory.InMemoryLedger
}

func NewInMemoryRepository(seed []Item) *InMemoryRepository {
	r := &InMemoryRepository{
		storage: make([]Item, 0, len(seed)),
		nextID:  1,
		stock:   inventory.NewInMemoryLedger(nil),
	}

	maxID := 0
	for _, it := range seed {
		r.storage = append(r.storage, it)
		r.stock.Put(inventory.Stock{ItemID: it.ID, Name: it.Name, Quantity: it.Quantity})
		if it.ID > maxID {
			maxID = it.ID
		}
	}
	r.nextID = maxID + 1
	return r
}

// Ledger is the stock ledger backing this repository.
func (r *InMemoryRepository) Ledger() *inventory.InMemoryLedger {
	return r.stock
}

func (r *InMemoryRepository) withStock(ctx context.Context, it Item) Item {
	if q, err := r.stock.GetAvailable(ctx, it.ID); err == nil {
		it.Quantity = q
	}
	return it
}

func (r *InMemoryRepository) List(ctx context.Context, f Filter) ([]Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Item, 0, len(r.storage))
	for _, it := range r.storage {
		it = r.withStock(ctx, it)
		if f.matches(it) {
			out = append(out, it)
		}
	}
	sortItems(out, f.Sort)
	return out, nil
}

func sortItems(items []Item, by Sort) {
	switch by {
	case SortPriceAsc:
		sort.SliceStable(items, func(i, j int) bool { return items[i].Price.LessThan(items[j].Price) })
	case SortPriceDesc:
		sort.SliceStable(items, func(i, j int) bool { return items[i].Price.GreaterThan(items[j].Price) })
	case SortName:
		sort.SliceStable(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	case SortNewest:
		sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	default:
		sort.SliceStable(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	}
}

func (r *InMemoryRepository) GetByID(ctx context.Context, id int) (Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, it := range r.storage {
		if it.ID == id {
			return r.withStock(ctx, it), nil
		}
	}
	return Item{}, ErrNotFound
}

func (r *InMemoryRepository) GetBySKU(ctx context.Context, sku string) (Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, it := range r.storage {
		if it.SKU == sku {
			return r.withStock(ctx, it), nil
		}
	}
	return Item{}, ErrNotFound
}

func (r *InMemoryRepository) ListByIDs(ctx context.Context, ids []int) ([]Item, error) {
	out := make([]Item, 0, len(ids))
	for _, id := range ids {
		it, err := r.GetByID(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, it)
	}
	return out, nil
}

func (r *InMemoryRepository) Categories(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := map[string]bool{}
	out := make([]string, 0)
	for _, it := range r.storage {
		if it.Category != "" && !seen[it.Category] {
			seen[it.Category] = true
			out = append(out, it.Category)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *InMemoryRepository) Create(_ context.Context, it Item) (Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.storage {
		if existing.SKU == it.SKU {
			return Item{}, ErrDuplicateSKU
		}
	}
	if it.ID == 0 {
		it.ID = r.nextID
		r.nextID++
	}
	now := time.Now().UTC()
	it.CreatedAt, it.UpdatedAt = now, now
	r.storage = append(r.storage, it)
	r.stock.Put(inventory.Stock{ItemID: it.ID, Name: it.Name, Quantity: it.Quantity})
	return it, nil
}

func (r *InMemoryRepository) Update(ctx context.Context, id int, it Item) (Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.storage {
		if existing.SKU == it.SKU && existing.ID != id {
			return Item{}, ErrDuplicateSKU
		}
	}
	for i := range r.storage {
		if r.storage[i].ID == id {
			it.ID = id
			it.CreatedAt = r.storage[i].CreatedAt
			it.UpdatedAt = time.Now().UTC()
			r.storage[i] = it
			r.stock.Rename(id, it.Name)
			return r.withStock(ctx, it), nil
		}
	}
	return Item{}, ErrNotFound
}

func (r *InMemoryRepository) Delete(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.storage {
		if r.storage[i].ID == id {
			r.storage = append(r.storage[:i], r.storage[i+1:]...)
			r.stock.Remove(id)
			return nil
		}
	}
	return ErrNotFound
}
