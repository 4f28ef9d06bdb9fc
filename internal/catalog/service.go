package catalog

import (
	"context"
	"strings"

	"github.com/wichananm65/urbancart-backend/internal/logging"
	"go.uber.org/zap"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, f Filter) ([]Item, error) {
	f.Search = strings.TrimSpace(f.Search)
	return s.repo.List(ctx, f)
}

// GetItem is the lookup the cart and checkout use for current price and name.
func (s *Service) GetItem(ctx context.Context, id int) (Item, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetBySKU(ctx context.Context, sku string) (Item, error) {
	return s.repo.GetBySKU(ctx, sku)
}

func (s *Service) ListByIDs(ctx context.Context, ids []int) ([]Item, error) {
	return s.repo.ListByIDs(ctx, ids)
}

func (s *Service) Categories(ctx context.Context) ([]string, error) {
	return s.repo.Categories(ctx)
}

func (s *Service) Create(ctx context.Context, it Item) (Item, error) {
	if err := validateItem(it); err != nil {
		return Item{}, err
	}
	it.Price = it.Price.Round(2)
	created, err := s.repo.Create(ctx, it)
	if err != nil {
		return Item{}, err
	}
	logging.FromContext(ctx).Info("item_created", zap.Int("item_id", created.ID), zap.String("sku", created.SKU))
	return created, nil
}

// Update changes descriptive fields and price. Orders already placed keep
// the price captured at purchase time.
func (s *Service) Update(ctx context.Context, id int, it Item) (Item, error) {
	if err := validateItem(it); err != nil {
		return Item{}, err
	}
	it.Price = it.Price.Round(2)
	return s.repo.Update(ctx, id, it)
}

func (s *Service) Delete(ctx context.Context, id int) error {
	return s.repo.Delete(ctx, id)
}
