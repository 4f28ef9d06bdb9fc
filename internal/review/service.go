package review

import (
	"context"
	"strings"

	"github.com/wichananm65/urbancart-backend/internal/catalog"
	"github.com/wichananm65/urbancart-backend/internal/customer"
	"github.com/wichananm65/urbancart-backend/internal/logging"
	"go.uber.org/zap"
)

type Items interface {
	GetItem(ctx context.Context, id int) (catalog.Item, error)
}

type Customers interface {
	Get(ctx context.Context, id int) (customer.Customer, error)
}

type Service struct {
	repo      Repository
	items     Items
	customers Customers
}

func NewService(repo Repository, items Items, customers Customers) *Service {
	return &Service{repo: repo, items: items, customers: customers}
}

func (s *Service) Upsert(ctx context.Context, itemID, customerID int, in Input) (Review, error) {
	if err := in.Validate(); err != nil {
		return Review{}, err
	}
	if _, err := s.items.GetItem(ctx, itemID); err != nil {
		return Review{}, err
	}
	c, err := s.customers.Get(ctx, customerID)
	if err != nil {
		return Review{}, err
	}

	rv, err := s.repo.Upsert(ctx, Review{
		ItemID:       itemID,
		CustomerID:   customerID,
		ReviewerName: reviewerName(c.FullName()),
		Rating:       in.Rating,
		Body:         strings.TrimSpace(in.Body),
	})
	if err != nil {
		return Review{}, err
	}
	logging.FromContext(ctx).Info("review_saved",
		zap.Int("item_id", itemID), zap.Int("customer_id", customerID), zap.Int("rating", in.Rating))
	return rv, nil
}

// ListByItem returns an item's reviews, newest first.
func (s *Service) ListByItem(ctx context.Context, itemID int) ([]Review, error) {
	if _, err := s.items.GetItem(ctx, itemID); err != nil {
		return nil, err
	}
	return s.repo.ListByItem(ctx, itemID)
}
