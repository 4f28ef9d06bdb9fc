package inventory

import (
	"context"

	"github.com/wichananm65/urbancart-backend/internal/logging"
	"go.uber.org/zap"
)

// Service exposes the admin-facing stock operations.
type Service struct {
	ledger Ledger
}

func NewService(ledger Ledger) *Service {
	return &Service{ledger: ledger}
}

func (s *Service) Get(ctx context.Context, itemID int) (Stock, error) {
	return s.ledger.Stock(ctx, itemID)
}

func (s *Service) SetQuantity(ctx context.Context, itemID, quantity int) (Stock, error) {
	st, err := s.ledger.SetQuantity(ctx, itemID, quantity)
	if err != nil {
		return Stock{}, err
	}
	logging.FromContext(ctx).Info("stock_set", zap.Int("item_id", itemID), zap.Int("quantity", st.Quantity))
	return st, nil
}

func (s *Service) Restock(ctx context.Context, itemID, amount int) (Stock, error) {
	st, err := s.ledger.Restock(ctx, itemID, amount)
	if err != nil {
		return Stock{}, err
	}
	logging.FromContext(ctx).Info("stock_restocked", zap.Int("item_id", itemID), zap.Int("amount", amount), zap.Int("quantity", st.Quantity))
	return st, nil
}
