package cart

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/wichananm65/urbancart-backend/internal/apperror"
	"github.com/wichananm65/urbancart-backend/internal/catalog"
	"github.com/wichananm65/urbancart-backend/internal/logging"
	"go.uber.org/zap"
)

// Items is the catalog view the cart needs: existence, price and stock.
type Items interface {
	GetItem(ctx context.Context, id int) (catalog.Item, error)
	ListByIDs(ctx context.Context, ids []int) ([]catalog.Item, error)
}

// Service layers stock validation over Store and GuestStore.
type Service struct {
	store  Store
	guests GuestStore
	items  Items
}

func NewService(store Store, guests GuestStore, items Items) *Service {
	return &Service{store: store, guests: guests, items: items}
}

// View prices the customer's cart with current catalog prices. Lines whose
// item has since been removed from the catalog are left out.
func (s *Service) View(ctx context.Context, customerID int) (View, error) {
	lines, err := s.LinesForCustomer(ctx, customerID)
	if err != nil {
		return View{}, err
	}
	return s.price(ctx, lines)
}

func (s *Service) price(ctx context.Context, lines []Line) (View, error) {
	v := View{Lines: make([]ViewLine, 0, len(lines)), Total: decimal.Zero}
	if len(lines) == 0 {
		return v, nil
	}
	ids := make([]int, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ItemID)
	}
	items, err := s.items.ListByIDs(ctx, ids)
	if err != nil {
		return View{}, err
	}
	byID := make(map[int]catalog.Item, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}
	for _, l := range lines {
		it, ok := byID[l.ItemID]
		if !ok {
			continue
		}
		lineTotal := it.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
		v.Lines = append(v.Lines, ViewLine{
			ItemID:    it.ID,
			SKU:       it.SKU,
			Name:      it.Name,
			UnitPrice: it.Price,
			Quantity:  l.Quantity,
			LineTotal: lineTotal,
			Available: it.Quantity,
		})
		v.ItemCount += l.Quantity
		v.Total = v.Total.Add(lineTotal)
	}
	v.Total = v.Total.Round(2)
	return v, nil
}

// checkStock fails when the cart would hold more of an item than is on hand.
func (s *Service) checkStock(ctx context.Context, itemID, wanted int) error {
	it, err := s.items.GetItem(ctx, itemID)
	if err != nil {
		return err
	}
	if wanted > it.Quantity {
		return apperror.InsufficientStock(it.ID, it.Name, it.Quantity)
	}
	return nil
}

func quantityOf(lines []Line, itemID int) int {
	for _, l := range lines {
		if l.ItemID == itemID {
			return l.Quantity
		}
	}
	return 0
}

// Add puts quantity more of an item in the cart. The cumulative quantity must
// not exceed current stock.
func (s *Service) Add(ctx context.Context, customerID, itemID, quantity int) (Line, error) {
	if quantity <= 0 {
		return Line{}, ErrInvalidQuantity
	}
	c, err := s.store.GetOrCreate(ctx, customerID)
	if err != nil {
		return Line{}, err
	}
	lines, err := s.store.Lines(ctx, c.ID)
	if err != nil {
		return Line{}, err
	}
	if err := s.checkStock(ctx, itemID, quantityOf(lines, itemID)+quantity); err != nil {
		return Line{}, err
	}
	return s.store.AddLine(ctx, c.ID, itemID, quantity)
}

// Update replaces a line's quantity. Zero or less removes the line.
func (s *Service) Update(ctx context.Context, customerID, itemID, quantity int) error {
	if quantity <= 0 {
		return s.Remove(ctx, customerID, itemID)
	}
	if err := s.checkStock(ctx, itemID, quantity); err != nil {
		return err
	}
	c, err := s.store.GetOrCreate(ctx, customerID)
	if err != nil {
		return err
	}
	return s.store.SetLineQuantity(ctx, c.ID, itemID, quantity)
}

func (s *Service) Remove(ctx context.Context, customerID, itemID int) error {
	c, err := s.store.Find(ctx, customerID)
	if errors.Is(err, ErrNoCart) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.store.RemoveLine(ctx, c.ID, itemID)
}

// Clear empties the customer's cart. Clearing an empty or missing cart is a no-op.
func (s *Service) Clear(ctx context.Context, customerID int) error {
	c, err := s.store.Find(ctx, customerID)
	if errors.Is(err, ErrNoCart) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.store.Clear(ctx, c.ID)
}

// LinesForCustomer never creates a cart; a customer without one has no lines.
func (s *Service) LinesForCustomer(ctx context.Context, customerID int) ([]Line, error) {
	c, err := s.store.Find(ctx, customerID)
	if errors.Is(err, ErrNoCart) {
		return []Line{}, nil
	}
	if err != nil {
		return nil, err
	}
	return s.store.Lines(ctx, c.ID)
}

// MergeGuest replays guest lines through Add. Individual failures are logged
// and reported but never abort the merge.
func (s *Service) MergeGuest(ctx context.Context, customerID int, lines []Line) MergeResult {
	res := MergeResult{Merged: make([]Line, 0, len(lines)), Failed: make([]MergeFailure, 0)}
	logger := logging.FromContext(ctx)
	for _, gl := range lines {
		l, err := s.Add(ctx, customerID, gl.ItemID, gl.Quantity)
		if err != nil {
			logger.Warn("guest_cart_line_not_merged",
				zap.Int("customer_id", customerID),
				zap.Int("item_id", gl.ItemID),
				zap.Int("quantity", gl.Quantity),
				zap.Error(err))
			res.Failed = append(res.Failed, MergeFailure{ItemID: gl.ItemID, Quantity: gl.Quantity, Reason: reasonOf(err)})
			continue
		}
		res.Merged = append(res.Merged, l)
	}
	return res
}

// MergeGuestSession merges the server-held guest cart plus any client-held
// lines, then drops the guest session.
func (s *Service) MergeGuestSession(ctx context.Context, customerID int, sessionID string, extra []Line) (MergeResult, error) {
	lines := make([]Line, 0, len(extra))
	if sessionID != "" {
		if err := validSession(sessionID); err != nil {
			return MergeResult{}, err
		}
		held, err := s.guests.Lines(ctx, sessionID)
		if err != nil {
			return MergeResult{}, err
		}
		lines = append(lines, held...)
	}
	lines = append(lines, extra...)

	res := s.MergeGuest(ctx, customerID, lines)
	if sessionID != "" {
		if err := s.guests.Clear(ctx, sessionID); err != nil {
			logging.FromContext(ctx).Warn("guest_cart_clear_failed", zap.String("session", sessionID), zap.Error(err))
		}
	}
	return res, nil
}

func reasonOf(err error) string {
	if ae, ok := apperror.As(err); ok {
		return ae.Message
	}
	return "could not add item"
}

func (s *Service) GuestView(ctx context.Context, sessionID string) (View, error) {
	if err := validSession(sessionID); err != nil {
		return View{}, err
	}
	lines, err := s.guests.Lines(ctx, sessionID)
	if err != nil {
		return View{}, err
	}
	return s.price(ctx, lines)
}

func (s *Service) GuestAdd(ctx context.Context, sessionID string, itemID, quantity int) error {
	if err := validSession(sessionID); err != nil {
		return err
	}
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	lines, err := s.guests.Lines(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := s.checkStock(ctx, itemID, quantityOf(lines, itemID)+quantity); err != nil {
		return err
	}
	return s.guests.Add(ctx, sessionID, itemID, quantity)
}

func (s *Service) GuestUpdate(ctx context.Context, sessionID string, itemID, quantity int) error {
	if err := validSession(sessionID); err != nil {
		return err
	}
	if quantity > 0 {
		if err := s.checkStock(ctx, itemID, quantity); err != nil {
			return err
		}
	}
	return s.guests.Set(ctx, sessionID, itemID, quantity)
}

func (s *Service) GuestRemove(ctx context.Context, sessionID string, itemID int) error {
	if err := validSession(sessionID); err != nil {
		return err
	}
	return s.guests.Remove(ctx, sessionID, itemID)
}

func (s *Service) GuestClear(ctx context.Context, sessionID string) error {
	if err := validSession(sessionID); err != nil {
		return err
	}
	return s.guests.Clear(ctx, sessionID)
}
