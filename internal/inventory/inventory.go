// Package inventory owns item stock levels. Every decrement is a single
// conditional operation so quantity can never go below zero.
package inventory

import (
	"context"
	"sort"

	"github.com/wichananm65/urbancart-backend/internal/apperror"
)

var (
	ErrNotFound          = apperror.NotFound("item not found")
	ErrInvalidAmount     = apperror.Validation("amount must be positive")
	ErrNegativeQuantity  = apperror.Validation("quantity must not be negative")
	ErrInsufficientStock = &apperror.Error{Kind: apperror.KindInsufficientStock}
)

type Stock struct {
	ItemID   int    `json:"itemId"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// Decrement is one line of a batch decrement.
type Decrement struct {
	ItemID int
	Amount int
}

type Ledger interface {
	Stock(ctx context.Context, itemID int) (Stock, error)
	GetAvailable(ctx context.Context, itemID int) (int, error)
	DecrementIfAvailable(ctx context.Context, itemID, amount int) (Stock, error)
	// DecrementBatch applies every line or none of them.
	DecrementBatch(ctx context.Context, lines []Decrement) error
	SetQuantity(ctx context.Context, itemID, quantity int) (Stock, error)
	Restock(ctx context.Context, itemID, amount int) (Stock, error)
}

// normalize merges duplicate item ids and orders lines by item id so
// concurrent batches take row locks in the same order.
func normalize(lines []Decrement) ([]Decrement, error) {
	merged := make(map[int]int, len(lines))
	for _, l := range lines {
		if l.Amount <= 0 {
			return nil, ErrInvalidAmount
		}
		merged[l.ItemID] += l.Amount
	}
	out := make([]Decrement, 0, len(merged))
	for id, amt := range merged {
		out = append(out, Decrement{ItemID: id, Amount: amt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemID < out[j].ItemID })
	return out, nil
}
