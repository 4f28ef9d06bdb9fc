package cart

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

type Cart struct {
	ID         int       `json:"cartId"`
	CustomerID int       `json:"customerId"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Line is one (item, quantity) pair. A cart holds at most one line per item.
type Line struct {
	ItemID   int       `json:"itemId"`
	Quantity int       `json:"quantity"`
	AddedAt  time.Time `json:"addedAt,omitempty"`
}

// ViewLine is a cart line priced against the current catalog.
type ViewLine struct {
	ItemID    int             `json:"itemId"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"lineTotal"`
	Available int             `json:"available"`
}

type View struct {
	Lines     []ViewLine      `json:"lines"`
	ItemCount int             `json:"itemCount"`
	Total     decimal.Decimal `json:"total"`
}

type MergeFailure struct {
	ItemID   int    `json:"itemId"`
	Quantity int    `json:"quantity"`
	Reason   string `json:"reason"`
}

type MergeResult struct {
	Merged []Line         `json:"merged"`
	Failed []MergeFailure `json:"failed"`
}

func sortLines(lines []Line) {
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].AddedAt.Equal(lines[j].AddedAt) {
			return lines[i].ItemID < lines[j].ItemID
		}
		return lines[i].AddedAt.Before(lines[j].AddedAt)
	})
}
