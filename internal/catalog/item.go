package catalog

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wichananm65/urbancart-backend/internal/apperror"
)

// Item is a sellable product. Quantity is the on-hand stock owned by the
// inventory ledger; catalog writes never change it after creation.
type Item struct {
	ID          int             `json:"itemId"`
	SKU         string          `json:"sku"`
	Name        string          `json:"name"`
	Brand       string          `json:"brand"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	Description string          `json:"description"`
	ImageURL    string          `json:"imageUrl"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

type Sort string

const (
	SortNewest    Sort = "newest"
	SortPriceAsc  Sort = "price_asc"
	SortPriceDesc Sort = "price_desc"
	SortName      Sort = "name"
)

// Filter narrows List. Empty fields match everything.
type Filter struct {
	Category string
	Brand    string
	Search   string
	InStock  bool
	Sort     Sort
}

func (f Filter) matches(it Item) bool {
	if f.Category != "" && !strings.EqualFold(it.Category, f.Category) {
		return false
	}
	if f.Brand != "" && !strings.EqualFold(it.Brand, f.Brand) {
		return false
	}
	if f.InStock && it.Quantity <= 0 {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(it.Name), q) &&
			!strings.Contains(strings.ToLower(it.Description), q) &&
			!strings.Contains(strings.ToLower(it.SKU), q) {
			return false
		}
	}
	return true
}

func validateItem(it Item) error {
	fields := map[string]string{}
	if strings.TrimSpace(it.SKU) == "" {
		fields["sku"] = "sku is required"
	}
	if strings.TrimSpace(it.Name) == "" {
		fields["name"] = "name is required"
	}
	if it.Price.IsNegative() {
		fields["price"] = "price must be >= 0"
	}
	if it.Quantity < 0 {
		fields["quantity"] = "quantity must be >= 0"
	}
	if len(fields) == 0 {
		return nil
	}
	err := apperror.Validation("invalid item")
	err.Details = map[string]any{"fields": fields}
	return err
}
