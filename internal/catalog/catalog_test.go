package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wichananm65/urbancart-backend/internal/apperror"
)

func seedItems() []Item {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return []Item{
		{ID: 1, SKU: "TECH001", Name: "Wireless Mouse", Brand: "Logi", Category: "Accessories", Price: decimal.RequireFromString("24.99"), Quantity: 10, CreatedAt: base},
		{ID: 2, SKU: "TECH002", Name: "Mechanical Keyboard", Brand: "Keychron", Category: "Accessories", Price: decimal.RequireFromString("89.00"), Quantity: 5, CreatedAt: base.Add(time.Hour)},
		{ID: 3, SKU: "TECH003", Name: "4K Monitor", Brand: "Dell", Category: "Displays", Price: decimal.RequireFromString("329.50"), Quantity: 0, CreatedAt: base.Add(2 * time.Hour)},
	}
}

func TestInMemoryList_FilterAndSort(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewInMemoryRepository(seedItems()))

	acc, err := svc.List(ctx, Filter{Category: "accessories", Sort: SortPriceDesc})
	require.NoError(t, err)
	require.Len(t, acc, 2)
	assert.Equal(t, "TECH002", acc[0].SKU)

	found, _ := svc.List(ctx, Filter{Search: " keyboard "})
	require.Len(t, found, 1)
	assert.Equal(t, 2, found[0].ID)

	inStock, _ := svc.List(ctx, Filter{InStock: true})
	assert.Len(t, inStock, 2)

	newest, _ := svc.List(ctx, Filter{Sort: SortNewest})
	assert.Equal(t, 3, newest[0].ID)

	cats, _ := svc.Categories(ctx)
	assert.Equal(t, []string{"Accessories", "Displays"}, cats)
}

func TestInMemory_QuantityComesFromLedger(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository(seedItems())
	svc := NewService(repo)

	_, err := repo.Ledger().DecrementIfAvailable(ctx, 2, 3)
	require.NoError(t, err)

	it, err := svc.GetItem(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, it.Quantity)

	// catalog edits do not reset stock
	it.Price = decimal.RequireFromString("79.00")
	it.Quantity = 100
	updated, err := svc.Update(ctx, 2, it)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Quantity)
	assert.True(t, updated.Price.Equal(decimal.RequireFromString("79")))
}

func TestCreate_Validation(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewInMemoryRepository(seedItems()))

	_, err := svc.Create(ctx, Item{SKU: "X1", Name: "Bad", Price: decimal.RequireFromString("-1")})
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

	_, err = svc.Create(ctx, Item{SKU: "TECH001", Name: "Dup", Price: decimal.NewFromInt(1)})
	assert.True(t, errors.Is(err, ErrDuplicateSKU))

	created, err := svc.Create(ctx, Item{SKU: "TECH004", Name: "USB Hub", Price: decimal.RequireFromString("19.999"), Quantity: 4})
	require.NoError(t, err)
	assert.Equal(t, 4, created.ID)
	assert.Equal(t, "20", created.Price.String())

	it, err := svc.GetItem(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, it.Quantity, "initial quantity seeds the ledger")
}

func TestDelete_RemovesStock(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository(seedItems())
	svc := NewService(repo)

	require.NoError(t, svc.Delete(ctx, 1))
	_, err := svc.GetItem(ctx, 1)
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = repo.Ledger().GetAvailable(ctx, 1)
	assert.Error(t, err)
	assert.True(t, errors.Is(svc.Delete(ctx, 1), ErrNotFound))
}
