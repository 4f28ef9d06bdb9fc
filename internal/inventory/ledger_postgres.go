package inventory

import (
	"context"
	"database/sql"
	"errors"

	"github.com/wichananm65/urbancart-backend/internal/apperror"
	"github.com/wichananm65/urbancart-backend/internal/database"
)

const (
	selectStockQuery = `SELECT id, name, quantity FROM items WHERE id = $1`

	// the WHERE clause is the whole concurrency guarantee: two racing
	// decrements cannot both pass it for the same units.
	decrementQuery = `UPDATE items SET quantity = quantity - $1, updated_at = now()
		WHERE id = $2 AND quantity >= $1
		RETURNING id, name, quantity`

	setQuantityQuery = `UPDATE items SET quantity = $1, updated_at = now()
		WHERE id = $2
		RETURNING id, name, quantity`

	restockQuery = `UPDATE items SET quantity = quantity + $1, updated_at = now()
		WHERE id = $2
		RETURNING id, name, quantity`
)

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type PostgresLedger struct {
	db *sql.DB
}

func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

func (l *PostgresLedger) Stock(ctx context.Context, itemID int) (Stock, error) {
	return scanStock(l.db.QueryRowContext(ctx, selectStockQuery, itemID))
}

func (l *PostgresLedger) GetAvailable(ctx context.Context, itemID int) (int, error) {
	s, err := l.Stock(ctx, itemID)
	if err != nil {
		return 0, err
	}
	return s.Quantity, nil
}

func (l *PostgresLedger) DecrementIfAvailable(ctx context.Context, itemID, amount int) (Stock, error) {
	if amount <= 0 {
		return Stock{}, ErrInvalidAmount
	}
	return decrement(ctx, l.db, itemID, amount)
}

func (l *PostgresLedger) DecrementBatch(ctx context.Context, lines []Decrement) error {
	return database.WithTx(ctx, l.db, func(tx *sql.Tx) error {
		return DecrementTx(ctx, tx, lines)
	})
}

// DecrementTx runs the conditional decrements inside a caller-owned
// transaction. Any failure must roll the transaction back.
func DecrementTx(ctx context.Context, tx *sql.Tx, lines []Decrement) error {
	lines, err := normalize(lines)
	if err != nil {
		return err
	}
	for _, d := range lines {
		if _, err := decrement(ctx, tx, d.ItemID, d.Amount); err != nil {
			return err
		}
	}
	return nil
}

func (l *PostgresLedger) SetQuantity(ctx context.Context, itemID, quantity int) (Stock, error) {
	if quantity < 0 {
		return Stock{}, ErrNegativeQuantity
	}
	return scanStock(l.db.QueryRowContext(ctx, setQuantityQuery, quantity, itemID))
}

func (l *PostgresLedger) Restock(ctx context.Context, itemID, amount int) (Stock, error) {
	if amount <= 0 {
		return Stock{}, ErrInvalidAmount
	}
	return scanStock(l.db.QueryRowContext(ctx, restockQuery, amount, itemID))
}

func decrement(ctx context.Context, q queryRower, itemID, amount int) (Stock, error) {
	s, err := scanStock(q.QueryRowContext(ctx, decrementQuery, amount, itemID))
	if !errors.Is(err, ErrNotFound) {
		return s, err
	}

	// zero rows: either the item is gone or there is not enough of it
	cur, err := scanStock(q.QueryRowContext(ctx, selectStockQuery, itemID))
	if err != nil {
		return Stock{}, err
	}
	return Stock{}, apperror.InsufficientStock(cur.ItemID, cur.Name, cur.Quantity)
}

func scanStock(row *sql.Row) (Stock, error) {
	var s Stock
	if err := row.Scan(&s.ItemID, &s.Name, &s.Quantity); err != nil {
		if err == sql.ErrNoRows {
			return Stock{}, ErrNotFound
		}
		return Stock{}, err
	}
	return s, nil
}
