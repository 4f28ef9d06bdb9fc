package cart

import (
	"context"
	"database/sql"
)

type PostgresStore struct {
	db *sql.DB
}

const (
	findCartQuery = `SELECT id, customer_id, created_at FROM carts WHERE customer_id = $1`
	// the no-op update makes RETURNING yield the existing row on conflict
	getOrCreateCartQuery = `
		INSERT INTO carts (customer_id) VALUES ($1)
		ON CONFLICT (customer_id) DO UPDATE SET customer_id = EXCLUDED.customer_id
		RETURNING id, customer_id, created_at`
	listLinesQuery = `SELECT item_id, quantity, added_at FROM cart_lines WHERE cart_id = $1 ORDER BY added_at, item_id`
	addLineQuery   = `
		INSERT INTO cart_lines (cart_id, item_id, quantity) VALUES ($1, $2, $3)
		ON CONFLICT (cart_id, item_id) DO UPDATE SET quantity = cart_lines.quantity + EXCLUDED.quantity
		RETURNING item_id, quantity, added_at`
	setLineQuery = `
		INSERT INTO cart_lines (cart_id, item_id, quantity) VALUES ($1, $2, $3)
		ON CONFLICT (cart_id, item_id) DO UPDATE SET quantity = EXCLUDED.quantity`
	removeLineQuery = `DELETE FROM cart_lines WHERE cart_id = $1 AND item_id = $2`
	clearCartQuery  = `DELETE FROM cart_lines WHERE cart_id = $1`
)

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Find(ctx context.Context, customerID int) (Cart, error) {
	var c Cart
	err := s.db.QueryRowContext(ctx, findCartQuery, customerID).Scan(&c.ID, &c.CustomerID, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return Cart{}, ErrNoCart
	}
	return c, err
}

func (s *PostgresStore) GetOrCreate(ctx context.Context, customerID int) (Cart, error) {
	var c Cart
	err := s.db.QueryRowContext(ctx, getOrCreateCartQuery, customerID).Scan(&c.ID, &c.CustomerID, &c.CreatedAt)
	return c, err
}

func (s *PostgresStore) Lines(ctx context.Context, cartID int) ([]Line, error) {
	rows, err := s.db.QueryContext(ctx, listLinesQuery, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Line, 0)
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ItemID, &l.Quantity, &l.AddedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *PostgresStore) AddLine(ctx context.Context, cartID, itemID, quantity int) (Line, error) {
	if quantity <= 0 {
		return Line{}, ErrInvalidQuantity
	}
	var l Line
	err := s.db.QueryRowContext(ctx, addLineQuery, cartID, itemID, quantity).Scan(&l.ItemID, &l.Quantity, &l.AddedAt)
	return l, err
}

func (s *PostgresStore) SetLineQuantity(ctx context.Context, cartID, itemID, quantity int) error {
	if quantity <= 0 {
		return s.RemoveLine(ctx, cartID, itemID)
	}
	_, err := s.db.ExecContext(ctx, setLineQuery, cartID, itemID, quantity)
	return err
}

func (s *PostgresStore) RemoveLine(ctx context.Context, cartID, itemID int) error {
	_, err := s.db.ExecContext(ctx, removeLineQuery, cartID, itemID)
	return err
}

func (s *PostgresStore) Clear(ctx context.Context, cartID int) error {
	_, err := s.db.ExecContext(ctx, clearCartQuery, cartID)
	return err
}
