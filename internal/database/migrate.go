package database

import (
	"context"
	"database/sql"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id SERIAL PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'customer',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS customers (
		id SERIAL PRIMARY KEY,
		user_id INT NOT NULL UNIQUE REFERENCES users(id),
		email TEXT NOT NULL,
		given_name TEXT NOT NULL DEFAULT '',
		family_name TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		shipping_address_id INT,
		billing_address_id INT,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS addresses (
		id SERIAL PRIMARY KEY,
		customer_id INT NOT NULL REFERENCES customers(id),
		street TEXT NOT NULL,
		city TEXT NOT NULL,
		province TEXT NOT NULL DEFAULT '',
		country TEXT NOT NULL,
		postal_code TEXT NOT NULL,
		phone TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS addresses_customer_idx ON addresses (customer_id)`,
	`CREATE TABLE IF NOT EXISTS items (
		id SERIAL PRIMARY KEY,
		sku TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		brand TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		price NUMERIC(12,2) NOT NULL CHECK (price >= 0),
		quantity INT NOT NULL DEFAULT 0 CHECK (quantity >= 0),
		description TEXT NOT NULL DEFAULT '',
		image_url TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS carts (
		id SERIAL PRIMARY KEY,
		customer_id INT NOT NULL UNIQUE REFERENCES customers(id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS cart_lines (
		cart_id INT NOT NULL REFERENCES carts(id) ON DELETE CASCADE,
		item_id INT NOT NULL REFERENCES items(id),
		quantity INT NOT NULL CHECK (quantity > 0),
		added_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (cart_id, item_id)
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id SERIAL PRIMARY KEY,
		order_number TEXT NOT NULL UNIQUE,
		customer_id INT NOT NULL REFERENCES customers(id),
		shipping_address_id INT REFERENCES addresses(id),
		billing_address_id INT REFERENCES addresses(id),
		shipping_snapshot JSONB NOT NULL,
		billing_snapshot JSONB NOT NULL,
		total_amount NUMERIC(12,2) NOT NULL,
		status TEXT NOT NULL,
		payment_status TEXT NOT NULL,
		payment_txn_id TEXT NOT NULL DEFAULT '',
		card_last4 TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS orders_customer_created_idx ON orders (customer_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS order_lines (
		order_id INT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		item_id INT NOT NULL REFERENCES items(id),
		item_name TEXT NOT NULL,
		quantity INT NOT NULL CHECK (quantity > 0),
		unit_price NUMERIC(12,2) NOT NULL,
		PRIMARY KEY (order_id, item_id)
	)`,
	`CREATE TABLE IF NOT EXISTS reviews (
		id SERIAL PRIMARY KEY,
		item_id INT NOT NULL REFERENCES items(id),
		customer_id INT NOT NULL REFERENCES customers(id),
		rating INT NOT NULL CHECK (rating BETWEEN 1 AND 5),
		body TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (item_id, customer_id)
	)`,
}

// Migrate creates any missing tables. Every statement is idempotent so it is
// safe to run on each start.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("database: migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
