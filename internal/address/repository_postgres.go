package address

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

type PostgresRepository struct {
	db *sql.DB
}

const (
	addressColumns = `id, customer_id, street, city, province, country, postal_code, phone, created_at, updated_at`

	insertAddressQuery = `INSERT INTO addresses (customer_id, street, city, province, country, postal_code, phone)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING ` + addressColumns
	findAddressQuery   = `SELECT ` + addressColumns + ` FROM addresses WHERE id = $1`
	listAddressesQuery = `SELECT ` + addressColumns + ` FROM addresses WHERE customer_id = $1 ORDER BY id`
	updateAddressQuery = `UPDATE addresses
		SET street = $3, city = $4, province = $5, country = $6, postal_code = $7, phone = $8, updated_at = now()
		WHERE id = $1 AND customer_id = $2
		RETURNING ` + addressColumns
	deleteAddressQuery = `DELETE FROM addresses WHERE id = $1 AND customer_id = $2`
)

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAddress(row rowScanner) (Address, error) {
	var a Address
	err := row.Scan(&a.ID, &a.CustomerID, &a.Street, &a.City, &a.Province, &a.Country, &a.PostalCode, &a.Phone, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return Address{}, ErrNotFound
	}
	return a, err
}

func (r *PostgresRepository) Create(ctx context.Context, a Address) (Address, error) {
	return scanAddress(r.db.QueryRowContext(ctx, insertAddressQuery,
		a.CustomerID, a.Street, a.City, a.Province, a.Country, a.PostalCode, a.Phone))
}

// InsertTx creates an address inside a caller-owned transaction, so checkout
// can roll it back together with the order.
func InsertTx(ctx context.Context, tx *sql.Tx, a Address) (Address, error) {
	return scanAddress(tx.QueryRowContext(ctx, insertAddressQuery,
		a.CustomerID, a.Street, a.City, a.Province, a.Country, a.PostalCode, a.Phone))
}

func (r *PostgresRepository) Find(ctx context.Context, id int) (Address, error) {
	return scanAddress(r.db.QueryRowContext(ctx, findAddressQuery, id))
}

func (r *PostgresRepository) ListByCustomer(ctx context.Context, customerID int) ([]Address, error) {
	rows, err := r.db.QueryContext(ctx, listAddressesQuery, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Address, 0)
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Update(ctx context.Context, a Address) (Address, error) {
	return scanAddress(r.db.QueryRowContext(ctx, updateAddressQuery,
		a.ID, a.CustomerID, a.Street, a.City, a.Province, a.Country, a.PostalCode, a.Phone))
}

func (r *PostgresRepository) Delete(ctx context.Context, customerID, id int) error {
	res, err := r.db.ExecContext(ctx, deleteAddressQuery, id, customerID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrInUse
		}
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
