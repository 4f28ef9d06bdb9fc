package customer

import (
	"context"
	"database/sql"
)

type PostgresRepository struct {
	db *sql.DB
}

const (
	customerColumns = `id, user_id, email, given_name, family_name, phone, shipping_address_id, billing_address_id, is_active, created_at, updated_at`

	insertCustomerQuery = `INSERT INTO customers (user_id, email, given_name, family_name, phone, is_active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		ON CONFLICT (user_id) DO NOTHING`
	getCustomerQuery       = `SELECT ` + customerColumns + ` FROM customers WHERE id = $1`
	getCustomerByUserQuery = `SELECT ` + customerColumns + ` FROM customers WHERE user_id = $1`
	listCustomersQuery     = `SELECT ` + customerColumns + ` FROM customers ORDER BY id`
	updateCustomerQuery    = `UPDATE customers
		SET given_name = $2, family_name = $3, phone = $4, shipping_address_id = $5, billing_address_id = $6, updated_at = now()
		WHERE id = $1
		RETURNING ` + customerColumns
	setActiveQuery = `UPDATE customers SET is_active = $2, updated_at = now() WHERE id = $1 RETURNING ` + customerColumns
)

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCustomer(row rowScanner) (Customer, error) {
	var c Customer
	var shipping, billing sql.NullInt64
	err := row.Scan(&c.ID, &c.UserID, &c.Email, &c.GivenName, &c.FamilyName, &c.Phone,
		&shipping, &billing, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return Customer{}, ErrNotFound
	}
	if err != nil {
		return Customer{}, err
	}
	c.ShippingAddressID = intPtr(shipping)
	c.BillingAddressID = intPtr(billing)
	return c, nil
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

// CreateIfMissing relies on the unique user_id so racing first requests end
// up with the same row.
func (r *PostgresRepository) CreateIfMissing(ctx context.Context, c Customer) (Customer, error) {
	if _, err := r.db.ExecContext(ctx, insertCustomerQuery, c.UserID, c.Email, c.GivenName, c.FamilyName, c.Phone); err != nil {
		return Customer{}, err
	}
	return r.GetByUser(ctx, c.UserID)
}

func (r *PostgresRepository) Get(ctx context.Context, id int) (Customer, error) {
	return scanCustomer(r.db.QueryRowContext(ctx, getCustomerQuery, id))
}

func (r *PostgresRepository) GetByUser(ctx context.Context, userID int) (Customer, error) {
	return scanCustomer(r.db.QueryRowContext(ctx, getCustomerByUserQuery, userID))
}

func (r *PostgresRepository) Update(ctx context.Context, c Customer) (Customer, error) {
	return scanCustomer(r.db.QueryRowContext(ctx, updateCustomerQuery, c.ID, c.GivenName, c.FamilyName, c.Phone,
		nullInt(c.ShippingAddressID), nullInt(c.BillingAddressID)))
}

func (r *PostgresRepository) List(ctx context.Context) ([]Customer, error) {
	rows, err := r.db.QueryContext(ctx, listCustomersQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Customer, 0)
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) SetActive(ctx context.Context, id int, active bool) (Customer, error) {
	return scanCustomer(r.db.QueryRowContext(ctx, setActiveQuery, id, active))
}
