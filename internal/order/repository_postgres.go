package order

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/wichananm65/urbancart-backend/internal/address"
	"github.com/wichananm65/urbancart-backend/internal/database"
	"github.com/wichananm65/urbancart-backend/internal/inventory"
)

type PostgresRepository struct {
	db *sql.DB
}

const (
	orderColumns = `o.id, o.order_number, o.customer_id, COALESCE(o.shipping_address_id, 0), COALESCE(o.billing_address_id, 0),
		o.shipping_snapshot, o.billing_snapshot, o.total_amount, o.status, o.payment_status, o.payment_txn_id, o.card_last4,
		o.created_at, o.updated_at`

	insertOrderQuery = `
		INSERT INTO orders (order_number, customer_id, shipping_address_id, billing_address_id,
			shipping_snapshot, billing_snapshot, total_amount, status, payment_status, payment_txn_id, card_last4)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at`
	insertLineQuery = `
		INSERT INTO order_lines (order_id, item_id, item_name, quantity, unit_price)
		VALUES ($1, $2, $3, $4, $5)`

	getOrderByIDQuery     = `SELECT ` + orderColumns + ` FROM orders o WHERE o.id = $1`
	getOrderByNumberQuery = `SELECT ` + orderColumns + ` FROM orders o WHERE o.order_number = $1`
	listByCustomerQuery   = `SELECT ` + orderColumns + ` FROM orders o WHERE o.customer_id = $1 ORDER BY o.created_at DESC, o.id DESC`
	listAllQuery          = `SELECT ` + orderColumns + `, TRIM(c.given_name || ' ' || c.family_name), c.email
		FROM orders o JOIN customers c ON c.id = o.customer_id
		ORDER BY o.created_at DESC, o.id DESC`
	linesForOrdersQuery = `
		SELECT order_id, item_id, item_name, quantity, unit_price
		FROM order_lines
		WHERE order_id = ANY($1::int[])
		ORDER BY array_position($1::int[], order_id), item_id`

	updateStatusQuery = `UPDATE orders SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2`
	setPaymentStatusQuery = `UPDATE orders SET payment_status = $2, updated_at = now()
		WHERE id = $1 AND payment_status = ANY($3)`
	paymentStatusQuery = `SELECT payment_status FROM orders WHERE id = $1`
)

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, d Draft) (Order, error) {
	var o Order
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		shipping, billing, err := insertAddresses(ctx, tx, d)
		if err != nil {
			return err
		}

		shipJSON, err := json.Marshal(snapshotOf(shipping))
		if err != nil {
			return err
		}
		billJSON, err := json.Marshal(snapshotOf(billing))
		if err != nil {
			return err
		}

		o = Order{
			Number:            d.Number,
			CustomerID:        d.CustomerID,
			ShippingAddressID: shipping.ID,
			BillingAddressID:  billing.ID,
			Shipping:          snapshotOf(shipping),
			Billing:           snapshotOf(billing),
			Total:             d.Total,
			Status:            StatusProcessing,
			PaymentStatus:     PaymentPending,
			PaymentTxnID:      d.PaymentTxnID,
			CardLast4:         d.CardLast4,
			Lines:             append([]Line(nil), d.Lines...),
		}
		err = tx.QueryRowContext(ctx, insertOrderQuery,
			o.Number, o.CustomerID, o.ShippingAddressID, o.BillingAddressID,
			shipJSON, billJSON, o.Total, string(o.Status), string(o.PaymentStatus), o.PaymentTxnID, o.CardLast4,
		).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateNumber
			}
			return err
		}

		for _, l := range d.Lines {
			if _, err := tx.ExecContext(ctx, insertLineQuery, o.ID, l.ItemID, l.ItemName, l.Quantity, l.UnitPrice); err != nil {
				return err
			}
		}

		return inventory.DecrementTx(ctx, tx, decrementsOf(d.Lines))
	})
	if err != nil {
		return Order{}, err
	}
	return o, nil
}

func insertAddresses(ctx context.Context, tx *sql.Tx, d Draft) (address.Address, address.Address, error) {
	shipping := d.Shipping
	if shipping.ID == 0 {
		created, err := address.InsertTx(ctx, tx, shipping)
		if err != nil {
			return address.Address{}, address.Address{}, err
		}
		shipping = created
	}
	if d.BillingSameAsShipping {
		return shipping, shipping, nil
	}
	billing := d.Billing
	if billing.ID == 0 {
		created, err := address.InsertTx(ctx, tx, billing)
		if err != nil {
			return address.Address{}, address.Address{}, err
		}
		billing = created
	}
	return shipping, billing, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner, extra ...any) (Order, error) {
	var o Order
	var shipJSON, billJSON []byte
	var status, paymentStatus string
	dest := []any{&o.ID, &o.Number, &o.CustomerID, &o.ShippingAddressID, &o.BillingAddressID,
		&shipJSON, &billJSON, &o.Total, &status, &paymentStatus, &o.PaymentTxnID, &o.CardLast4,
		&o.CreatedAt, &o.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		if err == sql.ErrNoRows {
			return Order{}, ErrNotFound
		}
		return Order{}, err
	}
	if err := json.Unmarshal(shipJSON, &o.Shipping); err != nil {
		return Order{}, err
	}
	if err := json.Unmarshal(billJSON, &o.Billing); err != nil {
		return Order{}, err
	}
	o.Status = Status(status)
	o.PaymentStatus = PaymentStatus(paymentStatus)
	o.Lines = []Line{}
	return o, nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		return Order{}, err
	}
	orders := []Order{o}
	if err := r.attachLines(ctx, orders); err != nil {
		return Order{}, err
	}
	return orders[0], nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int) (Order, error) {
	return r.getOne(ctx, getOrderByIDQuery, id)
}

func (r *PostgresRepository) GetByNumber(ctx context.Context, number string) (Order, error) {
	return r.getOne(ctx, getOrderByNumberQuery, number)
}

func (r *PostgresRepository) ListByCustomer(ctx context.Context, customerID int) ([]Order, error) {
	rows, err := r.db.QueryContext(ctx, listByCustomerQuery, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, r.attachLines(ctx, orders)
}

func (r *PostgresRepository) ListAll(ctx context.Context) ([]Order, error) {
	rows, err := r.db.QueryContext(ctx, listAllQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]Order, 0)
	for rows.Next() {
		var name, email string
		o, err := scanOrder(rows, &name, &email)
		if err != nil {
			return nil, err
		}
		o.CustomerName, o.CustomerEmail = name, email
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, r.attachLines(ctx, orders)
}

// attachLines loads the lines of every order in one query.
func (r *PostgresRepository) attachLines(ctx context.Context, orders []Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]int, len(orders))
	index := make(map[int]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
	}

	rows, err := r.db.QueryContext(ctx, linesForOrdersQuery, pq.Array(ids))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var orderID int
		var l Line
		if err := rows.Scan(&orderID, &l.ItemID, &l.ItemName, &l.Quantity, &l.UnitPrice); err != nil {
			return err
		}
		l.LineTotal = l.UnitPrice.Mul(decimalOf(l.Quantity))
		i := index[orderID]
		orders[i].Lines = append(orders[i].Lines, l)
	}
	return rows.Err()
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, id int, from, to Status) (Order, error) {
	res, err := r.db.ExecContext(ctx, updateStatusQuery, id, string(from), string(to))
	if err != nil {
		return Order{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return Order{}, err
		}
		return Order{}, ErrStatusChanged
	}
	return r.GetByID(ctx, id)
}

func (r *PostgresRepository) SetPaymentStatus(ctx context.Context, id int, ps PaymentStatus) error {
	from := ps.from()
	allowed := make([]string, 0, len(from))
	for _, f := range from {
		allowed = append(allowed, string(f))
	}
	res, err := r.db.ExecContext(ctx, setPaymentStatusQuery, id, string(ps), pq.Array(allowed))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	var current string
	err = r.db.QueryRowContext(ctx, paymentStatusQuery, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrPaymentSettled
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
