package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

type PostgresRepository struct {
	db *sql.DB
}

const (
	itemColumns = `id, sku, name, brand, category, price, quantity, description, image_url, created_at, updated_at`

	getItemByIDQuery  = `SELECT ` + itemColumns + ` FROM items WHERE id = $1`
	getItemBySKUQuery = `SELECT ` + itemColumns + ` FROM items WHERE sku = $1`
	listItemsByIDs    = `SELECT ` + itemColumns + ` FROM items
		WHERE id = ANY($1::int[])
		ORDER BY array_position($1::int[], id)`
	listCategoriesQuery = `SELECT DISTINCT category FROM items WHERE category <> '' ORDER BY category`
	insertItemQuery     = `INSERT INTO items (sku, name, brand, category, price, quantity, description, image_url)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING ` + itemColumns
	// quantity is deliberately absent: stock changes go through the ledger
	updateItemQuery = `UPDATE items
		SET sku = $1, name = $2, brand = $3, category = $4, price = $5,
			description = $6, image_url = $7, updated_at = now()
		WHERE id = $8
		RETURNING ` + itemColumns
	deleteItemQuery = `DELETE FROM items WHERE id = $1`
)

var sortClauses = map[Sort]string{
	SortNewest:    "created_at DESC, id DESC",
	SortPriceAsc:  "price ASC, id",
	SortPriceDesc: "price DESC, id",
	SortName:      "name ASC, id",
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (Item, error) {
	var it Item
	err := row.Scan(&it.ID, &it.SKU, &it.Name, &it.Brand, &it.Category, &it.Price, &it.Quantity,
		&it.Description, &it.ImageURL, &it.CreatedAt, &it.UpdatedAt)
	return it, err
}

// buildListQuery returns the SELECT for f and its positional args.
func buildListQuery(f Filter) (string, []any) {
	var where []string
	var args []any
	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if f.Category != "" {
		add("lower(category) = lower($%d)", f.Category)
	}
	if f.Brand != "" {
		add("lower(brand) = lower($%d)", f.Brand)
	}
	if f.Search != "" {
		add("(name ILIKE $%[1]d OR description ILIKE $%[1]d OR sku ILIKE $%[1]d)", "%"+f.Search+"%")
	}
	if f.InStock {
		where = append(where, "quantity > 0")
	}

	q := `SELECT ` + itemColumns + ` FROM items`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	order, ok := sortClauses[f.Sort]
	if !ok {
		order = "id"
	}
	return q + " ORDER BY " + order, args
}

func (r *PostgresRepository) List(ctx context.Context, f Filter) ([]Item, error) {
	q, args := buildListQuery(f)
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Item, 0)
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int) (Item, error) {
	it, err := scanItem(r.db.QueryRowContext(ctx, getItemByIDQuery, id))
	if err == sql.ErrNoRows {
		return Item{}, ErrNotFound
	}
	return it, err
}

func (r *PostgresRepository) GetBySKU(ctx context.Context, sku string) (Item, error) {
	it, err := scanItem(r.db.QueryRowContext(ctx, getItemBySKUQuery, sku))
	if err == sql.ErrNoRows {
		return Item{}, ErrNotFound
	}
	return it, err
}

func (r *PostgresRepository) ListByIDs(ctx context.Context, ids []int) ([]Item, error) {
	if len(ids) == 0 {
		return []Item{}, nil
	}
	rows, err := r.db.QueryContext(ctx, listItemsByIDs, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Item, 0, len(ids))
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Categories(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, listCategoriesQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Create(ctx context.Context, it Item) (Item, error) {
	created, err := scanItem(r.db.QueryRowContext(ctx, insertItemQuery,
		it.SKU, it.Name, it.Brand, it.Category, it.Price, it.Quantity, it.Description, it.ImageURL))
	if isUniqueViolation(err) {
		return Item{}, ErrDuplicateSKU
	}
	return created, err
}

func (r *PostgresRepository) Update(ctx context.Context, id int, it Item) (Item, error) {
	updated, err := scanItem(r.db.QueryRowContext(ctx, updateItemQuery,
		it.SKU, it.Name, it.Brand, it.Category, it.Price, it.Description, it.ImageURL, id))
	switch {
	case err == sql.ErrNoRows:
		return Item{}, ErrNotFound
	case isUniqueViolation(err):
		return Item{}, ErrDuplicateSKU
	}
	return updated, err
}

func (r *PostgresRepository) Delete(ctx context.Context, id int) error {
	res, err := r.db.ExecContext(ctx, deleteItemQuery, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
