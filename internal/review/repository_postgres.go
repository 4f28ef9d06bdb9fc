package review

import (
	"context"
	"database/sql"
)

type PostgresRepository struct {
	db *sql.DB
}

const (
	upsertReviewQuery = `
		INSERT INTO reviews (item_id, customer_id, rating, body)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (item_id, customer_id)
		DO UPDATE SET rating = EXCLUDED.rating, body = EXCLUDED.body, updated_at = now()
		RETURNING id, created_at, updated_at`
	listReviewsQuery = `
		SELECT r.id, r.item_id, r.customer_id, TRIM(c.given_name || ' ' || c.family_name), r.rating, r.body, r.created_at, r.updated_at
		FROM reviews r JOIN customers c ON c.id = r.customer_id
		WHERE r.item_id = $1
		ORDER BY r.updated_at DESC, r.id DESC`
)

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Upsert(ctx context.Context, rv Review) (Review, error) {
	err := r.db.QueryRowContext(ctx, upsertReviewQuery, rv.ItemID, rv.CustomerID, rv.Rating, rv.Body).
		Scan(&rv.ID, &rv.CreatedAt, &rv.UpdatedAt)
	if err != nil {
		return Review{}, err
	}
	return rv, nil
}

func (r *PostgresRepository) ListByItem(ctx context.Context, itemID int) ([]Review, error) {
	rows, err := r.db.QueryContext(ctx, listReviewsQuery, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Review, 0)
	for rows.Next() {
		var rv Review
		if err := rows.Scan(&rv.ID, &rv.ItemID, &rv.CustomerID, &rv.ReviewerName, &rv.Rating, &rv.Body, &rv.CreatedAt, &rv.UpdatedAt); err != nil {
			return nil, err
		}
		rv.ReviewerName = reviewerName(rv.ReviewerName)
		out = append(out, rv)
	}
	return out, rows.Err()
}
