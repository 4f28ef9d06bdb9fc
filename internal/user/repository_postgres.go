package user

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

type PostgresRepository struct {
	db *sql.DB
}

type rowScanner interface {
	Scan(dest ...any) error
}

const (
	userColumns = `id, email, password_hash, role, is_active, created_at`

	getUserByIDQuery    = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	getUserByEmailQuery = `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	insertUserQuery     = `
		INSERT INTO users (email, password_hash, role, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + userColumns
	setActiveQuery = `UPDATE users SET is_active = $2 WHERE id = $1`
)

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func scanUser(row rowScanner) (User, error) {
	var u User
	var role string
	if err := row.Scan(&u.ID, &u.Email, &u.Password, &role, &u.IsActive, &u.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	u.Role = authRole(role)
	return u, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int) (User, error) {
	return scanUser(r.db.QueryRowContext(ctx, getUserByIDQuery, id))
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(r.db.QueryRowContext(ctx, getUserByEmailQuery, email))
}

func (r *PostgresRepository) Create(ctx context.Context, u User) (User, error) {
	created, err := scanUser(r.db.QueryRowContext(ctx, insertUserQuery, u.Email, u.Password, string(u.Role), u.IsActive))
	if err != nil && isUniqueViolation(err) {
		return User{}, ErrEmailExists
	}
	return created, err
}

func (r *PostgresRepository) SetActive(ctx context.Context, id int, active bool) error {
	res, err := r.db.ExecContext(ctx, setActiveQuery, id, active)
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
