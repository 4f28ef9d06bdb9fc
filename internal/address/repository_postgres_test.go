package address

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
)

var addressCols = []string{"id", "customer_id", "street", "city", "province", "country", "postal_code", "phone", "created_at", "updated_at"}

func TestPostgresCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()
	repo := NewPostgresRepository(db)

	now := time.Now()
	mock.ExpectQuery("INSERT INTO addresses").
		WithArgs(3, "1 Main St", "Springfield", "", "US", "12345", "").
		WillReturnRows(sqlmock.NewRows(addressCols).AddRow(7, 3, "1 Main St", "Springfield", "", "US", "12345", "", now, now))

	a, err := repo.Create(context.Background(), Address{CustomerID: 3, Street: "1 Main St", City: "Springfield", Country: "US", PostalCode: "12345"})
	if err != nil {
		t.Fatalf("expected nil err, got %v", err)
	}
	if a.ID != 7 || a.CustomerID != 3 {
		t.Fatalf("unexpected address %+v", a)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresInsertTx_UsesTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO addresses").
		WillReturnRows(sqlmock.NewRows(addressCols).AddRow(8, 3, "1 Main St", "Springfield", "", "US", "12345", "", now, now))
	mock.ExpectRollback()

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	a, err := InsertTx(context.Background(), tx, Address{CustomerID: 3, Street: "1 Main St", City: "Springfield", Country: "US", PostalCode: "12345"})
	if err != nil || a.ID != 8 {
		t.Fatalf("unexpected result %+v %v", a, err)
	}
	tx.Rollback()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresUpdate_NotOwned(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()
	repo := NewPostgresRepository(db)

	mock.ExpectQuery("UPDATE addresses").WithArgs(5, 9, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(addressCols))

	if _, err := repo.Update(context.Background(), Address{ID: 5, CustomerID: 9}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgresDelete(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()
	repo := NewPostgresRepository(db)

	mock.ExpectExec("DELETE FROM addresses").WithArgs(5, 1).WillReturnResult(sqlmock.NewResult(0, 0))
	if err := repo.Delete(context.Background(), 1, 5); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	mock.ExpectExec("DELETE FROM addresses").WithArgs(6, 1).WillReturnError(&pgconn.PgError{Code: "23503"})
	if err := repo.Delete(context.Background(), 1, 6); !errors.Is(err, ErrInUse) {
		t.Fatalf("expected ErrInUse, got %v", err)
	}

	mock.ExpectExec("DELETE FROM addresses").WithArgs(7, 1).WillReturnResult(sqlmock.NewResult(0, 1))
	if err := repo.Delete(context.Background(), 1, 7); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
