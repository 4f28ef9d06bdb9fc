// Package apperror defines the error kinds shared by every feature package and
// the mapping from those kinds to HTTP responses.
package apperror

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// Kind is the stable machine-readable category returned to clients.
type Kind string

const (
	KindValidation        Kind = "validation_error"
	KindEmptyCart         Kind = "empty_cart"
	KindNotFound          Kind = "not_found"
	KindInsufficientStock Kind = "insufficient_stock"
	KindPaymentDeclined   Kind = "payment_declined"
	KindTransient         Kind = "transient_failure"
	KindInternal          Kind = "internal_error"
	KindUnauthorized      Kind = "unauthorized"
	KindForbidden         Kind = "forbidden"
	KindConflict          Kind = "conflict"
	KindRateLimited       Kind = "rate_limited"
)

// Error is the typed error every service returns for expected failures.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same kind. A target with a message only
// matches errors carrying that same message, so package sentinels such as
// catalog.ErrNotFound stay distinguishable from other not-found errors.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Message == "" || t.Message == e.Message
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func Validation(msg string) *Error   { return New(KindValidation, msg) }
func NotFound(msg string) *Error     { return New(KindNotFound, msg) }
func Conflict(msg string) *Error     { return New(KindConflict, msg) }
func Forbidden(msg string) *Error    { return New(KindForbidden, msg) }
func Unauthorized(msg string) *Error { return New(KindUnauthorized, msg) }

func Validationf(format string, args ...any) *Error {
	return New(KindValidation, fmt.Sprintf(format, args...))
}

// EmptyCart is returned when checkout is attempted without cart lines.
func EmptyCart() *Error {
	return New(KindEmptyCart, "cart is empty")
}

// InsufficientStock names the item and how many units remain.
func InsufficientStock(itemID int, itemName string, available int) *Error {
	return &Error{
		Kind:    KindInsufficientStock,
		Message: fmt.Sprintf("insufficient stock for %s: %d available", itemName, available),
		Details: map[string]any{
			"itemId":    itemID,
			"itemName":  itemName,
			"available": available,
		},
	}
}

// PaymentDeclined carries only a generic reason. Card data never ends up here.
func PaymentDeclined(reason string) *Error {
	if reason == "" {
		reason = "payment declined"
	}
	return &Error{
		Kind:    KindPaymentDeclined,
		Message: "payment declined",
		Details: map[string]any{"reason": reason},
	}
}

func Transient(err error) *Error {
	return Wrap(KindTransient, "temporary infrastructure failure, please retry", err)
}

func Internal(err error) *Error {
	return Wrap(KindInternal, "internal error", err)
}

// KindOf unwraps err and reports its kind. Untyped errors are internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	if IsTransient(err) {
		return KindTransient
	}
	return KindInternal
}

// As returns the *Error inside err, if any.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// IsTransient reports whether err is worth retrying: timeouts, broken
// connections, serialization failures and deadlocks.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var ae *Error
	if errors.As(err, &ae) && ae.Kind == KindTransient {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, driver.ErrBadConn) {
		return true
	}

	var code pq.ErrorCode
	var pgErr *pgconn.PgError
	var pqErr *pq.Error
	switch {
	case errors.As(err, &pgErr):
		code = pq.ErrorCode(pgErr.Code)
	case errors.As(err, &pqErr):
		code = pqErr.Code
	default:
		return false
	}

	switch code {
	case "40001", "40P01", "57P01", "57P03":
		return true
	}
	return code.Class() == "08"
}
