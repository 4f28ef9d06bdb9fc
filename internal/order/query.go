package order

import (
	"context"
	"errors"

	"github.com/wichananm65/urbancart-backend/internal/logging"
	"github.com/wichananm65/urbancart-backend/internal/payment"
	"github.com/wichananm65/urbancart-backend/internal/reconcile"
	"go.uber.org/zap"
)

// Viewer scopes order reads: All for staff, otherwise only CustomerID's orders.
type Viewer struct {
	CustomerID int
	All        bool
}

func (v Viewer) canSee(o Order) bool {
	return v.All || o.CustomerID == v.CustomerID
}

type Restocker interface {
	Restock(ctx context.Context, itemID, amount int) error
}

// RestockFunc adapts a function to Restocker.
type RestockFunc func(ctx context.Context, itemID, amount int) error

func (f RestockFunc) Restock(ctx context.Context, itemID, amount int) error {
	return f(ctx, itemID, amount)
}

type Voider interface {
	Void(ctx context.Context, transactionID string) error
}

type QueryService struct {
	repo       Repository
	restocker  Restocker
	payments   Voider
	reconciler Reconciler
}

func NewQueryService(repo Repository, restocker Restocker, payments Voider, reconciler Reconciler) *QueryService {
	return &QueryService{repo: repo, restocker: restocker, payments: payments, reconciler: reconciler}
}

// GetByID hides other customers' orders behind ErrNotFound.
func (q *QueryService) GetByID(ctx context.Context, v Viewer, id int) (Order, error) {
	o, err := q.repo.GetByID(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if !v.canSee(o) {
		return Order{}, ErrNotFound
	}
	return o, nil
}

func (q *QueryService) GetByNumber(ctx context.Context, v Viewer, number string) (Order, error) {
	o, err := q.repo.GetByNumber(ctx, number)
	if err != nil {
		return Order{}, err
	}
	if !v.canSee(o) {
		return Order{}, ErrNotFound
	}
	return o, nil
}

func (q *QueryService) ListByCustomer(ctx context.Context, customerID int) ([]Order, error) {
	return q.repo.ListByCustomer(ctx, customerID)
}

func (q *QueryService) ListAll(ctx context.Context) ([]Order, error) {
	return q.repo.ListAll(ctx)
}

// UpdateStatus moves an order to a new status. Delivered and cancelled are
// final. Cancelling returns the stock and voids the payment.
func (q *QueryService) UpdateStatus(ctx context.Context, id int, next Status) (Order, error) {
	if !next.Valid() {
		return Order{}, ErrInvalidStatus
	}
	cur, err := q.repo.GetByID(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if cur.Status == next {
		return cur, nil
	}
	if cur.Status.Terminal() {
		return Order{}, ErrTerminalStatus
	}
	if next == StatusCancelled && cur.Status != StatusProcessing {
		return Order{}, ErrCannotCancel
	}

	updated, err := q.repo.UpdateStatus(ctx, id, cur.Status, next)
	if err != nil {
		return Order{}, err
	}
	logging.FromContext(ctx).Info("order_status_changed",
		zap.String("order_number", updated.Number),
		zap.String("from", string(cur.Status)),
		zap.String("to", string(next)))

	if next == StatusCancelled {
		q.releaseCancelled(ctx, &updated)
	}
	return updated, nil
}

func (q *QueryService) releaseCancelled(ctx context.Context, o *Order) {
	ctx = context.WithoutCancel(ctx)
	logger := logging.FromContext(ctx)

	for _, l := range o.Lines {
		itemID, amount := l.ItemID, l.Quantity
		restock := func(ctx context.Context) error { return q.restocker.Restock(ctx, itemID, amount) }
		if err := restock(ctx); err != nil {
			logger.Warn("cancel_restock_failed", zap.String("order_number", o.Number), zap.Int("item_id", itemID), zap.Error(err))
			q.schedule(ctx, "restock", o.Number, restock)
		}
	}

	if o.PaymentTxnID == "" || q.payments == nil {
		return
	}
	orderID, txnID := o.ID, o.PaymentTxnID
	void := func(ctx context.Context) error {
		err := q.payments.Void(ctx, txnID)
		// the simulated gateway forgets authorizations on restart
		if err != nil && !errors.Is(err, payment.ErrAlreadyVoided) && !errors.Is(err, payment.ErrUnknownTransaction) {
			return err
		}
		if err := q.repo.SetPaymentStatus(ctx, orderID, PaymentVoided); err != nil && !errors.Is(err, ErrPaymentSettled) {
			return err
		}
		return nil
	}
	if err := void(ctx); err != nil {
		logger.Warn("cancel_void_failed", zap.String("order_number", o.Number), zap.Error(err))
		q.schedule(ctx, "void_payment", o.Number, void)
		return
	}
	o.PaymentStatus = PaymentVoided
}

func (q *QueryService) schedule(ctx context.Context, name, number string, run func(context.Context) error) {
	if q.reconciler == nil {
		logging.FromContext(ctx).Error("reconciliation_abandoned",
			zap.String("task", name), zap.String("order_number", number),
			zap.String("reason", "no reconciler configured"))
		return
	}
	if err := q.reconciler.Enqueue(reconcile.Task{Name: name, OrderNumber: number, Run: run}); err != nil {
		logging.FromContext(ctx).Error("reconcile_enqueue_failed",
			zap.String("task", name), zap.String("order_number", number), zap.Error(err))
	}
}
