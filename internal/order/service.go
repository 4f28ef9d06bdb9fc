// Package order turns a customer's cart into a persisted, paid order and
// serves read access to the result.
package order

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"github.com/wichananm65/urbancart-backend/internal/address"
	"github.com/wichananm65/urbancart-backend/internal/apperror"
	"github.com/wichananm65/urbancart-backend/internal/cart"
	"github.com/wichananm65/urbancart-backend/internal/catalog"
	"github.com/wichananm65/urbancart-backend/internal/customer"
	"github.com/wichananm65/urbancart-backend/internal/logging"
	"github.com/wichananm65/urbancart-backend/internal/metrics"
	"github.com/wichananm65/urbancart-backend/internal/payment"
	"github.com/wichananm65/urbancart-backend/internal/reconcile"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const useCasePlaceOrder = "order.place"

var tracer = otel.Tracer("urbancart/order")

type Customers interface {
	Get(ctx context.Context, id int) (customer.Customer, error)
}

type Addresses interface {
	FindForCustomer(ctx context.Context, customerID, id int) (address.Address, error)
}

type Carts interface {
	LinesForCustomer(ctx context.Context, customerID int) ([]cart.Line, error)
	Clear(ctx context.Context, customerID int) error
}

type Items interface {
	ListByIDs(ctx context.Context, ids []int) ([]catalog.Item, error)
}

type Stock interface {
	GetAvailable(ctx context.Context, itemID int) (int, error)
}

type Payments interface {
	Authorize(ctx context.Context, req payment.Request) (payment.Result, error)
	Void(ctx context.Context, transactionID string) error
}

type Reconciler interface {
	Enqueue(t reconcile.Task) error
}

// AddressInput picks a saved address by ID or describes a new one.
type AddressInput struct {
	ID int `json:"addressId,omitempty"`
	address.Input
}

func (a AddressInput) hasFields() bool {
	in := a.Input.Normalize()
	return in.Street != "" || in.City != "" || in.Province != "" || in.Country != "" || in.PostalCode != "" || in.Phone != ""
}

type PaymentInput struct {
	CardNumber string `json:"cardNumber"`
	CardHolder string `json:"cardHolder"`
	CVV        string `json:"cvv"`
	Expiry     string `json:"expiry"`
}

type PlaceOrderInput struct {
	CustomerID     int
	Shipping       AddressInput
	Billing        *AddressInput
	SameAsShipping bool
	Payment        PaymentInput
}

type Service struct {
	orders     Repository
	customers  Customers
	addresses  Addresses
	carts      Carts
	items      Items
	stock      Stock
	payments   Payments
	reconciler Reconciler
	metrics    *metrics.Metrics

	paymentTimeout time.Duration
	commitRetries  int
	retryBase      time.Duration

	inflight singleflight.Group
}

type Option func(*Service)

func WithPaymentTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.paymentTimeout = d
		}
	}
}

// WithCommitRetries sets how many times a transient commit failure is retried.
func WithCommitRetries(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.commitRetries = n
		}
	}
}

func WithRetryBase(d time.Duration) Option {
	return func(s *Service) { s.retryBase = d }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithReconciler(r Reconciler) Option {
	return func(s *Service) { s.reconciler = r }
}

type Deps struct {
	Orders    Repository
	Customers Customers
	Addresses Addresses
	Carts     Carts
	Items     Items
	Stock     Stock
	Payments  Payments
}

func NewService(d Deps, opts ...Option) *Service {
	s := &Service{
		orders:         d.Orders,
		customers:      d.Customers,
		addresses:      d.Addresses,
		carts:          d.Carts,
		items:          d.Items,
		stock:          d.Stock,
		payments:       d.Payments,
		paymentTimeout: 5 * time.Second,
		commitRetries:  3,
		retryBase:      50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newOrderNumber() string {
	return "ORD-" + ulid.Make().String()
}

func decimalOf(n int) decimal.Decimal {
	return decimal.NewFromInt(int64(n))
}

// PlaceOrder checks out the customer's cart. Concurrent calls for the same
// customer share one execution, so a double submit yields one order.
func (s *Service) PlaceOrder(ctx context.Context, in PlaceOrderInput) (Order, error) {
	v, err, shared := s.inflight.Do(strconv.Itoa(in.CustomerID), func() (any, error) {
		return s.placeOrder(ctx, in)
	})
	if shared {
		logging.FromContext(ctx).Info("checkout_collapsed", zap.Int("customer_id", in.CustomerID))
	}
	if err != nil {
		return Order{}, err
	}
	return v.(Order), nil
}

func (s *Service) placeOrder(ctx context.Context, in PlaceOrderInput) (o Order, err error) {
	ctx, span := tracer.Start(ctx, "order.PlaceOrder",
		trace.WithAttributes(attribute.Int("order.customer_id", in.CustomerID)))
	logger := logging.FromContext(ctx).With(
		zap.String("use_case", useCasePlaceOrder),
		zap.Int("customer_id", in.CustomerID),
	)
	ctx = logging.ContextWithLogger(ctx, logger)
	start := time.Now()

	defer func() {
		outcome := "success"
		if err != nil {
			outcome = string(apperror.KindOf(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		} else {
			span.SetAttributes(attribute.String("order.number", o.Number))
			span.SetStatus(codes.Ok, outcome)
		}
		span.End()

		elapsed := time.Since(start)
		s.metrics.Checkout(outcome, elapsed)
		fields := []zap.Field{zap.String("outcome", outcome), zap.Duration("latency", elapsed)}
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			fields = append(fields, zap.String("trace_id", sc.TraceID().String()))
		}
		if err != nil {
			fields = append(fields, zap.Error(err))
		} else {
			fields = append(fields, zap.String("order_number", o.Number))
		}
		logger.Info("use_case_done", fields...)
	}()

	cust, err := s.customers.Get(ctx, in.CustomerID)
	if err != nil {
		return Order{}, err
	}
	if !cust.Active {
		return Order{}, customer.ErrInactive
	}

	shipping, billing, same, err := s.resolveAddresses(ctx, cust, in)
	if err != nil {
		return Order{}, err
	}

	cartLines, err := s.carts.LinesForCustomer(ctx, cust.ID)
	if err != nil {
		return Order{}, err
	}
	if len(cartLines) == 0 {
		return Order{}, apperror.EmptyCart()
	}

	lines, total, err := s.priceLines(ctx, cartLines)
	if err != nil {
		return Order{}, err
	}
	span.SetAttributes(attribute.String("order.total", total.StringFixed(2)), attribute.Int("order.lines", len(lines)))

	number := newOrderNumber()
	approval, err := s.authorize(ctx, number, total, in.Payment)
	if err != nil {
		return Order{}, err
	}

	draft := Draft{
		Number:                number,
		CustomerID:            cust.ID,
		Shipping:              shipping,
		Billing:               billing,
		BillingSameAsShipping: same,
		Lines:                 lines,
		Total:                 total,
		PaymentTxnID:          approval.TransactionID,
		CardLast4:             payment.Last4(in.Payment.CardNumber),
	}
	var unresolved bool
	o, unresolved, err = s.commit(ctx, draft)
	if err != nil {
		if unresolved {
			s.resolveLater(ctx, draft)
		} else {
			s.voidPayment(ctx, number, approval.TransactionID)
		}
		return Order{}, err
	}

	s.afterCommit(ctx, &o, cust.ID)
	return o, nil
}

// resolveAddresses falls back to the customer's default addresses, and billing
// falls back to shipping.
func (s *Service) resolveAddresses(ctx context.Context, cust customer.Customer, in PlaceOrderInput) (address.Address, address.Address, bool, error) {
	shipping, err := s.resolveAddress(ctx, cust.ID, in.Shipping, cust.ShippingAddressID, "shipping")
	if err != nil {
		return address.Address{}, address.Address{}, false, err
	}

	switch {
	case in.SameAsShipping:
		return shipping, shipping, true, nil
	case in.Billing != nil && (in.Billing.ID > 0 || in.Billing.hasFields()):
		billing, err := s.resolveAddress(ctx, cust.ID, *in.Billing, nil, "billing")
		if err != nil {
			return address.Address{}, address.Address{}, false, err
		}
		if shipping.ID > 0 && billing.ID == shipping.ID {
			return shipping, shipping, true, nil
		}
		return shipping, billing, false, nil
	case cust.BillingAddressID != nil:
		billing, err := s.addresses.FindForCustomer(ctx, cust.ID, *cust.BillingAddressID)
		if err != nil {
			return address.Address{}, address.Address{}, false, err
		}
		return shipping, billing, shipping.ID > 0 && billing.ID == shipping.ID, nil
	default:
		return shipping, shipping, true, nil
	}
}

func (s *Service) resolveAddress(ctx context.Context, customerID int, in AddressInput, fallback *int, role string) (address.Address, error) {
	switch {
	case in.ID > 0:
		return s.addresses.FindForCustomer(ctx, customerID, in.ID)
	case in.hasFields():
		if err := in.Input.Validate(); err != nil {
			return address.Address{}, err
		}
		// inserted with the order so a failed checkout leaves nothing behind
		return in.Input.ToAddress(customerID), nil
	case fallback != nil:
		return s.addresses.FindForCustomer(ctx, customerID, *fallback)
	default:
		return address.Address{}, apperror.Validationf("%s address is required", role)
	}
}

// priceLines checks availability and captures current catalog prices.
func (s *Service) priceLines(ctx context.Context, cartLines []cart.Line) ([]Line, decimal.Decimal, error) {
	ids := make([]int, 0, len(cartLines))
	for _, l := range cartLines {
		ids = append(ids, l.ItemID)
	}
	items, err := s.items.ListByIDs(ctx, ids)
	if err != nil {
		return nil, decimal.Zero, err
	}
	byID := make(map[int]catalog.Item, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}

	lines := make([]Line, 0, len(cartLines))
	total := decimal.Zero
	for _, cl := range cartLines {
		it, ok := byID[cl.ItemID]
		if !ok {
			return nil, decimal.Zero, apperror.NotFound(fmt.Sprintf("item %d is no longer available", cl.ItemID))
		}
		available, err := s.stock.GetAvailable(ctx, cl.ItemID)
		if err != nil {
			return nil, decimal.Zero, err
		}
		if available < cl.Quantity {
			s.metrics.StockRejected()
			return nil, decimal.Zero, apperror.InsufficientStock(it.ID, it.Name, available)
		}
		lineTotal := it.Price.Mul(decimalOf(cl.Quantity))
		lines = append(lines, Line{
			ItemID:    it.ID,
			ItemName:  it.Name,
			Quantity:  cl.Quantity,
			UnitPrice: it.Price,
			LineTotal: lineTotal,
		})
		total = total.Add(lineTotal)
	}
	return lines, total.Round(2), nil
}

func (s *Service) authorize(ctx context.Context, number string, total decimal.Decimal, in PaymentInput) (payment.Result, error) {
	pctx, cancel := context.WithTimeout(ctx, s.paymentTimeout)
	defer cancel()

	res, err := s.payments.Authorize(pctx, payment.Request{
		Amount:     total,
		CardNumber: in.CardNumber,
		CardHolder: in.CardHolder,
		CVV:        in.CVV,
		Expiry:     in.Expiry,
		Reference:  number,
	})
	if err != nil {
		return payment.Result{}, apperror.Internal(err)
	}
	if !res.Approved {
		return payment.Result{}, apperror.PaymentDeclined(res.Reason)
	}
	return res, nil
}

// commit retries transient failures with backoff. A transient error may hide
// a commit that landed, so the order number is looked up before each retry and
// once more after the last attempt. unresolved is set when even that lookup
// fails and the outcome is unknown.
func (s *Service) commit(ctx context.Context, d Draft) (o Order, unresolved bool, err error) {
	logger := logging.FromContext(ctx)
	for attempt := 0; ; attempt++ {
		o, err = s.orders.Create(ctx, d)
		if err == nil {
			return o, false, nil
		}
		if !apperror.IsTransient(err) || attempt >= s.commitRetries {
			break
		}
		logger.Warn("order_commit_retry", zap.Int("attempt", attempt+1), zap.Error(err))
		if serr := reconcile.Sleep(ctx, reconcile.Backoff(s.retryBase, attempt)); serr != nil {
			break
		}
		if existing, gerr := s.orders.GetByNumber(ctx, d.Number); gerr == nil {
			return existing, false, nil
		}
	}

	if apperror.IsTransient(err) {
		existing, gerr := s.orders.GetByNumber(context.WithoutCancel(ctx), d.Number)
		switch {
		case gerr == nil:
			logger.Info("order_commit_confirmed", zap.String("order_number", d.Number), zap.NamedError("commit_error", err))
			return existing, false, nil
		case !errors.Is(gerr, ErrNotFound):
			logger.Warn("order_commit_unresolved", zap.String("order_number", d.Number), zap.Error(gerr))
			return Order{}, true, apperror.Transient(err)
		}
	}

	if apperror.KindOf(err) == apperror.KindInsufficientStock {
		s.metrics.StockRejected()
	}
	if _, ok := apperror.As(err); ok {
		return Order{}, false, err
	}
	if apperror.IsTransient(err) {
		return Order{}, false, apperror.Transient(err)
	}
	return Order{}, false, apperror.Internal(err)
}

func (s *Service) releasePayment(ctx context.Context, txnID string) error {
	err := s.payments.Void(ctx, txnID)
	if errors.Is(err, payment.ErrAlreadyVoided) {
		return nil
	}
	return err
}

// voidPayment releases the authorization after a failed commit. It must run
// even when the caller has gone away.
func (s *Service) voidPayment(ctx context.Context, number, txnID string) {
	ctx = context.WithoutCancel(ctx)
	void := func(ctx context.Context) error {
		return s.releasePayment(ctx, txnID)
	}
	if err := void(ctx); err != nil {
		logging.FromContext(ctx).Warn("payment_void_failed", zap.String("order_number", number), zap.Error(err))
		s.schedule(ctx, "void_payment", number, void)
	}
}

// resolveLater settles a checkout whose commit outcome is unknown: an order
// that landed gets its post-commit steps, a missing one has its payment voided.
func (s *Service) resolveLater(ctx context.Context, d Draft) {
	ctx = context.WithoutCancel(ctx)
	resolve := func(ctx context.Context) error {
		o, err := s.orders.GetByNumber(ctx, d.Number)
		if errors.Is(err, ErrNotFound) {
			return s.releasePayment(ctx, d.PaymentTxnID)
		}
		if err != nil {
			return err
		}
		s.afterCommit(ctx, &o, d.CustomerID)
		return nil
	}
	s.schedule(ctx, "resolve_commit", d.Number, resolve)
}

// afterCommit runs the post-commit steps. The order already exists, so a
// failure here is scheduled for reconciliation instead of failing checkout.
func (s *Service) afterCommit(ctx context.Context, o *Order, customerID int) {
	ctx = context.WithoutCancel(ctx)
	logger := logging.FromContext(ctx)
	orderID := o.ID

	approve := func(ctx context.Context) error {
		err := s.orders.SetPaymentStatus(ctx, orderID, PaymentApproved)
		// already approved, or voided by a cancellation in the meantime
		if errors.Is(err, ErrPaymentSettled) {
			return nil
		}
		return err
	}
	if err := approve(ctx); err != nil {
		logger.Warn("post_commit_failed", zap.String("step", "approve_payment"), zap.String("order_number", o.Number), zap.Error(err))
		s.schedule(ctx, "approve_payment", o.Number, approve)
	} else {
		o.PaymentStatus = PaymentApproved
	}

	clearCart := func(ctx context.Context) error {
		return s.carts.Clear(ctx, customerID)
	}
	if err := clearCart(ctx); err != nil {
		logger.Warn("post_commit_failed", zap.String("step", "clear_cart"), zap.String("order_number", o.Number), zap.Error(err))
		s.schedule(ctx, "clear_cart", o.Number, clearCart)
	}
}

func (s *Service) schedule(ctx context.Context, name, number string, run func(context.Context) error) {
	if s.reconciler == nil {
		s.metrics.ReconcileAbandoned()
		logging.FromContext(ctx).Error("reconciliation_abandoned",
			zap.String("task", name), zap.String("order_number", number),
			zap.String("reason", "no reconciler configured"))
		return
	}
	if err := s.reconciler.Enqueue(reconcile.Task{Name: name, OrderNumber: number, Run: run}); err != nil {
		logging.FromContext(ctx).Error("reconcile_enqueue_failed",
			zap.String("task", name), zap.String("order_number", number), zap.Error(err))
	}
}
