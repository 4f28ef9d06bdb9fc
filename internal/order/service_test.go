package order

import (
	"context"
	"database/sql/driver"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wichananm65/urbancart-backend/internal/address"
	"github.com/wichananm65/urbancart-backend/internal/apperror"
	"github.com/wichananm65/urbancart-backend/internal/auth"
	"github.com/wichananm65/urbancart-backend/internal/cart"
	"github.com/wichananm65/urbancart-backend/internal/catalog"
	"github.com/wichananm65/urbancart-backend/internal/customer"
	"github.com/wichananm65/urbancart-backend/internal/inventory"
	"github.com/wichananm65/urbancart-backend/internal/logging"
	"github.com/wichananm65/urbancart-backend/internal/payment"
	"github.com/wichananm65/urbancart-backend/internal/reconcile"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const (
	mouseID    = 1
	keyboardID = 2
	monitorID  = 3
)

var (
	validCard = PaymentInput{CardNumber: "4111111111111111", CardHolder: "Ada Lovelace", CVV: "123", Expiry: "12/99"}
	homeInput = AddressInput{Input: address.Input{Street: "1 Main St", City: "Bangkok", Country: "TH", PostalCode: "10110"}}
)

func seedItems() []catalog.Item {
	return []catalog.Item{
		{ID: mouseID, SKU: "TECH001", Name: "Wireless Mouse", Category: "Accessories", Price: decimal.RequireFromString("24.99"), Quantity: 10},
		{ID: keyboardID, SKU: "TECH002", Name: "Mechanical Keyboard", Category: "Accessories", Price: decimal.RequireFromString("89.00"), Quantity: 5},
		{ID: monitorID, SKU: "TECH003", Name: "4K Monitor", Category: "Displays", Price: decimal.RequireFromString("329.50"), Quantity: 0},
	}
}

// recordingPayments wraps the simulated gateway and remembers what it did.
type recordingPayments struct {
	*payment.Authorizer

	mu       sync.Mutex
	calls    int
	approved []string
	voided   []string
}

func (p *recordingPayments) Authorize(ctx context.Context, req payment.Request) (payment.Result, error) {
	res, err := p.Authorizer.Authorize(ctx, req)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if res.Approved {
		p.approved = append(p.approved, res.TransactionID)
	}
	return res, err
}

func (p *recordingPayments) Void(ctx context.Context, txnID string) error {
	err := p.Authorizer.Void(ctx, txnID)
	if err == nil {
		p.mu.Lock()
		p.voided = append(p.voided, txnID)
		p.mu.Unlock()
	}
	return err
}

func (p *recordingPayments) counts() (calls, approved, voided int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls, len(p.approved), len(p.voided)
}

type refusingReconciler struct{}

func (refusingReconciler) Enqueue(reconcile.Task) error { return reconcile.ErrQueueFull }

type collectingReconciler struct {
	mu    sync.Mutex
	tasks []reconcile.Task
}

func (r *collectingReconciler) Enqueue(t reconcile.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = append(r.tasks, t)
	return nil
}

func (r *collectingReconciler) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.tasks))
	for _, t := range r.tasks {
		out = append(out, t.Name)
	}
	return out
}

// flakyRepository fails selected calls before handing over to the real one.
type flakyRepository struct {
	Repository

	mu              sync.Mutex
	createFailures  int
	createErr       error
	createCalls     int
	lostAcks        int
	lookupFailures  int
	paymentFailures int
}

// Create fails outright createFailures times, then commits but reports
// createErr lostAcks times.
func (r *flakyRepository) Create(ctx context.Context, d Draft) (Order, error) {
	r.mu.Lock()
	r.createCalls++
	fail := r.createFailures > 0
	lost := !fail && r.lostAcks > 0
	switch {
	case fail:
		r.createFailures--
	case lost:
		r.lostAcks--
	}
	r.mu.Unlock()
	if fail {
		return Order{}, r.createErr
	}
	o, err := r.Repository.Create(ctx, d)
	if lost && err == nil {
		return Order{}, r.createErr
	}
	return o, err
}

func (r *flakyRepository) GetByNumber(ctx context.Context, number string) (Order, error) {
	r.mu.Lock()
	fail := r.lookupFailures > 0
	if fail {
		r.lookupFailures--
	}
	r.mu.Unlock()
	if fail {
		return Order{}, driver.ErrBadConn
	}
	return r.Repository.GetByNumber(ctx, number)
}

func (r *flakyRepository) SetPaymentStatus(ctx context.Context, id int, ps PaymentStatus) error {
	r.mu.Lock()
	fail := r.paymentFailures > 0
	if fail {
		r.paymentFailures--
	}
	r.mu.Unlock()
	if fail {
		return errors.New("connection reset")
	}
	return r.Repository.SetPaymentStatus(ctx, id, ps)
}

type fixture struct {
	catalog    *catalog.Service
	catalogDB  *catalog.InMemoryRepository
	ledger     *inventory.InMemoryLedger
	customers  *customer.Service
	custRepo   *customer.InMemoryRepository
	addresses  *address.Service
	carts      *cart.Service
	cartStore  *cart.InMemoryStore
	orders     *InMemoryRepository
	payments   *recordingPayments
	reconciler *collectingReconciler
	repo       Repository
	svc        *Service
	queries    *QueryService
}

type fixtureOption func(*fixture)

func withRepo(wrap func(Repository) Repository) fixtureOption {
	return func(f *fixture) { f.repo = wrap(f.repo) }
}

func newFixture(t *testing.T, policy payment.DecisionPolicy, fopts []fixtureOption, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{}
	f.catalogDB = catalog.NewInMemoryRepository(seedItems())
	f.catalog = catalog.NewService(f.catalogDB)
	f.ledger = f.catalogDB.Ledger()

	addrRepo := address.NewInMemoryRepository(nil)
	f.addresses = address.NewService(addrRepo)
	f.custRepo = customer.NewInMemoryRepository(nil)
	f.customers = customer.NewService(f.custRepo, nil, f.addresses)
	f.cartStore = cart.NewInMemoryStore()
	f.carts = cart.NewService(f.cartStore, cart.NewInMemoryGuestStore(time.Hour), f.catalog)
	f.orders = NewInMemoryRepository(f.ledger, addrRepo, f.customers)
	f.repo = f.orders
	f.payments = &recordingPayments{Authorizer: payment.NewAuthorizer(policy)}
	f.reconciler = &collectingReconciler{}
	for _, o := range fopts {
		o(f)
	}

	opts = append([]Option{WithRetryBase(time.Millisecond), WithReconciler(f.reconciler)}, opts...)
	f.svc = NewService(Deps{
		Orders:    f.repo,
		Customers: f.customers,
		Addresses: f.addresses,
		Carts:     f.carts,
		Items:     f.catalog,
		Stock:     f.ledger,
		Payments:  f.payments,
	}, opts...)
	f.queries = NewQueryService(f.repo, RestockFunc(func(ctx context.Context, itemID, amount int) error {
		_, err := f.ledger.Restock(ctx, itemID, amount)
		return err
	}), f.payments, f.reconciler)
	return f
}

func (f *fixture) customer(t *testing.T, userID int) int {
	t.Helper()
	id, err := f.customers.CustomerIDFor(context.Background(), auth.Principal{UserID: userID, Email: "user@example.com", Role: auth.RoleCustomer})
	require.NoError(t, err)
	return id
}

func (f *fixture) add(t *testing.T, customerID, itemID, qty int) {
	t.Helper()
	_, err := f.carts.Add(context.Background(), customerID, itemID, qty)
	require.NoError(t, err)
}

func (f *fixture) available(t *testing.T, itemID int) int {
	t.Helper()
	n, err := f.ledger.GetAvailable(context.Background(), itemID)
	require.NoError(t, err)
	return n
}

func checkout(customerID int) PlaceOrderInput {
	return PlaceOrderInput{CustomerID: customerID, Shipping: homeInput, SameAsShipping: true, Payment: validCard}
}

func TestPlaceOrder_Success(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, payment.AlwaysApprove(), nil)
	cid := f.customer(t, 1)
	f.add(t, cid, mouseID, 2)
	f.add(t, cid, keyboardID, 1)

	o, err := f.svc.PlaceOrder(ctx, checkout(cid))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(o.Number, "ORD-"))
	assert.Equal(t, "138.98", o.Total.StringFixed(2))
	assert.Equal(t, StatusProcessing, o.Status)
	assert.Equal(t, PaymentApproved, o.PaymentStatus)
	assert.Equal(t, "1111", o.CardLast4)
	assert.NotEmpty(t, o.PaymentTxnID)
	require.Len(t, o.Lines, 2)

	sum := decimal.Zero
	for _, l := range o.Lines {
		assert.True(t, l.LineTotal.Equal(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))))
		sum = sum.Add(l.LineTotal)
	}
	assert.True(t, sum.Equal(o.Total))

	assert.Equal(t, 8, f.available(t, mouseID))
	assert.Equal(t, 4, f.available(t, keyboardID))

	lines, err := f.carts.LinesForCustomer(ctx, cid)
	require.NoError(t, err)
	assert.Empty(t, lines)

	// the new address is saved to the customer's book and shared by billing
	book, err := f.addresses.List(ctx, cid)
	require.NoError(t, err)
	require.Len(t, book, 1)
	assert.Equal(t, book[0].ID, o.ShippingAddressID)
	assert.Equal(t, o.ShippingAddressID, o.BillingAddressID)
	assert.Equal(t, "Bangkok", o.Shipping.City)

	stored, err := f.queries.GetByNumber(ctx, Viewer{CustomerID: cid}, o.Number)
	require.NoError(t, err)
	assert.Equal(t, o.ID, stored.ID)
	assert.Equal(t, PaymentApproved, stored.PaymentStatus)
	assert.Empty(t, f.reconciler.names())
}

func TestPlaceOrder_PricesAreCaptured(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, payment.AlwaysApprove(), nil)
	cid := f.customer(t, 1)
	f.add(t, cid, keyboardID, 2)

	o, err := f.svc.PlaceOrder(ctx, checkout(cid))
	require.NoError(t, err)

	item, err := f.catalog.GetItem(ctx, keyboardID)
	require.NoError(t, err)
	item.Price = decimal.RequireFromString("120.00")
	_, err = f.catalog.Update(ctx, keyboardID, item)
	require.NoError(t, err)

	stored, err := f.queries.GetByID(ctx, Viewer{All: true}, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "178.00", stored.Total.StringFixed(2))
	require.Len(t, stored.Lines, 1)
	assert.Equal(t, "89.00", stored.Lines[0].UnitPrice.StringFixed(2))
	assert.Equal(t, "Mechanical Keyboard", stored.Lines[0].ItemName)
}

func TestPlaceOrder_DeclinedLeavesNothingBehind(t *testing.T) {
	cases := []struct {
		name   string
		policy payment.DecisionPolicy
		card   string
		reason string
	}{
		{"issuer declines", payment.AlwaysDecline(), "4111111111111111", payment.ReasonDeclined},
		{"bad checksum", payment.AlwaysApprove(), "4111111111111112", payment.ReasonInvalidCard},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t, tc.policy, nil)
			cid := f.customer(t, 1)
			f.add(t, cid, keyboardID, 2)

			in := checkout(cid)
			in.Payment.CardNumber = tc.card
			_, err := f.svc.PlaceOrder(ctx, in)
			require.Error(t, err)
			assert.Equal(t, apperror.KindPaymentDeclined, apperror.KindOf(err))
			ae, ok := apperror.As(err)
			require.True(t, ok)
			assert.Equal(t, tc.reason, ae.Details["reason"])
			assert.NotContains(t, ae.Error(), tc.card)

			all, err := f.queries.ListAll(ctx)
			require.NoError(t, err)
			assert.Empty(t, all)
			assert.Equal(t, 5, f.available(t, keyboardID))

			lines, err := f.carts.LinesForCustomer(ctx, cid)
			require.NoError(t, err)
			require.Len(t, lines, 1)
			assert.Equal(t, 2, lines[0].Quantity)

			book, err := f.addresses.List(ctx, cid)
			require.NoError(t, err)
			assert.Empty(t, book)
		})
	}
}

func TestPlaceOrder_EmptyCart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, payment.AlwaysApprove(), nil)
	cid := f.customer(t, 1)

	_, err := f.svc.PlaceOrder(ctx, checkout(cid))
	require.Error(t, err)
	assert.Equal(t, apperror.KindEmptyCart, apperror.KindOf(err))

	calls, _, _ := f.payments.counts()
	assert.Zero(t, calls)
	_, err = f.cartStore.Find(ctx, cid)
	assert.ErrorIs(t, err, cart.ErrNoCart)
	all, _ := f.queries.ListAll(ctx)
	assert.Empty(t, all)
}

func TestPlaceOrder_InsufficientStockBeforePayment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, payment.AlwaysApprove(), nil)
	cid := f.customer(t, 1)
	f.add(t, cid, keyboardID, 4)
	_, err := f.ledger.SetQuantity(ctx, keyboardID, 3)
	require.NoError(t, err)

	_, err = f.svc.PlaceOrder(ctx, checkout(cid))
	require.Error(t, err)
	assert.Equal(t, apperror.KindInsufficientStock, apperror.KindOf(err))
	ae, _ := apperror.As(err)
	assert.Equal(t, 3, ae.Details["available"])
	assert.Equal(t, keyboardID, ae.Details["itemId"])

	calls, _, _ := f.payments.counts()
	assert.Zero(t, calls)
	assert.Equal(t, 3, f.available(t, keyboardID))
}

func TestPlaceOrder_ConcurrentBuyersForLastUnits(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, payment.AlwaysApprove(), nil)
	buyers := []int{f.customer(t, 1), f.customer(t, 2)}
	for _, cid := range buyers {
		f.add(t, cid, keyboardID, 3)
	}

	var wg sync.WaitGroup
	start := make(chan struct{})
	errs := make([]error, len(buyers))
	for i, cid := range buyers {
		wg.Add(1)
		go func(i, cid int) {
			defer wg.Done()
			<-start
			_, errs[i] = f.svc.PlaceOrder(ctx, checkout(cid))
		}(i, cid)
	}
	close(start)
	wg.Wait()

	var wins, losses int
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		losses++
		require.Equal(t, apperror.KindInsufficientStock, apperror.KindOf(err))
		ae, _ := apperror.As(err)
		assert.Equal(t, 2, ae.Details["available"])
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, losses)
	assert.Equal(t, 2, f.available(t, keyboardID))

	all, _ := f.queries.ListAll(ctx)
	assert.Len(t, all, 1)

	// a loser that got past authorization must have been voided
	_, approved, voided := f.payments.counts()
	assert.Equal(t, 1, approved-voided)
}

func TestPlaceOrder_DoubleSubmitYieldsOneOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, payment.AlwaysApprove(), nil)
	f.payments.Authorizer = payment.NewAuthorizer(payment.AlwaysApprove(), payment.WithLatency(50*time.Millisecond))
	cid := f.customer(t, 1)
	f.add(t, cid, mouseID, 1)

	var wg sync.WaitGroup
	start := make(chan struct{})
	results := make([]Order, 2)
	errs := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i], errs[i] = f.svc.PlaceOrder(ctx, checkout(cid))
		}(i)
	}
	close(start)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, results[0].Number, results[1].Number)

	mine, err := f.queries.ListByCustomer(ctx, cid)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
	assert.Equal(t, 9, f.available(t, mouseID))
	calls, _, _ := f.payments.counts()
	assert.Equal(t, 1, calls)
}

func TestPlaceOrder_TransientCommitIsRetried(t *testing.T) {
	ctx := context.Background()
	var flaky *flakyRepository
	f := newFixture(t, payment.AlwaysApprove(), []fixtureOption{withRepo(func(r Repository) Repository {
		flaky = &flakyRepository{Repository: r, createFailures: 2, createErr: driver.ErrBadConn}
		return flaky
	})})
	cid := f.customer(t, 1)
	f.add(t, cid, mouseID, 1)

	o, err := f.svc.PlaceOrder(ctx, checkout(cid))
	require.NoError(t, err)
	assert.Equal(t, 3, flaky.createCalls)
	assert.NotZero(t, o.ID)
	_, _, voided := f.payments.counts()
	assert.Zero(t, voided)
}

func TestPlaceOrder_FailedCommitVoidsPayment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, payment.AlwaysApprove(), []fixtureOption{withRepo(func(r Repository) Repository {
		return &flakyRepository{Repository: r, createFailures: 10, createErr: driver.ErrBadConn}
	})}, WithCommitRetries(2))
	cid := f.customer(t, 1)
	f.add(t, cid, mouseID, 1)

	_, err := f.svc.PlaceOrder(ctx, checkout(cid))
	require.Error(t, err)
	assert.Equal(t, apperror.KindTransient, apperror.KindOf(err))

	_, approved, voided := f.payments.counts()
	assert.Equal(t, 1, approved)
	assert.Equal(t, 1, voided)
	assert.Equal(t, 10, f.available(t, mouseID))
	lines, _ := f.carts.LinesForCustomer(ctx, cid)
	assert.Len(t, lines, 1)
}

func TestPlaceOrder_CommitThatLandedIsNotUndone(t *testing.T) {
	cases := []struct {
		name     string
		failures int
		retries  int
	}{
		{name: "no retries", retries: 0},
		{name: "last retry", failures: 1, retries: 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t, payment.AlwaysApprove(), []fixtureOption{withRepo(func(r Repository) Repository {
				return &flakyRepository{Repository: r, createFailures: tc.failures, lostAcks: 1, createErr: driver.ErrBadConn}
			})}, WithCommitRetries(tc.retries))
			cid := f.customer(t, 1)
			f.add(t, cid, mouseID, 1)

			o, err := f.svc.PlaceOrder(ctx, checkout(cid))
			require.NoError(t, err)
			assert.Equal(t, PaymentApproved, o.PaymentStatus)

			_, approved, voided := f.payments.counts()
			assert.Equal(t, 1, approved)
			assert.Zero(t, voided)
			assert.Equal(t, 9, f.available(t, mouseID))

			mine, err := f.queries.ListByCustomer(ctx, cid)
			require.NoError(t, err)
			assert.Len(t, mine, 1)
			lines, _ := f.carts.LinesForCustomer(ctx, cid)
			assert.Empty(t, lines)
		})
	}
}

func TestPlaceOrder_UnknownCommitOutcomeIsReconciled(t *testing.T) {
	t.Run("order landed", func(t *testing.T) {
		ctx := context.Background()
		f := newFixture(t, payment.AlwaysApprove(), []fixtureOption{withRepo(func(r Repository) Repository {
			return &flakyRepository{Repository: r, lostAcks: 1, lookupFailures: 1, createErr: driver.ErrBadConn}
		})}, WithCommitRetries(0))
		cid := f.customer(t, 1)
		f.add(t, cid, mouseID, 1)

		_, err := f.svc.PlaceOrder(ctx, checkout(cid))
		assert.Equal(t, apperror.KindTransient, apperror.KindOf(err))
		_, _, voided := f.payments.counts()
		assert.Zero(t, voided)
		require.Equal(t, []string{"resolve_commit"}, f.reconciler.names())

		require.NoError(t, f.reconciler.tasks[0].Run(ctx))
		mine, err := f.queries.ListByCustomer(ctx, cid)
		require.NoError(t, err)
		require.Len(t, mine, 1)
		assert.Equal(t, PaymentApproved, mine[0].PaymentStatus)
		lines, _ := f.carts.LinesForCustomer(ctx, cid)
		assert.Empty(t, lines)
		_, _, voided = f.payments.counts()
		assert.Zero(t, voided)
	})

	t.Run("order missing", func(t *testing.T) {
		ctx := context.Background()
		f := newFixture(t, payment.AlwaysApprove(), []fixtureOption{withRepo(func(r Repository) Repository {
			return &flakyRepository{Repository: r, createFailures: 1, lookupFailures: 1, createErr: driver.ErrBadConn}
		})}, WithCommitRetries(0))
		cid := f.customer(t, 1)
		f.add(t, cid, mouseID, 1)

		_, err := f.svc.PlaceOrder(ctx, checkout(cid))
		assert.Equal(t, apperror.KindTransient, apperror.KindOf(err))
		require.Equal(t, []string{"resolve_commit"}, f.reconciler.names())

		require.NoError(t, f.reconciler.tasks[0].Run(ctx))
		_, _, voided := f.payments.counts()
		assert.Equal(t, 1, voided)
		assert.Equal(t, 10, f.available(t, mouseID))
		lines, _ := f.carts.LinesForCustomer(ctx, cid)
		assert.Len(t, lines, 1)
	})
}

func TestPlaceOrder_QueuedApprovalDoesNotOverrideCancel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, payment.AlwaysApprove(), []fixtureOption{withRepo(func(r Repository) Repository {
		return &flakyRepository{Repository: r, paymentFailures: 1}
	})})
	cid := f.customer(t, 1)
	f.add(t, cid, mouseID, 1)

	o, err := f.svc.PlaceOrder(ctx, checkout(cid))
	require.NoError(t, err)
	require.Equal(t, []string{"approve_payment"}, f.reconciler.names())

	cancelled, err := f.queries.UpdateStatus(ctx, o.ID, StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, PaymentVoided, cancelled.PaymentStatus)

	require.NoError(t, f.reconciler.tasks[0].Run(ctx))
	stored, err := f.queries.GetByID(ctx, Viewer{All: true}, o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, stored.Status)
	assert.Equal(t, PaymentVoided, stored.PaymentStatus)
}

func TestPlaceOrder_EnqueueFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ctx := logging.ContextWithLogger(context.Background(), zap.New(core))
	f := newFixture(t, payment.AlwaysApprove(), []fixtureOption{withRepo(func(r Repository) Repository {
		return &flakyRepository{Repository: r, paymentFailures: 1}
	})}, WithReconciler(refusingReconciler{}))
	cid := f.customer(t, 1)
	f.add(t, cid, mouseID, 1)

	_, err := f.svc.PlaceOrder(ctx, checkout(cid))
	require.NoError(t, err)

	entries := logs.FilterMessage("reconcile_enqueue_failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "approve_payment", entries[0].ContextMap()["task"])
}

func TestInMemorySetPaymentStatus_CompareAndSet(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, payment.AlwaysApprove(), nil)
	cid := f.customer(t, 1)
	f.add(t, cid, mouseID, 1)
	o, err := f.svc.PlaceOrder(ctx, checkout(cid))
	require.NoError(t, err)

	assert.ErrorIs(t, f.orders.SetPaymentStatus(ctx, o.ID, PaymentApproved), ErrPaymentSettled)
	require.NoError(t, f.orders.SetPaymentStatus(ctx, o.ID, PaymentVoided))
	assert.ErrorIs(t, f.orders.SetPaymentStatus(ctx, o.ID, PaymentApproved), ErrPaymentSettled)
	assert.ErrorIs(t, f.orders.SetPaymentStatus(ctx, o.ID, PaymentVoided), ErrPaymentSettled)
	assert.ErrorIs(t, f.orders.SetPaymentStatus(ctx, 999, PaymentVoided), ErrNotFound)
}

func TestPlaceOrder_PostCommitFailureIsReconciled(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, payment.AlwaysApprove(), []fixtureOption{withRepo(func(r Repository) Repository {
		return &flakyRepository{Repository: r, paymentFailures: 1}
	})})
	cid := f.customer(t, 1)
	f.add(t, cid, mouseID, 1)

	o, err := f.svc.PlaceOrder(ctx, checkout(cid))
	require.NoError(t, err)
	assert.Equal(t, PaymentPending, o.PaymentStatus)
	require.Equal(t, []string{"approve_payment"}, f.reconciler.names())

	task := f.reconciler.tasks[0]
	assert.Equal(t, o.Number, task.OrderNumber)
	require.NoError(t, task.Run(ctx))

	stored, err := f.queries.GetByID(ctx, Viewer{All: true}, o.ID)
	require.NoError(t, err)
	assert.Equal(t, PaymentApproved, stored.PaymentStatus)
}

func TestPlaceOrder_PaymentTimeoutIsADecline(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, payment.AlwaysApprove(), nil, WithPaymentTimeout(10*time.Millisecond))
	f.payments.Authorizer = payment.NewAuthorizer(payment.AlwaysApprove(), payment.WithLatency(time.Second))
	cid := f.customer(t, 1)
	f.add(t, cid, mouseID, 1)

	_, err := f.svc.PlaceOrder(ctx, checkout(cid))
	require.Error(t, err)
	assert.Equal(t, apperror.KindPaymentDeclined, apperror.KindOf(err))
	ae, _ := apperror.As(err)
	assert.Equal(t, payment.ReasonTimeout, ae.Details["reason"])
	assert.Equal(t, 10, f.available(t, mouseID))
}

func TestPlaceOrder_Addresses(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, payment.AlwaysApprove(), nil)
	cid := f.customer(t, 1)
	other := f.customer(t, 2)

	saved, err := f.addresses.Create(ctx, cid, address.Input{Street: "9 Soi 4", City: "Chiang Mai", Country: "TH", PostalCode: "50000"})
	require.NoError(t, err)
	foreign, err := f.addresses.Create(ctx, other, address.Input{Street: "2 Elm", City: "Phuket", Country: "TH", PostalCode: "83000"})
	require.NoError(t, err)

	t.Run("missing shipping", func(t *testing.T) {
		f.add(t, cid, mouseID, 1)
		_, err := f.svc.PlaceOrder(ctx, PlaceOrderInput{CustomerID: cid, Payment: validCard})
		assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
	})

	t.Run("incomplete new address", func(t *testing.T) {
		in := checkout(cid)
		in.Shipping = AddressInput{Input: address.Input{Street: "1 Main St"}}
		_, err := f.svc.PlaceOrder(ctx, in)
		assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
	})

	t.Run("foreign address", func(t *testing.T) {
		in := checkout(cid)
		in.Shipping = AddressInput{ID: foreign.ID}
		_, err := f.svc.PlaceOrder(ctx, in)
		assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
	})

	t.Run("saved shipping with separate new billing", func(t *testing.T) {
		in := PlaceOrderInput{
			CustomerID: cid,
			Shipping:   AddressInput{ID: saved.ID},
			Billing:    &homeInput,
			Payment:    validCard,
		}
		o, err := f.svc.PlaceOrder(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, saved.ID, o.ShippingAddressID)
		assert.NotEqual(t, saved.ID, o.BillingAddressID)
		assert.Equal(t, "Chiang Mai", o.Shipping.City)
		assert.Equal(t, "Bangkok", o.Billing.City)
	})

	t.Run("profile defaults", func(t *testing.T) {
		_, err := f.customers.UpdateProfile(ctx, cid, customer.ProfileUpdate{ShippingAddressID: &saved.ID})
		require.NoError(t, err)
		f.add(t, cid, mouseID, 1)

		o, err := f.svc.PlaceOrder(ctx, PlaceOrderInput{CustomerID: cid, Payment: validCard})
		require.NoError(t, err)
		assert.Equal(t, saved.ID, o.ShippingAddressID)
		assert.Equal(t, saved.ID, o.BillingAddressID)
	})
}

func TestPlaceOrder_InactiveCustomer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, payment.AlwaysApprove(), nil)
	cid := f.customer(t, 1)
	f.add(t, cid, mouseID, 1)
	_, err := f.custRepo.SetActive(ctx, cid, false)
	require.NoError(t, err)

	_, err = f.svc.PlaceOrder(ctx, checkout(cid))
	assert.ErrorIs(t, err, customer.ErrInactive)
	calls, _, _ := f.payments.counts()
	assert.Zero(t, calls)
}

func TestQueryService_ViewerScoping(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, payment.AlwaysApprove(), nil)
	owner := f.customer(t, 1)
	stranger := f.customer(t, 2)
	f.add(t, owner, mouseID, 1)
	o, err := f.svc.PlaceOrder(ctx, checkout(owner))
	require.NoError(t, err)

	_, err = f.queries.GetByID(ctx, Viewer{CustomerID: stranger}, o.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.queries.GetByNumber(ctx, Viewer{CustomerID: stranger}, o.Number)
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := f.queries.GetByID(ctx, Viewer{CustomerID: owner}, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.Number, got.Number)
	_, err = f.queries.GetByID(ctx, Viewer{All: true}, o.ID)
	require.NoError(t, err)

	mine, _ := f.queries.ListByCustomer(ctx, stranger)
	assert.Empty(t, mine)
}

func TestQueryService_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, payment.AlwaysApprove(), nil)
	cid := f.customer(t, 1)

	place := func() Order {
		f.add(t, cid, keyboardID, 2)
		o, err := f.svc.PlaceOrder(ctx, checkout(cid))
		require.NoError(t, err)
		return o
	}

	t.Run("forward and terminal", func(t *testing.T) {
		o := place()
		_, err := f.queries.UpdateStatus(ctx, o.ID, Status("lost"))
		assert.ErrorIs(t, err, ErrInvalidStatus)

		shipped, err := f.queries.UpdateStatus(ctx, o.ID, StatusShipped)
		require.NoError(t, err)
		assert.Equal(t, StatusShipped, shipped.Status)

		again, err := f.queries.UpdateStatus(ctx, o.ID, StatusShipped)
		require.NoError(t, err)
		assert.Equal(t, StatusShipped, again.Status)

		_, err = f.queries.UpdateStatus(ctx, o.ID, StatusCancelled)
		assert.ErrorIs(t, err, ErrCannotCancel)

		_, err = f.queries.UpdateStatus(ctx, o.ID, StatusDelivered)
		require.NoError(t, err)
		_, err = f.queries.UpdateStatus(ctx, o.ID, StatusProcessing)
		assert.ErrorIs(t, err, ErrTerminalStatus)
	})

	t.Run("cancel restocks and voids", func(t *testing.T) {
		before := f.available(t, keyboardID)
		o := place()
		assert.Equal(t, before-2, f.available(t, keyboardID))

		cancelled, err := f.queries.UpdateStatus(ctx, o.ID, StatusCancelled)
		require.NoError(t, err)
		assert.Equal(t, StatusCancelled, cancelled.Status)
		assert.Equal(t, PaymentVoided, cancelled.PaymentStatus)
		assert.Equal(t, before, f.available(t, keyboardID))
		assert.ErrorIs(t, f.payments.Void(ctx, o.PaymentTxnID), payment.ErrAlreadyVoided)

		stored, err := f.queries.GetByID(ctx, Viewer{All: true}, o.ID)
		require.NoError(t, err)
		assert.Equal(t, PaymentVoided, stored.PaymentStatus)
	})

	t.Run("unknown order", func(t *testing.T) {
		_, err := f.queries.UpdateStatus(ctx, 999, StatusShipped)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
