package order

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wichananm65/urbancart-backend/internal/address"
	"github.com/wichananm65/urbancart-backend/internal/apperror"
	"github.com/wichananm65/urbancart-backend/internal/customer"
	"github.com/wichananm65/urbancart-backend/internal/inventory"
)

var (
	ErrNotFound        = apperror.NotFound("order not found")
	ErrStatusChanged   = apperror.Conflict("order status changed concurrently")
	ErrPaymentSettled  = apperror.Conflict("order payment status no longer allows this change")
	ErrInvalidStatus   = apperror.Validation("unknown order status")
	ErrTerminalStatus  = apperror.Conflict("order is already in a final status")
	ErrCannotCancel    = apperror.Conflict("order can no longer be cancelled")
	ErrDuplicateNumber = apperror.Conflict("order number already exists")
)

type Repository interface {
	// Create persists new addresses, the header, the lines and the stock
	// decrements atomically. A stock shortfall rolls everything back.
	Create(ctx context.Context, d Draft) (Order, error)
	GetByID(ctx context.Context, id int) (Order, error)
	GetByNumber(ctx context.Context, number string) (Order, error)
	// ListByCustomer and ListAll return newest first.
	ListByCustomer(ctx context.Context, customerID int) ([]Order, error)
	ListAll(ctx context.Context) ([]Order, error)
	// UpdateStatus only applies when the current status is still from.
	UpdateStatus(ctx context.Context, id int, from, to Status) (Order, error)
	// SetPaymentStatus moves pending to approved, and pending or approved to
	// voided. Any other current status yields ErrPaymentSettled.
	SetPaymentStatus(ctx context.Context, id int, ps PaymentStatus) error
}

// CustomerDirectory supplies names for the admin listing.
type CustomerDirectory interface {
	Get(ctx context.Context, id int) (customer.Customer, error)
}

// InMemoryRepository commits against the in-memory ledger and address book.
type InMemoryRepository struct {
	mu        sync.RWMutex
	orders    []Order
	nextID    int
	ledger    inventory.Ledger
	addresses address.Repository
	customers CustomerDirectory
}

func NewInMemoryRepository(ledger inventory.Ledger, addresses address.Repository, customers CustomerDirectory) *InMemoryRepository {
	return &InMemoryRepository{nextID: 1, ledger: ledger, addresses: addresses, customers: customers}
}

func decrementsOf(lines []Line) []inventory.Decrement {
	out := make([]inventory.Decrement, 0, len(lines))
	for _, l := range lines {
		out = append(out, inventory.Decrement{ItemID: l.ItemID, Amount: l.Quantity})
	}
	return out
}

func (r *InMemoryRepository) Create(ctx context.Context, d Draft) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, o := range r.orders {
		if o.Number == d.Number {
			return Order{}, ErrDuplicateNumber
		}
	}

	decs := decrementsOf(d.Lines)
	if err := r.ledger.DecrementBatch(ctx, decs); err != nil {
		return Order{}, err
	}

	shipping, billing, err := r.saveAddresses(ctx, d)
	if err != nil {
		for _, dec := range decs {
			r.ledger.Restock(ctx, dec.ItemID, dec.Amount)
		}
		return Order{}, err
	}

	now := time.Now().UTC()
	o := Order{
		ID:                r.nextID,
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
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	r.nextID++
	r.orders = append(r.orders, o)
	return o, nil
}

func (r *InMemoryRepository) saveAddresses(ctx context.Context, d Draft) (address.Address, address.Address, error) {
	shipping := d.Shipping
	if shipping.ID == 0 {
		created, err := r.addresses.Create(ctx, shipping)
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
		created, err := r.addresses.Create(ctx, billing)
		if err != nil {
			return address.Address{}, address.Address{}, err
		}
		billing = created
	}
	return shipping, billing, nil
}

func (r *InMemoryRepository) GetByID(_ context.Context, id int) (Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, o := range r.orders {
		if o.ID == id {
			return o, nil
		}
	}
	return Order{}, ErrNotFound
}

func (r *InMemoryRepository) GetByNumber(_ context.Context, number string) (Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, o := range r.orders {
		if o.Number == number {
			return o, nil
		}
	}
	return Order{}, ErrNotFound
}

func newestFirst(orders []Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID > orders[j].ID
		}
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}

func (r *InMemoryRepository) ListByCustomer(_ context.Context, customerID int) ([]Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Order, 0)
	for _, o := range r.orders {
		if o.CustomerID == customerID {
			out = append(out, o)
		}
	}
	newestFirst(out)
	return out, nil
}

func (r *InMemoryRepository) ListAll(ctx context.Context) ([]Order, error) {
	r.mu.RLock()
	out := append([]Order(nil), r.orders...)
	r.mu.RUnlock()

	if r.customers != nil {
		for i := range out {
			if c, err := r.customers.Get(ctx, out[i].CustomerID); err == nil {
				out[i].CustomerName = c.FullName()
				out[i].CustomerEmail = c.Email
			}
		}
	}
	newestFirst(out)
	return out, nil
}

func (r *InMemoryRepository) UpdateStatus(_ context.Context, id int, from, to Status) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, o := range r.orders {
		if o.ID != id {
			continue
		}
		if o.Status != from {
			return Order{}, ErrStatusChanged
		}
		o.Status = to
		o.UpdatedAt = time.Now().UTC()
		r.orders[i] = o
		return o, nil
	}
	return Order{}, ErrNotFound
}

func (r *InMemoryRepository) SetPaymentStatus(_ context.Context, id int, ps PaymentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.orders {
		if r.orders[i].ID == id {
			if !r.orders[i].PaymentStatus.canBecome(ps) {
				return ErrPaymentSettled
			}
			r.orders[i].PaymentStatus = ps
			r.orders[i].UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return ErrNotFound
}
