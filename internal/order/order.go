package order

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/wichananm65/urbancart-backend/internal/address"
)

type Status string

const (
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Terminal statuses cannot be left.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentApproved PaymentStatus = "approved"
	PaymentVoided   PaymentStatus = "voided"
)

// from lists the payment statuses a move to ps may start from.
func (ps PaymentStatus) from() []PaymentStatus {
	switch ps {
	case PaymentApproved:
		return []PaymentStatus{PaymentPending}
	case PaymentVoided:
		return []PaymentStatus{PaymentPending, PaymentApproved}
	default:
		return nil
	}
}

func (ps PaymentStatus) canBecome(to PaymentStatus) bool {
	for _, f := range to.from() {
		if f == ps {
			return true
		}
	}
	return false
}

// AddressSnapshot is the address as it was when the order was placed.
type AddressSnapshot struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	Province   string `json:"province,omitempty"`
	Country    string `json:"country"`
	PostalCode string `json:"postalCode"`
	Phone      string `json:"phone,omitempty"`
}

func snapshotOf(a address.Address) AddressSnapshot {
	return AddressSnapshot{
		Street:     a.Street,
		City:       a.City,
		Province:   a.Province,
		Country:    a.Country,
		PostalCode: a.PostalCode,
		Phone:      a.Phone,
	}
}

// Line carries the price captured at purchase time.
type Line struct {
	ItemID    int             `json:"itemId"`
	ItemName  string          `json:"itemName"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	LineTotal decimal.Decimal `json:"lineTotal"`
}

type Order struct {
	ID                int             `json:"orderId"`
	Number            string          `json:"orderNumber"`
	CustomerID        int             `json:"customerId"`
	CustomerName      string          `json:"customerName,omitempty"`
	CustomerEmail     string          `json:"customerEmail,omitempty"`
	ShippingAddressID int             `json:"shippingAddressId"`
	BillingAddressID  int             `json:"billingAddressId"`
	Shipping          AddressSnapshot `json:"shippingAddress"`
	Billing           AddressSnapshot `json:"billingAddress"`
	Total             decimal.Decimal `json:"totalAmount"`
	Status            Status          `json:"status"`
	PaymentStatus     PaymentStatus   `json:"paymentStatus"`
	PaymentTxnID      string          `json:"paymentTransactionId,omitempty"`
	CardLast4         string          `json:"cardLast4,omitempty"`
	Lines             []Line          `json:"lines"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// Draft is everything the commit step persists in one transaction. An address
// with ID 0 is new and gets inserted alongside the order.
type Draft struct {
	Number                string
	CustomerID            int
	Shipping              address.Address
	Billing               address.Address
	BillingSameAsShipping bool
	Lines                 []Line
	Total                 decimal.Decimal
	PaymentTxnID          string
	CardLast4             string
}
