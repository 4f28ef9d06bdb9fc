// Package payment simulates a card gateway. It validates card data, asks a
// DecisionPolicy whether to approve, and hands out transaction ids.
package payment

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Request is what the checkout passes to the gateway. Card fields are never
// logged or stored; only MaskedCard leaves this package.
type Request struct {
	Amount     decimal.Decimal
	CardNumber string
	CardHolder string
	CVV        string
	Expiry     string // MM/YY
	Reference  string
}

// Result is the recorded payment attempt.
type Result struct {
	Approved      bool   `json:"approved"`
	TransactionID string `json:"transactionId,omitempty"`
	Reason        string `json:"reason,omitempty"`
	MaskedCard    string `json:"maskedCard,omitempty"`
	Amount        string `json:"amount"`
}

const (
	ReasonInvalidCard    = "invalid card number"
	ReasonInvalidDetails = "invalid card details"
	ReasonExpired        = "card expired"
	ReasonInvalidAmount  = "invalid amount"
	ReasonDeclined       = "payment declined by issuer"
	ReasonTimeout        = "payment timed out"
)

// NormalizeCard strips the spaces and dashes people type into card fields.
func NormalizeCard(number string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, number)
}

// ValidCardNumber checks length (13 to 19 digits) and the Luhn checksum.
func ValidCardNumber(number string) bool {
	n := NormalizeCard(number)
	if len(n) < 13 || len(n) > 19 {
		return false
	}
	sum := 0
	double := false
	for i := len(n) - 1; i >= 0; i-- {
		c := n[i]
		if c < '0' || c > '9' {
			return false
		}
		d := int(c - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// Mask keeps the last four digits.
func Mask(number string) string {
	n := NormalizeCard(number)
	if len(n) < 4 {
		return "****"
	}
	return "**** **** **** " + n[len(n)-4:]
}

// Last4 returns the trailing four digits of a normalized card number.
func Last4(number string) string {
	n := NormalizeCard(number)
	if len(n) < 4 {
		return ""
	}
	return n[len(n)-4:]
}
