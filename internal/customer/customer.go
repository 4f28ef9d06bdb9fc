package customer

import (
	"strings"
	"time"
)

type Customer struct {
	ID                int       `json:"customerId"`
	UserID            int       `json:"userId"`
	Email             string    `json:"email"`
	GivenName         string    `json:"givenName"`
	FamilyName        string    `json:"familyName"`
	Phone             string    `json:"phone"`
	ShippingAddressID *int      `json:"shippingAddressId,omitempty"`
	BillingAddressID  *int      `json:"billingAddressId,omitempty"`
	Active            bool      `json:"active"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

func (c Customer) FullName() string {
	return strings.TrimSpace(c.GivenName + " " + c.FamilyName)
}

// ProfileUpdate carries a partial update; nil fields are left untouched.
type ProfileUpdate struct {
	GivenName         *string `json:"givenName,omitempty"`
	FamilyName        *string `json:"familyName,omitempty"`
	Phone             *string `json:"phone,omitempty"`
	ShippingAddressID *int    `json:"shippingAddressId,omitempty"`
	BillingAddressID  *int    `json:"billingAddressId,omitempty"`
}

func (u ProfileUpdate) apply(c Customer) Customer {
	if u.GivenName != nil {
		c.GivenName = strings.TrimSpace(*u.GivenName)
	}
	if u.FamilyName != nil {
		c.FamilyName = strings.TrimSpace(*u.FamilyName)
	}
	if u.Phone != nil {
		c.Phone = strings.TrimSpace(*u.Phone)
	}
	if u.ShippingAddressID != nil {
		c.ShippingAddressID = u.ShippingAddressID
	}
	if u.BillingAddressID != nil {
		c.BillingAddressID = u.BillingAddressID
	}
	return c
}
