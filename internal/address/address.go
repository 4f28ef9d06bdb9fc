package address

import (
	"strings"
	"time"

	"github.com/wichananm65/urbancart-backend/internal/apperror"
)

type Address struct {
	ID         int       `json:"addressId"`
	CustomerID int       `json:"customerId"`
	Street     string    `json:"street"`
	City       string    `json:"city"`
	Province   string    `json:"province"`
	Country    string    `json:"country"`
	PostalCode string    `json:"postalCode"`
	Phone      string    `json:"phone"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Input is the user-editable part of an address.
type Input struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	Province   string `json:"province"`
	Country    string `json:"country"`
	PostalCode string `json:"postalCode"`
	Phone      string `json:"phone"`
}

func (in Input) Normalize() Input {
	return Input{
		Street:     strings.TrimSpace(in.Street),
		City:       strings.TrimSpace(in.City),
		Province:   strings.TrimSpace(in.Province),
		Country:    strings.TrimSpace(in.Country),
		PostalCode: strings.TrimSpace(in.PostalCode),
		Phone:      strings.TrimSpace(in.Phone),
	}
}

// Validate requires street, city, country and postal code.
func (in Input) Validate() error {
	in = in.Normalize()
	fields := map[string]string{}
	if in.Street == "" {
		fields["street"] = "street is required"
	}
	if in.City == "" {
		fields["city"] = "city is required"
	}
	if in.Country == "" {
		fields["country"] = "country is required"
	}
	if in.PostalCode == "" {
		fields["postalCode"] = "postalCode is required"
	}
	if len(fields) == 0 {
		return nil
	}
	err := apperror.Validation("invalid address")
	err.Details = map[string]any{"fields": fields}
	return err
}

func (in Input) ToAddress(customerID int) Address {
	in = in.Normalize()
	return Address{
		CustomerID: customerID,
		Street:     in.Street,
		City:       in.City,
		Province:   in.Province,
		Country:    in.Country,
		PostalCode: in.PostalCode,
		Phone:      in.Phone,
	}
}
