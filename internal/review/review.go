// Package review stores item reviews, one per customer and item.
package review

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/wichananm65/urbancart-backend/internal/apperror"
)

const maxBodyLength = 2000

type Review struct {
	ID           int       `json:"reviewId"`
	ItemID       int       `json:"itemId"`
	CustomerID   int       `json:"customerId"`
	ReviewerName string    `json:"reviewerName"`
	Rating       int       `json:"rating"`
	Body         string    `json:"body"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Input struct {
	Rating int    `json:"rating"`
	Body   string `json:"body"`
}

func (in Input) Validate() error {
	fields := map[string]string{}
	if in.Rating < 1 || in.Rating > 5 {
		fields["rating"] = "must be between 1 and 5"
	}
	if utf8.RuneCountInString(strings.TrimSpace(in.Body)) > maxBodyLength {
		fields["body"] = "is too long"
	}
	if len(fields) == 0 {
		return nil
	}
	err := apperror.Validation("invalid review")
	err.Details = map[string]any{"fields": fields}
	return err
}

// reviewerName hides customers that never filled in their name.
func reviewerName(name string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return "Verified buyer"
}
