package user

import (
	"net/mail"
	"strings"
	"time"

	"github.com/wichananm65/urbancart-backend/internal/auth"
)

type User struct {
	ID        int       `json:"userId"`
	Email     string    `json:"email"`
	Password  string    `json:"password,omitempty"`
	Role      auth.Role `json:"role"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

func (u User) Principal() auth.Principal {
	return auth.Principal{UserID: u.ID, Email: u.Email, Role: u.Role}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func sanitizeUser(u User) User {
	u.Password = ""
	return u
}

func authRole(s string) auth.Role {
	r := auth.Role(s)
	if !r.Valid() {
		return auth.RoleCustomer
	}
	return r
}
