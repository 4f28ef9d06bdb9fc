// Package auth turns the verified JWT on a request into a Principal and
// answers capability questions about it.
package auth

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/wichananm65/urbancart-backend/internal/apperror"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleAdmin
}

type Capability string

const (
	CapPlaceOrder      Capability = "order:place"
	CapViewOwnOrders   Capability = "order:read:own"
	CapViewAllOrders   Capability = "order:read:all"
	CapManageOrders    Capability = "order:manage"
	CapManageCart      Capability = "cart:manage"
	CapManageAddresses Capability = "address:manage"
	CapManageCatalog   Capability = "catalog:manage"
	CapManageInventory Capability = "inventory:manage"
	CapManageCustomers Capability = "customer:manage"
	CapWriteReviews    Capability = "review:write"
)

var policy = map[Role]map[Capability]bool{
	RoleCustomer: {
		CapPlaceOrder:      true,
		CapViewOwnOrders:   true,
		CapManageCart:      true,
		CapManageAddresses: true,
		CapWriteReviews:    true,
	},
	RoleAdmin: {
		CapViewOwnOrders:   true,
		CapViewAllOrders:   true,
		CapManageOrders:    true,
		CapManageCatalog:   true,
		CapManageInventory: true,
		CapManageCustomers: true,
	},
}

// Principal is the authenticated caller.
type Principal struct {
	UserID int
	Email  string
	Role   Role
}

func (p Principal) Can(c Capability) bool {
	return policy[p.Role][c]
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

const localsKey = "principal"

// FromCtx reads the principal from the jwt.Token that jwtware stores in
// c.Locals("user"). Tokens without a role claim are treated as customers.
func FromCtx(c *fiber.Ctx) (Principal, error) {
	if p, ok := c.Locals(localsKey).(Principal); ok {
		return p, nil
	}

	tok, ok := c.Locals("user").(*jwt.Token)
	if !ok || tok == nil {
		return Principal{}, apperror.Unauthorized("unauthorized")
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Principal{}, apperror.Unauthorized("unauthorized")
	}

	id, ok := intClaim(claims["user_id"])
	if !ok || id <= 0 {
		return Principal{}, apperror.Unauthorized("unauthorized")
	}

	p := Principal{UserID: id, Role: RoleCustomer}
	if email, ok := claims["email"].(string); ok {
		p.Email = email
	}
	if role, ok := claims["role"].(string); ok && Role(role).Valid() {
		p.Role = Role(role)
	}
	return p, nil
}

func intClaim(raw any) (int, bool) {
	switch v := raw.(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case int64:
		return int(v), true
	case string:
		id, err := strconv.Atoi(v)
		return id, err == nil
	default:
		return 0, false
	}
}

// Require rejects callers that are not authenticated (401) or lack the
// capability (403). On success the principal is cached in Locals.
func Require(need Capability) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := FromCtx(c)
		if err != nil {
			return apperror.Respond(c, err)
		}
		if !p.Can(need) {
			return apperror.Respond(c, apperror.Forbidden("missing capability "+string(need)))
		}
		c.Locals(localsKey, p)
		return c.Next()
	}
}

// IssueToken signs an HS256 token carrying user_id, email and role.
func IssueToken(secret []byte, p Principal, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"user_id": p.UserID,
		"email":   p.Email,
		"role":    string(p.Role),
		"exp":     time.Now().Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
