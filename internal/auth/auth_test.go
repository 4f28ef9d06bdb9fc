package auth

import (
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
)

func makeApp(need Capability) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if v := c.Get("X-User-ID"); v != "" {
			id, err := strconv.Atoi(v)
			if err == nil {
				claims := jwt.MapClaims{"user_id": id}
				if role := c.Get("X-Role"); role != "" {
					claims["role"] = role
				}
				c.Locals("user", &jwt.Token{Claims: claims})
			}
		}
		return c.Next()
	})
	app.Get("/guarded", Require(need), func(c *fiber.Ctx) error {
		p, err := FromCtx(c)
		if err != nil {
			return err
		}
		return c.SendString(string(p.Role))
	})
	return app
}

func TestRequire(t *testing.T) {
	cases := []struct {
		name   string
		need   Capability
		userID string
		role   string
		want   int
	}{
		{"anonymous", CapPlaceOrder, "", "", fiber.StatusUnauthorized},
		{"customer places order", CapPlaceOrder, "3", "", fiber.StatusOK},
		{"customer cannot list all orders", CapViewAllOrders, "3", "customer", fiber.StatusForbidden},
		{"admin lists all orders", CapViewAllOrders, "1", "admin", fiber.StatusOK},
		{"admin cannot place orders", CapPlaceOrder, "1", "admin", fiber.StatusForbidden},
		{"unknown role falls back to customer", CapManageCatalog, "3", "root", fiber.StatusForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/guarded", nil)
			if tc.userID != "" {
				req.Header.Set("X-User-ID", tc.userID)
			}
			if tc.role != "" {
				req.Header.Set("X-Role", tc.role)
			}
			res, err := makeApp(tc.need).Test(req)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			if res.StatusCode != tc.want {
				t.Fatalf("expected %d got %d", tc.want, res.StatusCode)
			}
		})
	}
}

func TestIssueToken_RoundTrip(t *testing.T) {
	secret := []byte("test-secret")
	signed, err := IssueToken(secret, Principal{UserID: 12, Email: "a@b.co", Role: RoleAdmin}, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	tok, err := jwt.Parse(signed, func(*jwt.Token) (interface{}, error) { return secret, nil })
	if err != nil || !tok.Valid {
		t.Fatalf("token did not verify: %v", err)
	}

	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		c.Locals("user", tok)
		p, err := FromCtx(c)
		if err != nil {
			return err
		}
		if p.UserID != 12 || p.Role != RoleAdmin || p.Email != "a@b.co" {
			t.Errorf("unexpected principal %+v", p)
		}
		return nil
	})
	if _, err := app.Test(httptest.NewRequest("GET", "/", nil)); err != nil {
		t.Fatalf("request failed: %v", err)
	}
}
