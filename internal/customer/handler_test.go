package customer

import (
	"encoding/json"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
)

func makeAppWithCustomerHandler(h *Handler) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if v := c.Get("X-User-ID"); v != "" {
			id, err := strconv.Atoi(v)
			if err == nil {
				claims := jwt.MapClaims{"user_id": id, "email": "u" + v + "@example.com", "role": c.Get("X-Role")}
				c.Locals("user", &jwt.Token{Claims: claims})
			}
		}
		return c.Next()
	})
	h.RegisterProtectedRoutes(app)
	return app
}

func TestProfileAndAdminRoutes(t *testing.T) {
	svc, _, _ := newTestService()
	app := makeAppWithCustomerHandler(NewHandler(svc))

	res, _ := app.Test(httptest.NewRequest("GET", "/api/v1/profile", nil))
	if res.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.StatusCode)
	}

	req := httptest.NewRequest("PUT", "/api/v1/profile", strings.NewReader(`{"givenName":"Jenny"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "7")
	res, _ = app.Test(req)
	if res.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}
	var c Customer
	json.NewDecoder(res.Body).Decode(&c)
	if c.GivenName != "Jenny" || c.Email != "u7@example.com" {
		t.Fatalf("unexpected profile %+v", c)
	}

	req = httptest.NewRequest("GET", "/api/v1/customers", nil)
	req.Header.Set("X-User-ID", "7")
	res, _ = app.Test(req)
	if res.StatusCode != fiber.StatusForbidden {
		t.Fatalf("expected 403 for customer, got %d", res.StatusCode)
	}

	req = httptest.NewRequest("POST", "/api/v1/customers/"+strconv.Itoa(c.ID)+"/deactivate", nil)
	req.Header.Set("X-User-ID", "1")
	req.Header.Set("X-Role", "admin")
	res, _ = app.Test(req)
	if res.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 for admin deactivate, got %d", res.StatusCode)
	}
	json.NewDecoder(res.Body).Decode(&c)
	if c.Active {
		t.Fatalf("expected customer to be inactive")
	}

	req = httptest.NewRequest("POST", "/api/v1/customers/999/activate", nil)
	req.Header.Set("X-User-ID", "1")
	req.Header.Set("X-Role", "admin")
	res, _ = app.Test(req)
	if res.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.StatusCode)
	}
}
