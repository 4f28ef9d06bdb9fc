package catalog

import (
	"encoding/json"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
)

func makeAppWithCatalogHandler(h *Handler) *fiber.App {
	app := fiber.New()
	h.RegisterPublicRoutes(app)
	app.Use(func(c *fiber.Ctx) error {
		if v := c.Get("X-User-ID"); v != "" {
			id, err := strconv.Atoi(v)
			if err == nil {
				claims := jwt.MapClaims{"user_id": id, "role": c.Get("X-Role")}
				c.Locals("user", &jwt.Token{Claims: claims})
			}
		}
		return c.Next()
	})
	h.RegisterProtectedRoutes(app)
	return app
}

func TestCatalogRoutes_Public(t *testing.T) {
	app := makeAppWithCatalogHandler(NewHandler(NewService(NewInMemoryRepository(seedItems()))))

	res, _ := app.Test(httptest.NewRequest("GET", "/api/v1/items?category=Displays", nil))
	if res.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}
	var items []Item
	json.NewDecoder(res.Body).Decode(&items)
	if len(items) != 1 || items[0].SKU != "TECH003" {
		t.Fatalf("unexpected items %+v", items)
	}

	res, _ = app.Test(httptest.NewRequest("GET", "/api/v1/items/sku/TECH001", nil))
	if res.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 for sku lookup, got %d", res.StatusCode)
	}

	res, _ = app.Test(httptest.NewRequest("GET", "/api/v1/items/42", nil))
	if res.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.StatusCode)
	}
}

func TestCatalogRoutes_AdminOnlyWrites(t *testing.T) {
	app := makeAppWithCatalogHandler(NewHandler(NewService(NewInMemoryRepository(seedItems()))))
	body := `{"sku":"TECH010","name":"Laptop Stand","price":"39.90","quantity":3}`

	req := httptest.NewRequest("POST", "/api/v1/items", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res, _ := app.Test(req)
	if res.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", res.StatusCode)
	}

	req = httptest.NewRequest("POST", "/api/v1/items", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "5")
	res, _ = app.Test(req)
	if res.StatusCode != fiber.StatusForbidden {
		t.Fatalf("expected 403 for customer, got %d", res.StatusCode)
	}

	req = httptest.NewRequest("POST", "/api/v1/items", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "1")
	req.Header.Set("X-Role", "admin")
	res, _ = app.Test(req)
	if res.StatusCode != fiber.StatusCreated {
		t.Fatalf("expected 201 for admin, got %d", res.StatusCode)
	}
	var created Item
	json.NewDecoder(res.Body).Decode(&created)
	if created.Price.String() != "39.9" || created.Quantity != 3 {
		t.Fatalf("unexpected created item %+v", created)
	}
}
