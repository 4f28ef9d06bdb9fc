package review

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/wichananm65/urbancart-backend/internal/apperror"
	"github.com/wichananm65/urbancart-backend/internal/auth"
)

type CustomerResolver interface {
	CustomerIDFor(ctx context.Context, p auth.Principal) (int, error)
}

type Handler struct {
	service   *Service
	customers CustomerResolver
}

func NewHandler(s *Service, customers CustomerResolver) *Handler {
	return &Handler{service: s, customers: customers}
}

func (h *Handler) RegisterPublicRoutes(app fiber.Router) {
	app.Get("/api/v1/items/:id<int>/reviews", h.listReviews)
}

func (h *Handler) RegisterProtectedRoutes(app fiber.Router) {
	app.Post("/api/v1/items/:id<int>/reviews", auth.Require(auth.CapWriteReviews), h.upsertReview)
}

func (h *Handler) listReviews(c *fiber.Ctx) error {
	itemID, _ := strconv.Atoi(c.Params("id"))
	reviews, err := h.service.ListByItem(c.UserContext(), itemID)
	if err != nil {
		return apperror.Respond(c, err)
	}
	return c.JSON(reviews)
}

func (h *Handler) upsertReview(c *fiber.Ctx) error {
	p, err := auth.FromCtx(c)
	if err != nil {
		return apperror.Respond(c, err)
	}
	payload := new(Input)
	if err := c.BodyParser(payload); err != nil {
		return apperror.BadRequest(c, err.Error())
	}
	customerID, err := h.customers.CustomerIDFor(c.UserContext(), p)
	if err != nil {
		return apperror.Respond(c, err)
	}

	itemID, _ := strconv.Atoi(c.Params("id"))
	rv, err := h.service.Upsert(c.UserContext(), itemID, customerID, *payload)
	if err != nil {
		return apperror.Respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(rv)
}
