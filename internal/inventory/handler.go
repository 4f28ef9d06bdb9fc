package inventory

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/wichananm65/urbancart-backend/internal/apperror"
	"github.com/wichananm65/urbancart-backend/internal/auth"
)

type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

func (h *Handler) RegisterProtectedRoutes(app fiber.Router) {
	guard := auth.Require(auth.CapManageInventory)
	app.Get("/api/v1/inventory/:id<int>", guard, h.getStock)
	app.Put("/api/v1/inventory/:id<int>", guard, h.setQuantity)
	app.Post("/api/v1/inventory/:id<int>/restock", guard, h.restock)
}

type quantityRequest struct {
	Quantity *int `json:"quantity"`
}

type restockRequest struct {
	Amount int `json:"amount"`
}

func (h *Handler) getStock(c *fiber.Ctx) error {
	id, _ := strconv.Atoi(c.Params("id"))
	st, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return apperror.Respond(c, err)
	}
	return c.JSON(st)
}

func (h *Handler) setQuantity(c *fiber.Ctx) error {
	id, _ := strconv.Atoi(c.Params("id"))
	payload := new(quantityRequest)
	if err := c.BodyParser(payload); err != nil {
		return apperror.BadRequest(c, err.Error())
	}
	if payload.Quantity == nil {
		return apperror.BadRequest(c, "quantity is required")
	}

	st, err := h.service.SetQuantity(c.UserContext(), id, *payload.Quantity)
	if err != nil {
		return apperror.Respond(c, err)
	}
	return c.JSON(st)
}

func (h *Handler) restock(c *fiber.Ctx) error {
	id, _ := strconv.Atoi(c.Params("id"))
	payload := new(restockRequest)
	if err := c.BodyParser(payload); err != nil {
		return apperror.BadRequest(c, err.Error())
	}

	st, err := h.service.Restock(c.UserContext(), id, payload.Amount)
	if err != nil {
		return apperror.Respond(c, err)
	}
	return c.JSON(st)
}
