package customer

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
	app.Get("/api/v1/profile", h.getProfile)
	app.Put("/api/v1/profile", h.updateProfile)
	app.Patch("/api/v1/profile", h.updateProfile)

	admin := auth.Require(auth.CapManageCustomers)
	app.Get("/api/v1/customers", admin, h.listCustomers)
	app.Get("/api/v1/customers/:id<int>", admin, h.getCustomer)
	app.Post("/api/v1/customers/:id<int>/deactivate", admin, h.setActive(false))
	app.Post("/api/v1/customers/:id<int>/activate", admin, h.setActive(true))
}

func (h *Handler) getProfile(c *fiber.Ctx) error {
	p, err := auth.FromCtx(c)
	if err != nil {
		return apperror.Respond(c, err)
	}
	cust, err := h.service.GetOrCreateForUser(c.UserContext(), p)
	if err != nil {
		return apperror.Respond(c, err)
	}
	return c.JSON(cust)
}

func (h *Handler) updateProfile(c *fiber.Ctx) error {
	p, err := auth.FromCtx(c)
	if err != nil {
		return apperror.Respond(c, err)
	}
	var payload ProfileUpdate
	if err := c.BodyParser(&payload); err != nil {
		return apperror.BadRequest(c, err.Error())
	}
	cust, err := h.service.GetOrCreateForUser(c.UserContext(), p)
	if err != nil {
		return apperror.Respond(c, err)
	}
	updated, err := h.service.UpdateProfile(c.UserContext(), cust.ID, payload)
	if err != nil {
		return apperror.Respond(c, err)
	}
	return c.JSON(updated)
}

func (h *Handler) listCustomers(c *fiber.Ctx) error {
	list, err := h.service.List(c.UserContext())
	if err != nil {
		return apperror.Respond(c, err)
	}
	return c.JSON(list)
}

func (h *Handler) getCustomer(c *fiber.Ctx) error {
	id, _ := strconv.Atoi(c.Params("id"))
	cust, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return apperror.Respond(c, err)
	}
	return c.JSON(cust)
}

func (h *Handler) setActive(active bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, _ := strconv.Atoi(c.Params("id"))
		cust, err := h.service.SetActive(c.UserContext(), id, active)
		if err != nil {
			return apperror.Respond(c, err)
		}
		return c.JSON(cust)
	}
}
