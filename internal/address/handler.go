package address

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/wichananm65/urbancart-backend/internal/apperror"
	"github.com/wichananm65/urbancart-backend/internal/auth"
)

// CustomerResolver maps the authenticated user to their customer profile id.
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

func (h *Handler) RegisterProtectedRoutes(app fiber.Router) {
	guard := auth.Require(auth.CapManageAddresses)
	app.Get("/api/v1/addresses", guard, h.listAddresses)
	app.Post("/api/v1/addresses", guard, h.createAddress)
	app.Get("/api/v1/addresses/:id<int>", guard, h.getAddress)
	app.Put("/api/v1/addresses/:id<int>", guard, h.updateAddress)
	app.Delete("/api/v1/addresses/:id<int>", guard, h.deleteAddress)
}

func (h *Handler) customerID(c *fiber.Ctx) (int, error) {
	p, err := auth.FromCtx(c)
	if err != nil {
		return 0, err
	}
	return h.customers.CustomerIDFor(c.UserContext(), p)
}

func (h *Handler) listAddresses(c *fiber.Ctx) error {
	customerID, err := h.customerID(c)
	if err != nil {
		return apperror.Respond(c, err)
	}
	addrs, err := h.service.List(c.UserContext(), customerID)
	if err != nil {
		return apperror.Respond(c, err)
	}
	return c.JSON(addrs)
}

func (h *Handler) createAddress(c *fiber.Ctx) error {
	customerID, err := h.customerID(c)
	if err != nil {
		return apperror.Respond(c, err)
	}
	payload := new(Input)
	if err := c.BodyParser(payload); err != nil {
		return apperror.BadRequest(c, err.Error())
	}
	created, err := h.service.Create(c.UserContext(), customerID, *payload)
	if err != nil {
		return apperror.Respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *Handler) getAddress(c *fiber.Ctx) error {
	customerID, err := h.customerID(c)
	if err != nil {
		return apperror.Respond(c, err)
	}
	id, _ := strconv.Atoi(c.Params("id"))
	a, err := h.service.FindForCustomer(c.UserContext(), customerID, id)
	if err != nil {
		return apperror.Respond(c, err)
	}
	return c.JSON(a)
}

func (h *Handler) updateAddress(c *fiber.Ctx) error {
	customerID, err := h.customerID(c)
	if err != nil {
		return apperror.Respond(c, err)
	}
	id, _ := strconv.Atoi(c.Params("id"))
	payload := new(Input)
	if err := c.BodyParser(payload); err != nil {
		return apperror.BadRequest(c, err.Error())
	}
	updated, err := h.service.Update(c.UserContext(), customerID, id, *payload)
	if err != nil {
		return apperror.Respond(c, err)
	}
	return c.JSON(updated)
}

func (h *Handler) deleteAddress(c *fiber.Ctx) error {
	customerID, err := h.customerID(c)
	if err != nil {
		return apperror.Respond(c, err)
	}
	id, _ := strconv.Atoi(c.Params("id"))
	if err := h.service.Delete(c.UserContext(), customerID, id); err != nil {
		return apperror.Respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
