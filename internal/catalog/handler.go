package catalog

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/wichananm65/urbancart-backend/internal/apperror"
	"github.com/wichananm65/urbancart-backend/internal/auth"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterPublicRoutes(app fiber.Router) {
	app.Get("/api/v1/items", h.listItems)
	app.Get("/api/v1/items/sku/:sku", h.getItemBySKU)
	app.Get("/api/v1/items/:id<int>", h.getItem)
	app.Get("/api/v1/categories", h.listCategories)
}

func (h *Handler) RegisterProtectedRoutes(app fiber.Router) {
	guard := auth.Require(auth.CapManageCatalog)
	app.Post("/api/v1/items", guard, h.createItem)
	app.Put("/api/v1/items/:id<int>", guard, h.updateItem)
	app.Delete("/api/v1/items/:id<int>", guard, h.deleteItem)
}

func (h *Handler) listItems(c *fiber.Ctx) error {
	f := Filter{
		Category: c.Query("category"),
		Brand:    c.Query("brand"),
		Search:   c.Query("q"),
		InStock:  c.QueryBool("inStock", false),
		Sort:     Sort(c.Query("sort")),
	}
	items, err := h.service.List(c.UserContext(), f)
	if err != nil {
		return apperror.Respond(c, err)
	}
	return c.JSON(items)
}

func (h *Handler) getItem(c *fiber.Ctx) error {
	id, _ := strconv.Atoi(c.Params("id"))
	it, err := h.service.GetItem(c.UserContext(), id)
	if err != nil {
		return apperror.Respond(c, err)
	}
	return c.JSON(it)
}

func (h *Handler) getItemBySKU(c *fiber.Ctx) error {
	it, err := h.service.GetBySKU(c.UserContext(), c.Params("sku"))
	if err != nil {
		return apperror.Respond(c, err)
	}
	return c.JSON(it)
}

func (h *Handler) listCategories(c *fiber.Ctx) error {
	cats, err := h.service.Categories(c.UserContext())
	if err != nil {
		return apperror.Respond(c, err)
	}
	return c.JSON(cats)
}

func (h *Handler) createItem(c *fiber.Ctx) error {
	it := new(Item)
	if err := c.BodyParser(it); err != nil {
		return apperror.BadRequest(c, err.Error())
	}
	created, err := h.service.Create(c.UserContext(), *it)
	if err != nil {
		return apperror.Respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *Handler) updateItem(c *fiber.Ctx) error {
	id, _ := strconv.Atoi(c.Params("id"))
	it := new(Item)
	if err := c.BodyParser(it); err != nil {
		return apperror.BadRequest(c, err.Error())
	}
	updated, err := h.service.Update(c.UserContext(), id, *it)
	if err != nil {
		return apperror.Respond(c, err)
	}
	return c.JSON(updated)
}

func (h *Handler) deleteItem(c *fiber.Ctx) error {
	id, _ := strconv.Atoi(c.Params("id"))
	if err := h.service.Delete(c.UserContext(), id); err != nil {
		return apperror.Respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
