package cart

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/wichananm65/urbancart-backend/internal/apperror"
	"github.com/wichananm65/urbancart-backend/internal/auth"
)

const SessionHeader = "X-Cart-Session"

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

type lineRequest struct {
	ItemID   int `json:"itemId"`
	Quantity int `json:"quantity"`
}

type mergeRequest struct {
	SessionID string        `json:"sessionId"`
	Lines     []lineRequest `json:"lines"`
}

func (h *Handler) RegisterPublicRoutes(app fiber.Router) {
	app.Post("/api/v1/guest-cart/session", h.newGuestSession)
	app.Get("/api/v1/guest-cart", h.getGuestCart)
	app.Post("/api/v1/guest-cart/items", h.addGuestItem)
	app.Put("/api/v1/guest-cart/items/:itemId<int>", h.updateGuestItem)
	app.Delete("/api/v1/guest-cart/items/:itemId<int>", h.removeGuestItem)
	app.Delete("/api/v1/guest-cart", h.clearGuestCart)
}

func (h *Handler) RegisterProtectedRoutes(app fiber.Router) {
	guard := auth.Require(auth.CapManageCart)
	app.Get("/api/v1/cart", guard, h.getCart)
	app.Post("/api/v1/cart/items", guard, h.addItem)
	app.Put("/api/v1/cart/items/:itemId<int>", guard, h.updateItem)
	app.Delete("/api/v1/cart/items/:itemId<int>", guard, h.removeItem)
	app.Delete("/api/v1/cart", guard, h.clearCart)
	app.Post("/api/v1/cart/merge", guard, h.merge)
}

func (h *Handler) customerID(c *fiber.Ctx) (int, error) {
	p, err := auth.FromCtx(c)
	if err != nil {
		return 0, err
	}
	return h.customers.CustomerIDFor(c.UserContext(), p)
}

func (h *Handler) getCart(c *fiber.Ctx) error {
	customerID, err := h.customerID(c)
	if err != nil {
		return apperror.Respond(c, err)
	}
	v, err := h.service.View(c.UserContext(), customerID)
	if err != nil {
		return apperror.Respond(c, err)
	}
	return c.JSON(v)
}

func (h *Handler) addItem(c *fiber.Ctx) error {
	customerID, err := h.customerID(c)
	if err != nil {
		return apperror.Respond(c, err)
	}
	payload := new(lineRequest)
	if err := c.BodyParser(payload); err != nil {
		return apperror.BadRequest(c, err.Error())
	}
	if payload.ItemID <= 0 {
		return apperror.BadRequest(c, "invalid itemId")
	}
	if _, err := h.service.Add(c.UserContext(), customerID, payload.ItemID, payload.Quantity); err != nil {
		return apperror.Respond(c, err)
	}
	return h.getCart(c)
}

func (h *Handler) updateItem(c *fiber.Ctx) error {
	customerID, err := h.customerID(c)
	if err != nil {
		return apperror.Respond(c, err)
	}
	itemID, _ := strconv.Atoi(c.Params("itemId"))
	payload := new(lineRequest)
	if err := c.BodyParser(payload); err != nil {
		return apperror.BadRequest(c, err.Error())
	}
	if err := h.service.Update(c.UserContext(), customerID, itemID, payload.Quantity); err != nil {
		return apperror.Respond(c, err)
	}
	return h.getCart(c)
}

func (h *Handler) removeItem(c *fiber.Ctx) error {
	customerID, err := h.customerID(c)
	if err != nil {
		return apperror.Respond(c, err)
	}
	itemID, _ := strconv.Atoi(c.Params("itemId"))
	if err := h.service.Remove(c.UserContext(), customerID, itemID); err != nil {
		return apperror.Respond(c, err)
	}
	return h.getCart(c)
}

func (h *Handler) clearCart(c *fiber.Ctx) error {
	customerID, err := h.customerID(c)
	if err != nil {
		return apperror.Respond(c, err)
	}
	if err := h.service.Clear(c.UserContext(), customerID); err != nil {
		return apperror.Respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) merge(c *fiber.Ctx) error {
	customerID, err := h.customerID(c)
	if err != nil {
		return apperror.Respond(c, err)
	}
	payload := new(mergeRequest)
	if err := c.BodyParser(payload); err != nil {
		return apperror.BadRequest(c, err.Error())
	}
	if payload.SessionID == "" {
		payload.SessionID = c.Get(SessionHeader)
	}
	extra := make([]Line, 0, len(payload.Lines))
	for _, l := range payload.Lines {
		extra = append(extra, Line{ItemID: l.ItemID, Quantity: l.Quantity})
	}
	res, err := h.service.MergeGuestSession(c.UserContext(), customerID, payload.SessionID, extra)
	if err != nil {
		return apperror.Respond(c, err)
	}
	v, err := h.service.View(c.UserContext(), customerID)
	if err != nil {
		return apperror.Respond(c, err)
	}
	return c.JSON(fiber.Map{"merge": res, "cart": v})
}

func (h *Handler) newGuestSession(c *fiber.Ctx) error {
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"sessionId": NewSessionID()})
}

func (h *Handler) getGuestCart(c *fiber.Ctx) error {
	v, err := h.service.GuestView(c.UserContext(), c.Get(SessionHeader))
	if err != nil {
		return apperror.Respond(c, err)
	}
	return c.JSON(v)
}

func (h *Handler) addGuestItem(c *fiber.Ctx) error {
	payload := new(lineRequest)
	if err := c.BodyParser(payload); err != nil {
		return apperror.BadRequest(c, err.Error())
	}
	if payload.ItemID <= 0 {
		return apperror.BadRequest(c, "invalid itemId")
	}
	if err := h.service.GuestAdd(c.UserContext(), c.Get(SessionHeader), payload.ItemID, payload.Quantity); err != nil {
		return apperror.Respond(c, err)
	}
	return h.getGuestCart(c)
}

func (h *Handler) updateGuestItem(c *fiber.Ctx) error {
	itemID, _ := strconv.Atoi(c.Params("itemId"))
	payload := new(lineRequest)
	if err := c.BodyParser(payload); err != nil {
		return apperror.BadRequest(c, err.Error())
	}
	if err := h.service.GuestUpdate(c.UserContext(), c.Get(SessionHeader), itemID, payload.Quantity); err != nil {
		return apperror.Respond(c, err)
	}
	return h.getGuestCart(c)
}

func (h *Handler) removeGuestItem(c *fiber.Ctx) error {
	itemID, _ := strconv.Atoi(c.Params("itemId"))
	if err := h.service.GuestRemove(c.UserContext(), c.Get(SessionHeader), itemID); err != nil {
		return apperror.Respond(c, err)
	}
	return h.getGuestCart(c)
}

func (h *Handler) clearGuestCart(c *fiber.Ctx) error {
	if err := h.service.GuestClear(c.UserContext(), c.Get(SessionHeader)); err != nil {
		return apperror.Respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
