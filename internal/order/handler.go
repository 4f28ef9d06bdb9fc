package order

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
	workflow  *Service
	queries   *QueryService
	customers CustomerResolver
}

func NewHandler(workflow *Service, queries *QueryService, customers CustomerResolver) *Handler {
	return &Handler{workflow: workflow, queries: queries, customers: customers}
}

type placeOrderRequest struct {
	Shipping       AddressInput  `json:"shipping"`
	Billing        *AddressInput `json:"billing,omitempty"`
	SameAsShipping bool          `json:"sameAsShipping"`
	Payment        PaymentInput  `json:"payment"`
}

type statusRequest struct {
	Status Status `json:"status"`
}

// RegisterProtectedRoutes mounts the order routes. checkout runs in front of
// order placement only, e.g. a rate limiter.
func (h *Handler) RegisterProtectedRoutes(app fiber.Router, checkout ...fiber.Handler) {
	place := append([]fiber.Handler{auth.Require(auth.CapPlaceOrder)}, checkout...)
	place = append(place, h.placeOrder)
	app.Post("/api/v1/orders", place...)

	own := auth.Require(auth.CapViewOwnOrders)
	app.Get("/api/v1/orders/mine", own, h.listMine)
	app.Get("/api/v1/orders/number/:number", own, h.getByNumber)
	app.Get("/api/v1/orders/:id<int>", own, h.getByID)

	app.Get("/api/v1/orders", auth.Require(auth.CapViewAllOrders), h.listAll)
	app.Patch("/api/v1/orders/:id<int>/status", auth.Require(auth.CapManageOrders), h.updateStatus)
}

func (h *Handler) placeOrder(c *fiber.Ctx) error {
	p, err := auth.FromCtx(c)
	if err != nil {
		return apperror.Respond(c, err)
	}
	payload := new(placeOrderRequest)
	if err := c.BodyParser(payload); err != nil {
		return apperror.BadRequest(c, err.Error())
	}
	customerID, err := h.customers.CustomerIDFor(c.UserContext(), p)
	if err != nil {
		return apperror.Respond(c, err)
	}

	o, err := h.workflow.PlaceOrder(c.UserContext(), PlaceOrderInput{
		CustomerID:     customerID,
		Shipping:       payload.Shipping,
		Billing:        payload.Billing,
		SameAsShipping: payload.SameAsShipping,
		Payment:        payload.Payment,
	})
	if err != nil {
		return apperror.Respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(o)
}

// viewer lets staff see every order and customers only their own.
func (h *Handler) viewer(c *fiber.Ctx) (Viewer, error) {
	p, err := auth.FromCtx(c)
	if err != nil {
		return Viewer{}, err
	}
	if p.Can(auth.CapViewAllOrders) {
		return Viewer{All: true}, nil
	}
	customerID, err := h.customers.CustomerIDFor(c.UserContext(), p)
	if err != nil {
		return Viewer{}, err
	}
	return Viewer{CustomerID: customerID}, nil
}

func (h *Handler) listMine(c *fiber.Ctx) error {
	p, err := auth.FromCtx(c)
	if err != nil {
		return apperror.Respond(c, err)
	}
	customerID, err := h.customers.CustomerIDFor(c.UserContext(), p)
	if err != nil {
		return apperror.Respond(c, err)
	}
	orders, err := h.queries.ListByCustomer(c.UserContext(), customerID)
	if err != nil {
		return apperror.Respond(c, err)
	}
	return c.JSON(orders)
}

func (h *Handler) getByID(c *fiber.Ctx) error {
	v, err := h.viewer(c)
	if err != nil {
		return apperror.Respond(c, err)
	}
	id, _ := strconv.Atoi(c.Params("id"))
	o, err := h.queries.GetByID(c.UserContext(), v, id)
	if err != nil {
		return apperror.Respond(c, err)
	}
	return c.JSON(o)
}

func (h *Handler) getByNumber(c *fiber.Ctx) error {
	v, err := h.viewer(c)
	if err != nil {
		return apperror.Respond(c, err)
	}
	o, err := h.queries.GetByNumber(c.UserContext(), v, c.Params("number"))
	if err != nil {
		return apperror.Respond(c, err)
	}
	return c.JSON(o)
}

func (h *Handler) listAll(c *fiber.Ctx) error {
	orders, err := h.queries.ListAll(c.UserContext())
	if err != nil {
		return apperror.Respond(c, err)
	}
	return c.JSON(orders)
}

func (h *Handler) updateStatus(c *fiber.Ctx) error {
	id, _ := strconv.Atoi(c.Params("id"))
	payload := new(statusRequest)
	if err := c.BodyParser(payload); err != nil {
		return apperror.BadRequest(c, err.Error())
	}
	o, err := h.queries.UpdateStatus(c.UserContext(), id, payload.Status)
	if err != nil {
		return apperror.Respond(c, err)
	}
	return c.JSON(o)
}
