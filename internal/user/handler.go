package user

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/wichananm65/urbancart-backend/internal/apperror"
	"github.com/wichananm65/urbancart-backend/internal/auth"
	"github.com/wichananm65/urbancart-backend/internal/logging"
	"go.uber.org/zap"
)

const tokenTTL = 72 * time.Hour

// ProfileInitializer creates the customer profile that goes with a new account.
type ProfileInitializer interface {
	InitProfile(ctx context.Context, u auth.Principal, givenName, familyName, phone string) error
}

type Handler struct {
	service  *Service
	secret   []byte
	profiles ProfileInitializer
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	GivenName  string `json:"givenName"`
	FamilyName string `json:"familyName"`
	Phone      string `json:"phone"`
}

func NewHandler(service *Service, secret []byte, profiles ProfileInitializer) *Handler {
	return &Handler{service: service, secret: secret, profiles: profiles}
}

func (h *Handler) RegisterPublicRoutes(app fiber.Router) {
	app.Post("/api/v1/auth/login", h.login)
	app.Post("/api/v1/auth/register", h.register)
}

func (h *Handler) RegisterProtectedRoutes(app fiber.Router) {
	app.Get("/api/v1/auth/verify", h.verify)
}

// verify confirms the bearer token still belongs to an active account.
func (h *Handler) verify(c *fiber.Ctx) error {
	p, err := auth.FromCtx(c)
	if err != nil {
		return apperror.Respond(c, err)
	}
	u, err := h.service.GetByID(c.UserContext(), p.UserID)
	if err != nil || !u.IsActive {
		return apperror.Respond(c, apperror.Unauthorized("account is no longer active"))
	}
	return c.JSON(fiber.Map{
		"valid": true,
		"user":  sanitizeUser(u),
	})
}

func (h *Handler) login(c *fiber.Ctx) error {
	payload := new(loginRequest)
	if err := c.BodyParser(payload); err != nil {
		return apperror.BadRequest(c, err.Error())
	}

	u, err := h.service.Authenticate(c.UserContext(), payload.Email, payload.Password)
	if err != nil {
		return apperror.Respond(c, err)
	}

	signed, err := auth.IssueToken(h.secret, u.Principal(), tokenTTL)
	if err != nil {
		return apperror.Respond(c, apperror.Internal(err))
	}

	return c.JSON(fiber.Map{
		"message": "Login successful",
		"user":    sanitizeUser(u),
		"token":   signed,
	})
}

func (h *Handler) register(c *fiber.Ctx) error {
	payload := new(registerRequest)
	if err := c.BodyParser(payload); err != nil {
		return apperror.BadRequest(c, err.Error())
	}

	ctx := c.UserContext()
	created, err := h.service.Register(ctx, payload.Email, payload.Password)
	if err != nil {
		return apperror.Respond(c, err)
	}

	if h.profiles != nil {
		// the profile is created lazily on first use if this fails
		if err := h.profiles.InitProfile(ctx, created.Principal(), payload.GivenName, payload.FamilyName, payload.Phone); err != nil {
			logging.FromContext(ctx).Warn("profile_init_failed", zap.Int("user_id", created.ID), zap.Error(err))
		}
	}

	return c.Status(fiber.StatusCreated).JSON(sanitizeUser(created))
}
