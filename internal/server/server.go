// Package server builds the fiber app and mounts every handler on it.
package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	jwtware "github.com/gofiber/jwt/v2"
	"github.com/wichananm65/urbancart-backend/internal/address"
	"github.com/wichananm65/urbancart-backend/internal/apperror"
	"github.com/wichananm65/urbancart-backend/internal/cart"
	"github.com/wichananm65/urbancart-backend/internal/catalog"
	"github.com/wichananm65/urbancart-backend/internal/customer"
	"github.com/wichananm65/urbancart-backend/internal/inventory"
	"github.com/wichananm65/urbancart-backend/internal/metrics"
	"github.com/wichananm65/urbancart-backend/internal/order"
	"github.com/wichananm65/urbancart-backend/internal/review"
	"github.com/wichananm65/urbancart-backend/internal/user"
	"go.uber.org/zap"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Options struct {
	ServiceName           string
	AllowedOrigins        string
	JWTSecret             []byte
	CheckoutRatePerMinute int

	Logger  *zap.Logger
	Metrics *metrics.Metrics
	DB      Pinger
}

// Handlers left nil are not mounted.
type Handlers struct {
	Users     *user.Handler
	Customers *customer.Handler
	Addresses *address.Handler
	Catalog   *catalog.Handler
	Inventory *inventory.Handler
	Carts     *cart.Handler
	Orders    *order.Handler
	Reviews   *review.Handler
}

type Server struct {
	app      *fiber.App
	logger   *zap.Logger
	checkout *CheckoutLimiter
}

func New(opts Options, h Handlers) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	name := opts.ServiceName
	if name == "" {
		name = "urbancart"
	}

	app := fiber.New(fiber.Config{
		AppName:               name,
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return apperror.Respond(c, err)
		},
	})
	s := &Server{app: app, logger: logger}

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: opts.AllowedOrigins,
		AllowMethods: "GET,POST,HEAD,PUT,DELETE,PATCH",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, " + cart.SessionHeader,
	}))
	app.Use(requestLogger(logger, opts.Metrics))

	app.Get("/health", healthHandler(opts.DB))
	if opts.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(opts.Metrics.Handler()))
	}

	if h.Users != nil {
		h.Users.RegisterPublicRoutes(app)
	}
	if h.Catalog != nil {
		h.Catalog.RegisterPublicRoutes(app)
	}
	if h.Reviews != nil {
		h.Reviews.RegisterPublicRoutes(app)
	}
	if h.Carts != nil {
		h.Carts.RegisterPublicRoutes(app)
	}

	app.Use(jwtware.New(jwtware.Config{
		SigningKey: opts.JWTSecret,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return apperror.Respond(c, apperror.Unauthorized("missing or invalid token"))
		},
	}))

	if h.Users != nil {
		h.Users.RegisterProtectedRoutes(app)
	}
	if h.Customers != nil {
		h.Customers.RegisterProtectedRoutes(app)
	}
	if h.Addresses != nil {
		h.Addresses.RegisterProtectedRoutes(app)
	}
	if h.Catalog != nil {
		h.Catalog.RegisterProtectedRoutes(app)
	}
	if h.Inventory != nil {
		h.Inventory.RegisterProtectedRoutes(app)
	}
	if h.Carts != nil {
		h.Carts.RegisterProtectedRoutes(app)
	}
	if h.Reviews != nil {
		h.Reviews.RegisterProtectedRoutes(app)
	}
	if h.Orders != nil {
		var checkout []fiber.Handler
		if opts.CheckoutRatePerMinute > 0 {
			s.checkout = NewCheckoutLimiter(opts.CheckoutRatePerMinute, time.Minute)
			checkout = append(checkout, s.checkout.Middleware())
		}
		h.Orders.RegisterProtectedRoutes(app, checkout...)
	}

	return s
}

func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Listen(addr string) error {
	s.logger.Info("http_listen", zap.String("addr", addr))
	return s.app.Listen(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func healthHandler(db Pinger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if db != nil {
			ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				return apperror.Respond(c, apperror.Transient(err))
			}
		}
		return c.JSON(fiber.Map{"status": "ok"})
	}
}
