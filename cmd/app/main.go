package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wichananm65/urbancart-backend/internal/address"
	"github.com/wichananm65/urbancart-backend/internal/cart"
	"github.com/wichananm65/urbancart-backend/internal/catalog"
	"github.com/wichananm65/urbancart-backend/internal/config"
	"github.com/wichananm65/urbancart-backend/internal/customer"
	"github.com/wichananm65/urbancart-backend/internal/database"
	"github.com/wichananm65/urbancart-backend/internal/inventory"
	"github.com/wichananm65/urbancart-backend/internal/logging"
	"github.com/wichananm65/urbancart-backend/internal/metrics"
	"github.com/wichananm65/urbancart-backend/internal/order"
	"github.com/wichananm65/urbancart-backend/internal/payment"
	"github.com/wichananm65/urbancart-backend/internal/reconcile"
	"github.com/wichananm65/urbancart-backend/internal/review"
	"github.com/wichananm65/urbancart-backend/internal/server"
	"github.com/wichananm65/urbancart-backend/internal/user"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.ContextWithLogger(ctx, logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server_stopped", zap.Error(err))
	}
}

// storage holds one backend per concern, postgres or in-memory.
type storage struct {
	db        *sql.DB
	users     user.Repository
	customers customer.Repository
	addresses address.Repository
	items     catalog.Repository
	ledger    inventory.Ledger
	carts     cart.Store
	reviews   review.Repository
	guests    cart.GuestStore
}

func openStorage(ctx context.Context, cfg config.Config, logger *zap.Logger) (*storage, error) {
	s := &storage{}
	if cfg.InMemory() {
		logger.Warn("storage_in_memory", zap.String("reason", "DATABASE_URL is not set"))
		items := catalog.NewInMemoryRepository(catalog.DemoItems())
		s.users = user.NewInMemoryRepository(nil)
		s.customers = customer.NewInMemoryRepository(nil)
		s.addresses = address.NewInMemoryRepository(nil)
		s.items = items
		s.ledger = items.Ledger()
		s.carts = cart.NewInMemoryStore()
		s.reviews = review.NewInMemoryRepository()
	} else {
		db, err := database.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		s.db = db
		s.users = user.NewPostgresRepository(db)
		s.customers = customer.NewPostgresRepository(db)
		s.addresses = address.NewPostgresRepository(db)
		s.items = catalog.NewPostgresRepository(db)
		s.ledger = inventory.NewPostgresLedger(db)
		s.carts = cart.NewPostgresStore(db)
		s.reviews = review.NewPostgresRepository(db)
	}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis url: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		s.guests = cart.NewRedisGuestStore(client, cfg.GuestCartTTL)
	} else {
		s.guests = cart.NewInMemoryGuestStore(cfg.GuestCartTTL)
	}
	return s, nil
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if store.db != nil {
		defer store.db.Close()
	}

	m := metrics.New()

	queue := reconcile.NewQueue(logger, m)
	queue.Start(context.WithoutCancel(ctx))
	defer queue.Stop()

	userService := user.NewService(store.users)
	addressService := address.NewService(store.addresses)
	customerService := customer.NewService(store.customers, userService, addressService)
	catalogService := catalog.NewService(store.items)
	inventoryService := inventory.NewService(store.ledger)
	cartService := cart.NewService(store.carts, store.guests, catalogService)
	reviewService := review.NewService(store.reviews, catalogService, customerService)

	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		if _, err := userService.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
	}

	var orders order.Repository
	if store.db != nil {
		orders = order.NewPostgresRepository(store.db)
	} else {
		orders = order.NewInMemoryRepository(store.ledger, store.addresses, customerService)
	}

	var policy payment.DecisionPolicy = payment.AlwaysApprove()
	if cfg.PaymentDeclineEvery > 0 {
		policy = payment.EveryNth(uint64(cfg.PaymentDeclineEvery))
	}
	payments := payment.NewAuthorizer(policy,
		payment.WithLatency(cfg.PaymentLatency),
		payment.WithMetrics(m),
	)

	workflow := order.NewService(order.Deps{
		Orders:    orders,
		Customers: customerService,
		Addresses: addressService,
		Carts:     cartService,
		Items:     catalogService,
		Stock:     store.ledger,
		Payments:  payments,
	},
		order.WithPaymentTimeout(cfg.PaymentTimeout),
		order.WithCommitRetries(cfg.CommitRetries),
		order.WithMetrics(m),
		order.WithReconciler(queue),
	)
	queries := order.NewQueryService(orders, order.RestockFunc(func(ctx context.Context, itemID, amount int) error {
		_, err := store.ledger.Restock(ctx, itemID, amount)
		return err
	}), payments, queue)

	opts := server.Options{
		ServiceName:           cfg.ServiceName,
		AllowedOrigins:        cfg.AllowedOrigins,
		JWTSecret:             []byte(cfg.JWTSecret),
		CheckoutRatePerMinute: cfg.CheckoutRatePerMinute,
		Logger:                logger,
		Metrics:               m,
	}
	if store.db != nil {
		opts.DB = store.db
	}
	srv := server.New(opts, server.Handlers{
		Users:     user.NewHandler(userService, []byte(cfg.JWTSecret), customerService),
		Customers: customer.NewHandler(customerService),
		Addresses: address.NewHandler(addressService, customerService),
		Catalog:   catalog.NewHandler(catalogService),
		Inventory: inventory.NewHandler(inventoryService),
		Carts:     cart.NewHandler(cartService, customerService),
		Orders:    order.NewHandler(workflow, queries, customerService),
		Reviews:   review.NewHandler(reviewService, customerService),
	})

	errc := make(chan error, 1)
	go func() { errc <- srv.Listen(cfg.Addr) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutdown_started")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	logger.Info("shutdown_complete")
	return nil
}
