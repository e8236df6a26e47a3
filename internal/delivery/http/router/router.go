package router

import (
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/LavaJover/lockin-market-service/internal/clock"
	"github.com/LavaJover/lockin-market-service/internal/config"
	"github.com/LavaJover/lockin-market-service/internal/delivery/http/handlers"
	"github.com/LavaJover/lockin-market-service/internal/delivery/http/middleware"
	"github.com/LavaJover/lockin-market-service/internal/usecase"
)

const RoleAdmin = "admin"

type Deps struct {
	Listings usecase.ListingUsecase
	Locks    usecase.LockUsecase
	Orders   usecase.OrderUsecase
	Webhooks usecase.WebhookUsecase
	Sweeper  usecase.SweeperUsecase
	Ledger   usecase.LedgerUsecase
	Verifier handlers.SignatureVerifier
	Clock    clock.Clock

	JWTSecret string
	// RateLimit is applied to lock acquisition when Redis is set.
	RateLimit config.RateLimit
	Redis     *redis.Client
	Gatherer  prometheus.Gatherer
}

func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(requestLogger())

	e.GET("/health", handlers.Health)
	if d.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	webhooks := handlers.NewWebhookHandler(d.Webhooks, d.Verifier)
	e.POST("/webhooks/payments", webhooks.Payment)

	listings := handlers.NewListingHandler(d.Listings, d.Clock)
	locks := handlers.NewLockHandler(d.Locks)
	orders := handlers.NewOrderHandler(d.Orders)
	admin := handlers.NewAdminHandler(d.Sweeper, d.Ledger)

	public := e.Group("/v1")
	public.GET("/listings", listings.List)
	public.GET("/listings/:id", listings.Get)

	auth := e.Group("/v1", middleware.JWTAuth(d.JWTSecret))
	auth.POST("/listings", listings.Create)
	auth.PATCH("/listings/:id/price", listings.UpdatePrice)
	auth.DELETE("/listings/:id", listings.Delist)

	var lockLimit []echo.MiddlewareFunc
	if d.RateLimit.Enabled && d.Redis != nil {
		lockLimit = append(lockLimit, middleware.TokenBucket(d.RateLimit, d.Redis, "lock"))
	}
	auth.POST("/listings/:id/lock", locks.Acquire, lockLimit...)
	auth.DELETE("/listings/:id/lock", locks.Release)

	auth.POST("/listings/:id/orders", orders.Create)
	auth.GET("/orders", orders.List)
	auth.GET("/orders/by-session/:ref", orders.GetBySession)
	auth.GET("/orders/:id", orders.Get)
	auth.GET("/orders/:id/history", orders.History)
	auth.POST("/orders/:id/payment-session", orders.AttachPaymentSession)
	auth.POST("/orders/:id/cancel", orders.Cancel)

	adm := e.Group("/v1/admin", middleware.JWTAuth(d.JWTSecret), middleware.RequireRole(RoleAdmin))
	adm.POST("/sweeps", admin.Sweep)
	adm.POST("/ledger/purge", admin.PurgeLedger)
	adm.POST("/orders/:id/refund", orders.Refund)
	adm.POST("/orders/:id/expire", orders.Expire)

	return e
}

func requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			slog.Debug("http request",
				"method", c.Request().Method,
				"path", c.Path(),
				"status", c.Response().Status,
				"duration", time.Since(start),
			)
			return nil
		}
	}
}
