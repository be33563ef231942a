package http

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"go.uber.org/zap"

	"github.com/spec-kit/field-service/internal/api/http/handlers"
	"github.com/spec-kit/field-service/internal/auth"
	"github.com/spec-kit/field-service/internal/observability"
	apperrors "github.com/spec-kit/field-service/pkg/util/errorutil"
)

// AppConfig controls fiber settings.
type AppConfig struct {
	Name      string
	BodyLimit int
	Logger    *zap.Logger
	Metrics   *observability.Metrics
}

// NewApp builds a fiber app that encodes JSON with goccy/go-json and renders
// framework errors in the standard error body.
func NewApp(cfg AppConfig) *fiber.App {
	return fiber.New(fiber.Config{
		AppName:               cfg.Name,
		BodyLimit:             cfg.BodyLimit,
		DisableStartupMessage: true,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ErrorHandler:          ErrorHandler(cfg.Logger, cfg.Metrics),
	})
}

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health             *handlers.HealthHandler
	Auth               *handlers.AuthHandler
	ServiceRequests    *handlers.ServiceRequestsHandler
	AuthMiddleware     *auth.AuthMiddleware
	Metrics            *observability.Metrics
	RateLimitPerMinute int
}

// RegisterRoutes wires HTTP routes. Anything unmatched ends in a 404.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	api := app.Group("/api")
	api.Get("/health", cfg.Health.Live)
	api.Get("/health/ready", cfg.Health.Ready)

	authGroup := api.Group("/auth")
	if cfg.RateLimitPerMinute > 0 {
		authGroup.Use(limiter.New(limiter.Config{
			Max:        cfg.RateLimitPerMinute,
			Expiration: time.Minute,
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.IP()
			},
			LimitReached: func(c *fiber.Ctx) error {
				return apperrors.NewTooManyRequests("Too many requests, please try again later.")
			},
		}))
	}
	authGroup.Post("/signup", cfg.Auth.Signup)
	authGroup.Post("/login", cfg.Auth.Login)

	// Auth is attached per route; group middleware would also run for
	// unmatched paths under the prefix and turn their 404 into a 401.
	authed := cfg.AuthMiddleware.Handle
	requests := api.Group("/service-requests")
	requests.Post("/", authed, cfg.ServiceRequests.Create)
	requests.Get("/", authed, cfg.ServiceRequests.List)
	requests.Get("/:id", authed, cfg.ServiceRequests.Get)
	requests.Put("/:id", authed, cfg.ServiceRequests.Update)
	requests.Get("/:id/history", authed, cfg.ServiceRequests.History)

	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	app.Use(func(c *fiber.Ctx) error {
		return apperrors.NewRouteNotFound()
	})
}
