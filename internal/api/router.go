package api

import (
	"fmt"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	"github.com/fieldreport/reporting-api/internal/api/handler"
	"github.com/fieldreport/reporting-api/internal/api/middleware"
	"github.com/fieldreport/reporting-api/internal/core/domain"
	"github.com/fieldreport/reporting-api/internal/core/ports"
	"github.com/fieldreport/reporting-api/internal/infrastructure/http/handlers"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	Log zerolog.Logger

	Tokens        ports.TokenService
	Users         ports.UserRepository
	AuthService   ports.AuthService
	UserService   ports.UserService
	ReportService ports.ReportService

	// LoginLimiter is optional; nil disables login throttling.
	LoginLimiter *middleware.LoginLimiter

	UploadDir   string
	MaxUploadMB int64

	// Readiness lists the stores probed by /health/ready.
	Readiness map[string]handlers.Pinger

	// Registerer and Gatherer back /metrics. A nil Registerer disables HTTP metrics.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer

	Swagger bool
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(middleware.RequestLogger(d.Log))
	if d.Registerer != nil {
		e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
			Subsystem:  "fieldreport",
			Registerer: d.Registerer,
			Skipper: func(c echo.Context) bool {
				return c.Path() == "/metrics"
			},
		}))
		e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: d.Gatherer}))
	}

	// --- Health probes (no auth required) ---
	e.GET("/health", handlers.NewHealthHandler().Liveness)
	e.GET("/health/ready", handlers.NewHealthDependenciesHandler(d.Readiness).Readiness)

	if d.Swagger {
		e.GET("/swagger/*", echoSwagger.WrapHandler)
	}

	// --- Uploaded photos ---
	if d.UploadDir != "" {
		e.Static("/uploads", d.UploadDir)
	}

	authHandler := handler.NewAuthHandler(d.AuthService)
	userHandler := handler.NewUserHandler(d.UserService)
	reportHandler := handler.NewReportHandler(d.ReportService)

	authenticated := middleware.Authenticate(d.Tokens, d.Users, d.Log)
	adminOnly := middleware.Authenticate(d.Tokens, d.Users, d.Log, domain.RoleAdmin)

	api := e.Group("/api")

	// --- Auth ---
	var loginMW []echo.MiddlewareFunc
	if d.LoginLimiter != nil {
		loginMW = append(loginMW, d.LoginLimiter.Middleware())
	}
	api.POST("/login", authHandler.Login, loginMW...)

	// --- Users (admin) ---
	users := api.Group("/users", adminOnly)
	users.GET("", userHandler.List)
	users.POST("", userHandler.Create)
	users.GET("/:id", userHandler.Get)
	users.PUT("/:id", userHandler.Update)
	users.DELETE("/:id", userHandler.Delete)

	// --- Reports ---
	maxUpload := d.MaxUploadMB
	if maxUpload <= 0 {
		maxUpload = 10
	}
	reports := api.Group("/reports", authenticated)
	reports.POST("/submit", reportHandler.Submit, echomiddleware.BodyLimit(fmt.Sprintf("%dM", maxUpload)))
	reports.GET("", reportHandler.List)
	reports.GET("/daily", reportHandler.Daily, middleware.RequireRole(domain.RoleAdmin))

	return e
}
