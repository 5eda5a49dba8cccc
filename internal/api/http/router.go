package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/payroll-sync/internal/api/http/handlers"
	"github.com/spec-kit/payroll-sync/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Sync           *handlers.SyncHandler
	Employees      *handlers.EmployeesHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Health.Metrics)

	api := app.Group("/api/v1", cfg.AuthMiddleware.Handle)

	api.Post("/employees/sync", auth.RequireScope(auth.ScopeSyncWrite), cfg.Sync.Sync)
	api.Get("/sync-runs", auth.RequireScope(auth.ScopeSyncRead), cfg.Sync.ListRuns)

	api.Get("/employees/:number/payrolls/:yearMonth", auth.RequireScope(auth.ScopeSyncRead), cfg.Employees.PayrollMonth)
	api.Get("/employees/:number/dependents", auth.RequireScope(auth.ScopeSyncRead), cfg.Employees.Dependents)
}
