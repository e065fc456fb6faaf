package handler

import (
	"context"
	"database/sql"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"userapi/internal/service"
)

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// /metrics is only mounted when gatherer is non-nil.
func RegisterRoutes(app *fiber.App, db *sql.DB, userSvc service.UserService, gatherer prometheus.Gatherer) {
	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", LivenessProbe())

	if gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	// /users/count must precede /users/:id.
	app.Get("/users/count", CountUsers(userSvc))
	app.Get("/users", ListUsers(userSvc))
	app.Post("/users", CreateUser(userSvc))
	app.Get("/users/:id", GetUser(userSvc))
	app.Delete("/users/:id", DeleteUser(userSvc))
	app.Put("/users/:id/avatar", UploadAvatar(userSvc))
	app.Get("/users/:id/avatar", AvatarRedirect(userSvc))

	app.Get("/dashboard", Dashboard(userSvc))
}

// HealthCheck checks DB connectivity.
//
// @Summary Readiness probe
// @Tags health
// @Success 200 {object} map[string]string
// @Failure 503 {object} errorPayload
// @Router /health [get]
func HealthCheck(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe answers 200 while the process is up.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}
