package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/repair-case-service/internal/api/http/handlers"
	"github.com/spec-kit/repair-case-service/internal/auth"
	"github.com/spec-kit/repair-case-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Cases          *handlers.CaseHandler
	Staff          *handlers.StaffHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	authGroup := app.Group("/auth")
	authGroup.Post("/staff/login", cfg.Staff.Login)

	staff := app.Group("/staff", cfg.AuthMiddleware.Handle)
	staff.Get("/me", cfg.Staff.Me)
	staff.Post("", auth.RequireStaffRole(domain.StaffRoleLeader), cfg.Staff.CreateStaffMember)

	leader := auth.RequireStaffRole(domain.StaffRoleLeader)

	cases := app.Group("/cases", cfg.AuthMiddleware.Handle)
	cases.Post("", auth.RequireStaffRole(domain.StaffRoleCS), cfg.Cases.CreateCase)
	cases.Get("", cfg.Cases.ListCases)
	cases.Get("/:id", cfg.Cases.GetCase)
	cases.Put("/:id/stages/:stage", cfg.Cases.SubmitStage)
	cases.Post("/:id/advance", cfg.Cases.AdvanceStage)
	cases.Post("/:id/cost/approve", leader, cfg.Cases.ApproveCost)
	cases.Post("/:id/cost/reject", leader, cfg.Cases.RejectCost)
	cases.Post("/:id/final-cost/approve", leader, cfg.Cases.ApproveFinalCost)
	cases.Post("/:id/final-cost/reject", leader, cfg.Cases.RejectFinalCost)
	cases.Post("/:id/redo", cfg.Cases.RedoCase)
	cases.Post("/:id/cancel", cfg.Cases.CancelCase)
	cases.Post("/:id/attachments", cfg.Cases.AddAttachment)
	cases.Delete("/:id/attachments/:attachmentId", cfg.Cases.DeleteAttachment)
}
