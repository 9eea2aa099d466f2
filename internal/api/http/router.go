package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Staff          *handlers.StaffHandler
	Tickets        *handlers.TicketsHandler
	StaffTickets   *handlers.StaffTicketsHandler
	Automation     *handlers.AutomationHandler
	Auth           *auth.Authenticator
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	authGroup := app.Group("/auth")
	authGroup.Post("/users/register", cfg.Users.Register)
	authGroup.Post("/users/login", cfg.Users.Login)
	authGroup.Post("/staff/login", cfg.Staff.Login)

	protectedAuth := authGroup.Group("", cfg.Auth.Authenticate, auth.RequireAuthenticated())
	protectedAuth.Post("/password/change", cfg.Staff.ChangePassword)

	app.Get("/categories", cfg.Auth.Authenticate, auth.RequireAuthenticated(), cfg.Staff.ListCategories)

	// End-user ticket surface.
	userTickets := app.Group("/tickets", cfg.Auth.Authenticate, auth.RequireUser())
	userTickets.Post("", cfg.Tickets.CreateTicket)
	userTickets.Get("", cfg.Tickets.ListTickets)
	userTickets.Get("/:id", cfg.Tickets.GetTicket)
	userTickets.Get("/:id/sla", cfg.Tickets.GetSlaStatus)
	userTickets.Post("/:id/messages", cfg.Tickets.AddMessage)
	userTickets.Post("/:id/close", cfg.Tickets.CloseTicket)
	userTickets.Post("/:id/reopen", cfg.Tickets.ReopenTicket)

	// Staff operations surface.
	staffGroup := app.Group("/staff", cfg.Auth.Authenticate, auth.RequireStaffRole())
	staffGroup.Get("/tickets", cfg.StaffTickets.ListStaffTickets)
	staffGroup.Get("/tickets/:id", cfg.StaffTickets.GetStaffTicket)
	staffGroup.Get("/tickets/:id/transitions", cfg.StaffTickets.AllowedTransitions)
	staffGroup.Get("/tickets/:id/sla", cfg.StaffTickets.GetSlaStatus)
	staffGroup.Get("/tickets/:id/history", cfg.StaffTickets.GetHistory)
	staffGroup.Post("/tickets/:id/messages", cfg.StaffTickets.AddStaffMessage)
	staffGroup.Patch("/tickets/:id/status", cfg.StaffTickets.ChangeStatus)
	staffGroup.Patch("/tickets/:id/priority", cfg.StaffTickets.ChangePriority)
	staffGroup.Post("/tickets/:id/assign", cfg.StaffTickets.Assign)
	staffGroup.Post("/tickets/:id/transfer", cfg.StaffTickets.TransferTeam)

	staffGroup.Get("/teams", cfg.Staff.ListTeams)

	// Rule management: leads for their team, admins everywhere; the service
	// enforces the scope.
	rules := staffGroup.Group("/automation/rules", auth.RequireStaffRole(domain.StaffRoleTeamLead, domain.StaffRoleAdmin))
	rules.Get("", cfg.Automation.ListRules)
	rules.Post("", cfg.Automation.CreateRule)
	rules.Put("/:id", cfg.Automation.UpdateRule)
	rules.Delete("/:id", cfg.Automation.DeleteRule)

	admin := staffGroup.Group("/org", auth.RequireStaffRole(domain.StaffRoleAdmin))
	admin.Post("/teams", cfg.Staff.CreateTeam)
	admin.Post("/categories", cfg.Staff.CreateCategory)
	admin.Post("/staff", cfg.Staff.CreateStaff)

	policies := staffGroup.Group("/sla/policies", auth.RequireStaffRole(domain.StaffRoleAdmin))
	policies.Get("", cfg.Automation.ListPolicies)
	policies.Post("", cfg.Automation.CreatePolicy)
}
