package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/service"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

// StaffTicketsHandler handles staff ticket operations: listing, messaging,
// status transitions, assignment and SLA inspection.
type StaffTicketsHandler struct {
	tickets *service.TicketService
}

// NewStaffTicketsHandler constructs handler.
func NewStaffTicketsHandler(ticketService *service.TicketService) *StaffTicketsHandler {
	return &StaffTicketsHandler{tickets: ticketService}
}

func staffPrincipal(c *fiber.Ctx) (*domain.StaffMember, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Staff == nil {
		return nil, apperrors.NewUnauthorized("staff required")
	}
	return principal.Staff, nil
}

// ListStaffTickets GET /staff/tickets.
func (h *StaffTicketsHandler) ListStaffTickets(c *fiber.Ctx) error {
	staff, err := staffPrincipal(c)
	if err != nil {
		return err
	}
	tickets, err := h.tickets.ListStaffTickets(c.Context(), staff, parseStaffTicketFilter(c))
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketSummary(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetStaffTicket GET /staff/tickets/:id.
func (h *StaffTicketsHandler) GetStaffTicket(c *fiber.Ctx) error {
	staff, err := staffPrincipal(c)
	if err != nil {
		return err
	}
	ticket, msgs, err := h.tickets.GetTicketForStaff(c.Context(), staff, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket, msgs)})
}

// AddStaffMessage POST /staff/tickets/:id/messages.
func (h *StaffTicketsHandler) AddStaffMessage(c *fiber.Ctx) error {
	staff, err := staffPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.CreateMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	messageType := domain.MessageTypePublicReply
	if req.MessageType != nil {
		messageType = *req.MessageType
	}
	msg, err := h.tickets.AddMessage(c.Context(), domain.SubjectTypeStaff, staff.ID, staff, c.Params("id"), messageType, req.Body)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketMessageResponse(msg)})
}

// ChangeStatus PATCH /staff/tickets/:id/status.
func (h *StaffTicketsHandler) ChangeStatus(c *fiber.Ctx) error {
	staff, err := staffPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.ChangeStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Status == "" {
		return apperrors.NewValidationError("status required", nil)
	}
	ticket, err := h.tickets.ChangeStatus(c.Context(), c.Params("id"), req.Status, staffActor(staff.ID), 0)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// AllowedTransitions GET /staff/tickets/:id/transitions.
func (h *StaffTicketsHandler) AllowedTransitions(c *fiber.Ctx) error {
	if _, err := staffPrincipal(c); err != nil {
		return err
	}
	status, allowed, err := h.tickets.AllowedNextStatuses(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.AllowedTransitionsResponse{Status: status, Allowed: allowed}})
}

// Assign POST /staff/tickets/:id/assign.
func (h *StaffTicketsHandler) Assign(c *fiber.Ctx) error {
	staff, err := staffPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.AssignRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	staffID := req.StaffID
	if staffID == "" {
		staffID = staff.ID
	}
	if err := h.tickets.AssignTicket(c.Context(), c.Params("id"), staffID, staffActor(staff.ID), 0); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// TransferTeam POST /staff/tickets/:id/transfer.
func (h *StaffTicketsHandler) TransferTeam(c *fiber.Ctx) error {
	staff, err := staffPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.TransferTeamRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.TeamID == "" {
		return apperrors.NewValidationError("team_id required", nil)
	}
	if err := h.tickets.TransferTicketTeam(c.Context(), c.Params("id"), req.TeamID, staffActor(staff.ID), 0); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// ChangePriority PATCH /staff/tickets/:id/priority.
func (h *StaffTicketsHandler) ChangePriority(c *fiber.Ctx) error {
	staff, err := staffPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.ChangePriorityRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := h.tickets.ChangePriority(c.Context(), c.Params("id"), req.Priority, staffActor(staff.ID), 0); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// GetSlaStatus GET /staff/tickets/:id/sla.
func (h *StaffTicketsHandler) GetSlaStatus(c *fiber.Ctx) error {
	staff, err := staffPrincipal(c)
	if err != nil {
		return err
	}
	if _, _, err := h.tickets.GetTicketForStaff(c.Context(), staff, c.Params("id")); err != nil {
		return err
	}
	view, err := h.tickets.SlaStatus(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": view})
}

// GetHistory GET /staff/tickets/:id/history.
func (h *StaffTicketsHandler) GetHistory(c *fiber.Ctx) error {
	staff, err := staffPrincipal(c)
	if err != nil {
		return err
	}
	history, err := h.tickets.ListHistory(c.Context(), staff, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": historyResponses(history)})
}

func staffActor(staffID string) events.Actor {
	return events.Actor{Type: domain.SubjectTypeStaff, StaffID: &staffID}
}

func parseStaffTicketFilter(c *fiber.Ctx) service.TicketStaffFilter {
	filter := service.TicketStaffFilter{}
	if v := c.Query("category_id"); v != "" {
		filter.CategoryID = &v
	}
	if v := c.Query("team_id"); v != "" {
		filter.TeamID = &v
	}
	if v := c.Query("assignee_id"); v != "" {
		filter.AssigneeID = &v
	}
	if v := c.Query("search"); v != "" {
		filter.SearchTerm = &v
	}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			filter.Statuses = append(filter.Statuses, domain.TicketStatus(strings.TrimSpace(part)))
		}
	}
	if priorityStr := c.Query("priority"); priorityStr != "" {
		for _, part := range strings.Split(priorityStr, ",") {
			filter.Priorities = append(filter.Priorities, domain.TicketPriority(strings.TrimSpace(part)))
		}
	}
	if from := parseTime(c.Query("created_from")); from != nil {
		filter.CreatedFrom = from
	}
	if to := parseTime(c.Query("created_to")); to != nil {
		filter.CreatedTo = to
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter
}
