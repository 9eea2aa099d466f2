package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/service"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

// StaffHandler exposes staff authentication and org administration.
type StaffHandler struct {
	authService  *service.AuthService
	staffService *service.StaffService
}

// NewStaffHandler constructs handler.
func NewStaffHandler(authService *service.AuthService, staffService *service.StaffService) *StaffHandler {
	return &StaffHandler{authService: authService, staffService: staffService}
}

// Login POST /auth/staff/login.
func (h *StaffHandler) Login(c *fiber.Ctx) error {
	var req dto.StaffLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}
	staff, token, exp, err := h.authService.LoginStaff(c.Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"staff": fiber.Map{
				"id":      staff.ID,
				"name":    staff.Name,
				"email":   staff.Email,
				"role":    staff.Role,
				"team_id": staff.TeamID,
			},
			"auth": dto.AuthResponse{Token: token, ExpiresAt: exp},
		},
	})
}

// ChangePassword POST /auth/password/change.
func (h *StaffHandler) ChangePassword(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.PasswordChangeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		return apperrors.NewValidationError("current and new password required", nil)
	}

	subject := service.AuthSubject{Type: principal.SubjectType}
	switch {
	case principal.User != nil:
		subject.ID = principal.User.ID
	case principal.Staff != nil:
		subject.ID = principal.Staff.ID
	default:
		return apperrors.NewUnauthorized("authentication required")
	}
	if err := h.authService.ChangePassword(c.Context(), subject, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// CreateTeam POST /staff/org/teams.
func (h *StaffHandler) CreateTeam(c *fiber.Ctx) error {
	staff, err := staffPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.OrgEntityRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Name == "" {
		return apperrors.NewValidationError("name required", nil)
	}
	team, err := h.staffService.CreateTeam(c.Context(), staff, req.Name, req.Description)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": teamResponse(team)})
}

// ListTeams GET /staff/org/teams.
func (h *StaffHandler) ListTeams(c *fiber.Ctx) error {
	if _, err := staffPrincipal(c); err != nil {
		return err
	}
	teams, err := h.staffService.ListTeams(c.Context())
	if err != nil {
		return err
	}
	items := make([]fiber.Map, 0, len(teams))
	for i := range teams {
		items = append(items, teamResponse(&teams[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// CreateCategory POST /staff/org/categories.
func (h *StaffHandler) CreateCategory(c *fiber.Ctx) error {
	staff, err := staffPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.OrgEntityRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Name == "" {
		return apperrors.NewValidationError("name required", nil)
	}
	category, err := h.staffService.CreateCategory(c.Context(), staff, req.Name, req.Description)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": categoryResponse(category)})
}

// ListCategories GET /categories. Open to any authenticated caller.
func (h *StaffHandler) ListCategories(c *fiber.Ctx) error {
	categories, err := h.staffService.ListCategories(c.Context())
	if err != nil {
		return err
	}
	items := make([]fiber.Map, 0, len(categories))
	for i := range categories {
		items = append(items, categoryResponse(&categories[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// CreateStaff POST /staff/org/staff.
func (h *StaffHandler) CreateStaff(c *fiber.Ctx) error {
	staff, err := staffPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.StaffCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Name == "" || req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("name, email, password required", nil)
	}
	member, err := h.staffService.CreateStaff(c.Context(), staff, service.StaffCreateInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     domain.StaffRole(req.Role),
		TeamID:   req.TeamID,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": fiber.Map{
			"id":      member.ID,
			"name":    member.Name,
			"email":   member.Email,
			"role":    member.Role,
			"team_id": member.TeamID,
		},
	})
}

func teamResponse(team *domain.Team) fiber.Map {
	return fiber.Map{
		"id":          team.ID,
		"name":        team.Name,
		"description": team.Description,
		"is_active":   team.IsActive,
	}
}

func categoryResponse(category *domain.Category) fiber.Map {
	return fiber.Map{
		"id":          category.ID,
		"name":        category.Name,
		"description": category.Description,
		"is_active":   category.IsActive,
	}
}
