package service

import (
	"context"

	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/pkg/util"
)

// StaffService manages organization entities: teams, categories and staff
// members. Mutations require the ADMIN role.
type StaffService struct {
	teams      repository.TeamRepository
	categories repository.CategoryRepository
	staff      repository.StaffRepository
	bcryptCost int
}

// OrgDependencies encapsulates repositories required for org management.
type OrgDependencies struct {
	TeamRepo     repository.TeamRepository
	CategoryRepo repository.CategoryRepository
	StaffRepo    repository.StaffRepository
}

// StaffCreateInput describes a new staff member.
type StaffCreateInput struct {
	Name     string
	Email    string
	Password string
	Role     domain.StaffRole
	TeamID   *string
}

// NewStaffService constructs the service.
func NewStaffService(cfg config.Config, deps OrgDependencies) *StaffService {
	return &StaffService{
		teams:      deps.TeamRepo,
		categories: deps.CategoryRepo,
		staff:      deps.StaffRepo,
		bcryptCost: cfg.Auth.BcryptCost,
	}
}

func requireAdmin(actor *domain.StaffMember) error {
	if actor == nil || actor.Role != domain.StaffRoleAdmin {
		return util.NewForbidden("admin role required")
	}
	return nil
}

// CreateTeam creates a team.
func (s *StaffService) CreateTeam(ctx context.Context, actor *domain.StaffMember, name, description string) (*domain.Team, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	team := &domain.Team{
		Name:        name,
		Description: description,
		IsActive:    true,
	}
	if err := s.teams.Create(ctx, team); err != nil {
		return nil, util.MapError(err)
	}
	return team, nil
}

// UpdateTeam modifies team metadata.
func (s *StaffService) UpdateTeam(ctx context.Context, actor *domain.StaffMember, team *domain.Team) (*domain.Team, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.teams.Update(ctx, team); err != nil {
		return nil, util.MapError(err)
	}
	return team, nil
}

// ListTeams returns active teams. Open to all staff for routing decisions.
func (s *StaffService) ListTeams(ctx context.Context) ([]domain.Team, error) {
	teams, err := s.teams.ListActive(ctx)
	if err != nil {
		return nil, util.MapError(err)
	}
	return teams, nil
}

// CreateCategory creates a ticket category.
func (s *StaffService) CreateCategory(ctx context.Context, actor *domain.StaffMember, name, description string) (*domain.Category, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	category := &domain.Category{
		Name:        name,
		Description: description,
		IsActive:    true,
	}
	if err := s.categories.Create(ctx, category); err != nil {
		return nil, util.MapError(err)
	}
	return category, nil
}

// UpdateCategory modifies category metadata.
func (s *StaffService) UpdateCategory(ctx context.Context, actor *domain.StaffMember, category *domain.Category) (*domain.Category, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.categories.Update(ctx, category); err != nil {
		return nil, util.MapError(err)
	}
	return category, nil
}

// ListCategories returns active categories. Open to any caller so users can
// pick one when filing a ticket.
func (s *StaffService) ListCategories(ctx context.Context) ([]domain.Category, error) {
	categories, err := s.categories.ListActive(ctx)
	if err != nil {
		return nil, util.MapError(err)
	}
	return categories, nil
}

// CreateStaff onboards a staff member.
func (s *StaffService) CreateStaff(ctx context.Context, actor *domain.StaffMember, input StaffCreateInput) (*domain.StaffMember, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	switch input.Role {
	case domain.StaffRoleAgent, domain.StaffRoleTeamLead, domain.StaffRoleAdmin:
	default:
		return nil, util.NewValidationError("unknown staff role", map[string]any{"role": input.Role})
	}
	if input.TeamID != nil {
		team, err := s.teams.GetByID(ctx, *input.TeamID)
		if err != nil {
			return nil, util.MapError(err)
		}
		if !team.IsActive {
			return nil, util.NewConflict("team inactive", map[string]any{"team_id": team.ID})
		}
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, util.NewInternalError(err)
	}
	member := &domain.StaffMember{
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: hash,
		Role:         input.Role,
		TeamID:       input.TeamID,
		Active:       true,
	}
	if err := s.staff.Create(ctx, member); err != nil {
		return nil, util.MapError(err)
	}
	return member, nil
}

// UpdateStaff modifies a staff member's role, team or active flag.
func (s *StaffService) UpdateStaff(ctx context.Context, actor *domain.StaffMember, member *domain.StaffMember) (*domain.StaffMember, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.staff.Update(ctx, member); err != nil {
		return nil, util.MapError(err)
	}
	return member, nil
}

// ListStaff returns staff members matching the filter.
func (s *StaffService) ListStaff(ctx context.Context, actor *domain.StaffMember, filter repository.StaffFilter) ([]domain.StaffMember, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	members, err := s.staff.List(ctx, filter)
	if err != nil {
		return nil, util.MapError(err)
	}
	return members, nil
}

// GetStaff fetches one staff member.
func (s *StaffService) GetStaff(ctx context.Context, actor *domain.StaffMember, id string) (*domain.StaffMember, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	member, err := s.staff.GetByID(ctx, id)
	if err != nil {
		return nil, util.MapError(err)
	}
	return member, nil
}
