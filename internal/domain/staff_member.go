package domain

import "time"

// StaffRole enumerates internal operator roles, least to most privileged.
type StaffRole string

const (
	StaffRoleAgent    StaffRole = "AGENT"
	StaffRoleTeamLead StaffRole = "TEAM_LEAD"
	StaffRoleAdmin    StaffRole = "ADMIN"
)

// StaffMember models a support agent, team lead or administrator. TeamID is
// nil for members outside any team, admins typically among them.
type StaffMember struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         StaffRole
	TeamID       *string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsAdmin reports whether the member holds the administrator role.
func (m *StaffMember) IsAdmin() bool {
	return m != nil && m.Role == StaffRoleAdmin
}
