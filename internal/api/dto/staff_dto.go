package dto

// StaffLoginRequest payload.
type StaffLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// PasswordChangeRequest payload for authenticated password changes.
type PasswordChangeRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// StaffCreateRequest payload for onboarding staff.
type StaffCreateRequest struct {
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Role     string  `json:"role"`
	TeamID   *string `json:"team_id"`
}

// OrgEntityRequest payload for teams and categories.
type OrgEntityRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}
