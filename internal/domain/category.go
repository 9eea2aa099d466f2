package domain

import "time"

// Category classifies tickets for routing and SLA policy resolution.
type Category struct {
	ID          string
	Name        string
	Description string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
