package domain

import "time"

// Team represents an agent group that owns tickets.
type Team struct {
	ID          string
	Name        string
	Description string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
