package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusNew                TicketStatus = "NEW"
	TicketStatusTriaged            TicketStatus = "TRIAGED"
	TicketStatusAssigned           TicketStatus = "ASSIGNED"
	TicketStatusInProgress         TicketStatus = "IN_PROGRESS"
	TicketStatusWaitingOnRequester TicketStatus = "WAITING_ON_REQUESTER"
	TicketStatusWaitingOnVendor    TicketStatus = "WAITING_ON_VENDOR"
	TicketStatusResolved           TicketStatus = "RESOLVED"
	TicketStatusClosed             TicketStatus = "CLOSED"
	TicketStatusReopened           TicketStatus = "REOPENED"
)

// IsPaused reports whether the status suspends the resolution SLA clock.
func (s TicketStatus) IsPaused() bool {
	return s == TicketStatusWaitingOnRequester || s == TicketStatusWaitingOnVendor
}

// IsTerminal reports whether the status freezes the ticket's SLA clocks.
func (s TicketStatus) IsTerminal() bool {
	return s == TicketStatusResolved || s == TicketStatusClosed
}

// TicketPriority enumerates SLA urgency, P1 highest.
type TicketPriority string

const (
	TicketPriorityP1 TicketPriority = "P1"
	TicketPriorityP2 TicketPriority = "P2"
	TicketPriorityP3 TicketPriority = "P3"
	TicketPriorityP4 TicketPriority = "P4"
)

// Rank returns the ordinal of the priority, 1 being most urgent.
// Unknown priorities rank below P4.
func (p TicketPriority) Rank() int {
	switch p {
	case TicketPriorityP1:
		return 1
	case TicketPriorityP2:
		return 2
	case TicketPriorityP3:
		return 3
	case TicketPriorityP4:
		return 4
	default:
		return 5
	}
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID              string
	ExternalKey     string
	RequesterID     string
	CategoryID      string
	TeamID          *string
	AssigneeID      *string
	Title           string
	Description     string
	Status          TicketStatus
	Priority        TicketPriority
	Tags            []string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	FirstResponseAt *time.Time
	CompletedAt     *time.Time
	SlaPausedAt     *time.Time
	Version         int64
}
