package domain

import "time"

// MessageAuthorType indicates who authored a message.
type MessageAuthorType string

const (
	AuthorTypeUser   MessageAuthorType = "USER"
	AuthorTypeStaff  MessageAuthorType = "STAFF"
	AuthorTypeSystem MessageAuthorType = "SYSTEM"
)

// TicketMessageType differentiates replies from notes.
type TicketMessageType string

const (
	MessageTypePublicReply  TicketMessageType = "PUBLIC_REPLY"
	MessageTypeInternalNote TicketMessageType = "INTERNAL_NOTE"
	MessageTypeSystemEvent  TicketMessageType = "SYSTEM_EVENT"
)

// RequesterVisible reports whether the requester may see messages of this
// type. Internal notes stay within the staff side of the thread.
func (t TicketMessageType) RequesterVisible() bool {
	return t != MessageTypeInternalNote
}

// TicketMessage is one entry in a ticket thread. The first staff public
// reply on a ticket records its first response.
type TicketMessage struct {
	ID          string
	TicketID    string
	AuthorType  MessageAuthorType
	AuthorID    *string
	MessageType TicketMessageType
	Body        string
	CreatedAt   time.Time
}
