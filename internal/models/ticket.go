package models

import (
	"time"

	"github.com/google/uuid"
)

// TicketStatus represents the lifecycle state of a support ticket.
type TicketStatus string

const (
	TicketOpen       TicketStatus = "open"
	TicketInProgress TicketStatus = "in_progress"
	TicketClosed     TicketStatus = "closed"
)

// IsValid reports whether the status is a known ticket state.
func (s TicketStatus) IsValid() bool {
	switch s {
	case TicketOpen, TicketInProgress, TicketClosed:
		return true
	}
	return false
}

// TicketSender identifies which side of the thread wrote a message.
type TicketSender string

const (
	TicketSenderUser  TicketSender = "user"
	TicketSenderAdmin TicketSender = "admin"
)

// Ticket represents a support ticket thread between a user and support staff.
type Ticket struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	UserID    uuid.UUID       `json:"user_id" db:"user_id"`
	Subject   string          `json:"subject" db:"subject"`
	Status    TicketStatus    `json:"status" db:"status"`
	Messages  []TicketMessage `json:"messages,omitempty"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// TicketMessage is a single entry in a ticket thread.
type TicketMessage struct {
	ID        uuid.UUID    `json:"id" db:"id"`
	TicketID  uuid.UUID    `json:"ticket_id" db:"ticket_id"`
	Sender    TicketSender `json:"sender" db:"sender"`
	Content   string       `json:"content" db:"content"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
}
