package notification

import (
	"time"

	"github.com/google/uuid"
)

// Type is the severity a notification is shown with.
type Type string

const (
	TypeInfo    Type = "info"
	TypeSuccess Type = "success"
	TypeWarning Type = "warning"
	TypeError   Type = "error"
)

func (t Type) valid() bool {
	switch t {
	case TypeInfo, TypeSuccess, TypeWarning, TypeError:
		return true
	}
	return false
}

// Notification is an inbox entry owned by its recipient.
type Notification struct {
	ID            uuid.UUID  `json:"id"`
	UserID        uuid.UUID  `json:"userId"`
	Title         string     `json:"title"`
	Message       string     `json:"message"`
	Type          Type       `json:"type"`
	IsRead        bool       `json:"isRead"`
	AppointmentID *uuid.UUID `json:"appointmentId,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

type CreateRequest struct {
	UserID        uuid.UUID  `json:"userId" validate:"required"`
	Title         string     `json:"title" validate:"required,max=200"`
	Message       string     `json:"message" validate:"required,max=2000"`
	Type          string     `json:"type" validate:"omitempty,oneof=info success warning error"`
	AppointmentID *uuid.UUID `json:"appointmentId"`
}

type ReadRequest struct {
	IsRead *bool `json:"isRead" validate:"required"`
}

// UnreadCount is the payload of the unread-count endpoint.
type UnreadCount struct {
	Count int `json:"count"`
}
