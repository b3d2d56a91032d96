package events

import (
	"time"

	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventRequestCreated       EventType = "request_created"
	EventRequestStatusChanged EventType = "request_status_changed"
	EventRequestAssigned      EventType = "request_assigned"
	// AllEvents subscribes a handler to every type.
	AllEvents EventType = "*"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	RequestID int64     `json:"request_id"`
	ActorID   int64     `json:"actor_id"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// RequestCreatedPayload payload.
type RequestCreatedPayload struct {
	Type        domain.RequestType `json:"type"`
	Urgency     domain.Urgency     `json:"urgency"`
	DueDate     string             `json:"due_date,omitempty"`
	Description string             `json:"description"`
	Notified    int                `json:"notified_admins"`
}

// RequestStatusChangedPayload payload.
type RequestStatusChangedPayload struct {
	OldStatus domain.Status `json:"old_status"`
	NewStatus domain.Status `json:"new_status"`
	Reason    string        `json:"reason,omitempty"`
}

// RequestAssignedPayload payload.
type RequestAssignedPayload struct {
	AdminID *int64 `json:"admin_id,omitempty"`
}
