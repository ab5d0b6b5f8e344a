package realtime

import "github.com/sb-works/collab-backend/internal/projects/domain"

type EventType string

const (
	EventMessage EventType = "message"
	EventStatus  EventType = "statusChanged"
)

// Event is one fan-out unit for a room. Message events carry the persisted
// message and are ordered by its Seq. Status events are not persisted and are
// ordered by Version, the project's status version at commit.
type Event struct {
	Type      EventType       `json:"type"`
	ProjectID string          `json:"projectId"`
	Message   *domain.Message `json:"message,omitempty"`
	Status    domain.Status   `json:"status,omitempty"`
	Version   int64           `json:"version,omitempty"`
}

// Subscriber is a room member, typically one socket connection.
//
// Deliver must not block. Returning false means the subscriber can no longer
// keep up; the hub then removes it from every room.
type Subscriber interface {
	ID() string
	Deliver(Event) bool
}
