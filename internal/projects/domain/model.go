package domain

import (
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of a project. The string values are the ones
// clients already render, so "Pending Approval" keeps its space.
type Status string

const (
	StatusOpen            Status = "Open"
	StatusActive          Status = "Active"
	StatusPendingApproval Status = "Pending Approval"
	StatusCompleted       Status = "Completed"
	StatusSuspended       Status = "Suspended"
)

func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusActive, StatusPendingApproval, StatusCompleted, StatusSuspended:
		return true
	}
	return false
}

// Assigned reports whether a project in this status must carry a freelancer.
func (s Status) Assigned() bool {
	return s == StatusActive || s == StatusPendingApproval || s == StatusCompleted
}

// Suspendable reports whether an administrator may suspend from this status.
func (s Status) Suspendable() bool {
	return s == StatusOpen || s == StatusActive || s == StatusPendingApproval
}

// Project represents a unit of client work and the room key for its collaboration channel.
// Title, description, budget and skills are opaque to the lifecycle.
type Project struct {
	ID            string    `json:"_id"`
	ClientID      string    `json:"client"`
	FreelancerID  *string   `json:"freelancer"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Budget        float64   `json:"budget"`
	Skills        []string  `json:"skills"`
	Status        Status    `json:"status"`
	SuspendedFrom *Status   `json:"suspendedFrom,omitempty"`
	// StatusVersion grows by one with every committed status change. Live
	// clients use it to discard a status event older than what they hold.
	StatusVersion int64     `json:"statusVersion"`
	MessageSeq    int64     `json:"-"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// OperativeStatus is the status the project would have without an administrative
// suspension. The freelancer invariant is evaluated against it.
func (p *Project) OperativeStatus() Status {
	if p.Status == StatusSuspended && p.SuspendedFrom != nil {
		return *p.SuspendedFrom
	}
	return p.Status
}

// CheckAssignment verifies that freelancer is set iff the operative status requires it.
func (p *Project) CheckAssignment() error {
	assigned := p.FreelancerID != nil && *p.FreelancerID != ""
	if assigned != p.OperativeStatus().Assigned() {
		return fmt.Errorf("project %s: status %q with freelancer set=%t", p.ID, p.Status, assigned)
	}
	return nil
}

func (p *Project) IsClient(userID string) bool {
	return userID != "" && p.ClientID == userID
}

func (p *Project) IsFreelancer(userID string) bool {
	return userID != "" && p.FreelancerID != nil && *p.FreelancerID == userID
}

// IsParticipant reports whether the user is the owning client or the assigned freelancer.
func (p *Project) IsParticipant(userID string) bool {
	return p.IsClient(userID) || p.IsFreelancer(userID)
}

// Clone returns a deep copy so callers can never alias store-owned state.
func (p *Project) Clone() *Project {
	if p == nil {
		return nil
	}
	cp := *p
	if p.FreelancerID != nil {
		f := *p.FreelancerID
		cp.FreelancerID = &f
	}
	if p.SuspendedFrom != nil {
		s := *p.SuspendedFrom
		cp.SuspendedFrom = &s
	}
	cp.Skills = append([]string(nil), p.Skills...)
	return &cp
}

// ProjectDraft carries the client-supplied fields of a new project.
type ProjectDraft struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Budget      float64  `json:"budget"`
	Skills      []string `json:"skills"`
}

func (d *ProjectDraft) Normalize() error {
	d.Title = strings.TrimSpace(d.Title)
	d.Description = strings.TrimSpace(d.Description)
	if d.Title == "" || d.Description == "" {
		return fmt.Errorf("%w: title and description are required", ErrInvalidInput)
	}
	if d.Budget <= 0 {
		return fmt.Errorf("%w: budget must be positive", ErrInvalidInput)
	}
	skills := make([]string, 0, len(d.Skills))
	for _, s := range d.Skills {
		if s = strings.TrimSpace(s); s != "" {
			skills = append(skills, s)
		}
	}
	d.Skills = skills
	return nil
}

// Violation describes a stored record that breaks a lifecycle invariant.
type Violation struct {
	ProjectID string `json:"projectId"`
	Kind      string `json:"kind"`
	Detail    string `json:"detail"`
}

const (
	ViolationAssignment       = "freelancer_assignment"
	ViolationMultipleAccepted = "multiple_accepted_applications"
)
