package domain

import (
	"fmt"
	"strings"
	"time"
)

type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "Pending"
	ApplicationAccepted ApplicationStatus = "Accepted"
	ApplicationRejected ApplicationStatus = "Rejected"
)

// Application is a freelancer's bid on an Open project. Once Accepted or
// Rejected it never changes again.
type Application struct {
	ID             string            `json:"_id"`
	ProjectID      string            `json:"project"`
	FreelancerID   string            `json:"freelancer"`
	Proposal       string            `json:"proposal"`
	ProposedBudget float64           `json:"proposedBudget"`
	Status         ApplicationStatus `json:"status"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

func (a *Application) Clone() *Application {
	if a == nil {
		return nil
	}
	cp := *a
	return &cp
}

type ApplicationDraft struct {
	Proposal       string  `json:"proposal"`
	ProposedBudget float64 `json:"proposedBudget"`
}

func (d *ApplicationDraft) Normalize() error {
	d.Proposal = strings.TrimSpace(d.Proposal)
	if d.Proposal == "" {
		return fmt.Errorf("%w: proposal is required", ErrInvalidInput)
	}
	if d.ProposedBudget <= 0 {
		return fmt.Errorf("%w: proposed budget must be positive", ErrInvalidInput)
	}
	return nil
}
