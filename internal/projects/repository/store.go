package repository

import (
	"context"

	"github.com/sb-works/collab-backend/internal/projects/domain"
)

// Store is the durable record of projects, applications and messages.
//
// Implementations return domain.ErrNotFound for missing records and
// domain.ErrInvalidTransition when a conditional write finds the record in a
// state other than the expected one. Every other error is a store failure.
// Returned values are always copies owned by the caller.
type Store interface {
	CreateProject(ctx context.Context, p *domain.Project) (*domain.Project, error)
	GetProject(ctx context.Context, id string) (*domain.Project, error)
	ListProjects(ctx context.Context, f ProjectFilter) ([]domain.Project, error)

	// UpdateStatus moves a project from one status to another only if it is
	// currently in from. Moving to Open clears the freelancer.
	UpdateStatus(ctx context.Context, id string, from, to domain.Status) (*domain.Project, error)
	// Suspend records the current status as SuspendedFrom and sets Suspended.
	Suspend(ctx context.Context, id string) (*domain.Project, error)
	// Reinstate restores SuspendedFrom on a suspended project.
	Reinstate(ctx context.Context, id string) (*domain.Project, error)
	// DeleteOpenProject removes an Open project together with its applications
	// and messages, returning the number of applications removed.
	DeleteOpenProject(ctx context.Context, id string) (int, error)

	// CreateApplication stores a Pending application against an Open project.
	CreateApplication(ctx context.Context, a *domain.Application) (*domain.Application, error)
	GetApplication(ctx context.Context, id string) (*domain.Application, error)
	ListApplications(ctx context.Context, f ApplicationFilter) ([]domain.Application, error)
	// AcceptApplication atomically accepts a Pending application, moves its
	// Open project to Active with the applicant as freelancer and rejects all
	// sibling Pending applications.
	AcceptApplication(ctx context.Context, id string) (*domain.Application, *domain.Project, error)
	RejectApplication(ctx context.Context, id string) (*domain.Application, error)

	// AppendMessage assigns ID, Seq and CreatedAt and persists the message.
	AppendMessage(ctx context.Context, m *domain.Message) (*domain.Message, error)
	// ListMessages returns messages with Seq > afterSeq in persistence order.
	ListMessages(ctx context.Context, projectID string, afterSeq int64) ([]domain.Message, error)
	LastMessageSeq(ctx context.Context, projectID string) (int64, error)

	FindViolations(ctx context.Context) ([]domain.Violation, error)
}

type ProjectFilter struct {
	ClientID     string
	FreelancerID string
	Status       domain.Status
}

func (f ProjectFilter) match(p *domain.Project) bool {
	if f.ClientID != "" && p.ClientID != f.ClientID {
		return false
	}
	if f.FreelancerID != "" && !p.IsFreelancer(f.FreelancerID) {
		return false
	}
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	return true
}

type ApplicationFilter struct {
	ProjectID    string
	FreelancerID string
	Status       domain.ApplicationStatus
}

func (f ApplicationFilter) match(a *domain.Application) bool {
	if f.ProjectID != "" && a.ProjectID != f.ProjectID {
		return false
	}
	if f.FreelancerID != "" && a.FreelancerID != f.FreelancerID {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	return true
}
