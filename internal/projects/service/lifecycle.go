package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sb-works/collab-backend/internal/logging"
	"github.com/sb-works/collab-backend/internal/metrics"
	"github.com/sb-works/collab-backend/internal/projects/domain"
	"github.com/sb-works/collab-backend/internal/projects/repository"
)

// StatusNotifier receives a project's new status after a transition has been
// committed, together with the status version the commit produced.
// Implementations must not block.
type StatusNotifier interface {
	BroadcastStatus(projectID string, status domain.Status, version int64)
}

type noopNotifier struct{}

func (noopNotifier) BroadcastStatus(string, domain.Status, int64) {}

// LifecycleService enforces the project state machine and who may drive it.
type LifecycleService struct {
	store    repository.Store
	notifier StatusNotifier
	log      zerolog.Logger
}

// NewLifecycleService creates a lifecycle service. A nil notifier disables
// status broadcasts.
func NewLifecycleService(store repository.Store, notifier StatusNotifier) *LifecycleService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &LifecycleService{
		store:    store,
		notifier: notifier,
		log:      logging.With("lifecycle"),
	}
}

// storeErr passes lifecycle sentinels through and classifies anything else as
// a persistence failure.
func storeErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrForbidden):
		return err
	case errors.Is(err, domain.ErrPersistence):
		return err
	default:
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
}

func record(op string, err error) {
	code := "ok"
	if err != nil {
		code = domain.ErrorCode(err)
	}
	metrics.Transition(op, code)
}

func authorize(caller domain.Caller, action domain.Action) error {
	if caller.ID == "" {
		return domain.ErrUnauthenticated
	}
	if !caller.Can(action) {
		return fmt.Errorf("%w: role %q cannot %s", domain.ErrForbidden, caller.Role, action)
	}
	return nil
}

func (s *LifecycleService) announce(p *domain.Project) {
	s.notifier.BroadcastStatus(p.ID, p.Status, p.StatusVersion)
	s.log.Info().Str("project_id", p.ID).Str("status", string(p.Status)).
		Int64("status_version", p.StatusVersion).Msg("status changed")
}

// CreateProject opens a new project owned by the calling client.
func (s *LifecycleService) CreateProject(ctx context.Context, caller domain.Caller, draft domain.ProjectDraft) (p *domain.Project, err error) {
	defer func() { record("create", err) }()

	if err := authorize(caller, domain.ActionCreateProject); err != nil {
		return nil, err
	}
	if err := draft.Normalize(); err != nil {
		return nil, err
	}

	p, err = s.store.CreateProject(ctx, &domain.Project{
		ClientID:    caller.ID,
		Title:       draft.Title,
		Description: draft.Description,
		Budget:      draft.Budget,
		Skills:      draft.Skills,
		Status:      domain.StatusOpen,
	})
	return p, storeErr(err)
}

// Apply records a freelancer's application on an Open project.
func (s *LifecycleService) Apply(ctx context.Context, caller domain.Caller, projectID string, draft domain.ApplicationDraft) (a *domain.Application, err error) {
	defer func() { record("apply", err) }()

	if err := authorize(caller, domain.ActionApply); err != nil {
		return nil, err
	}
	if err := draft.Normalize(); err != nil {
		return nil, err
	}

	a, err = s.store.CreateApplication(ctx, &domain.Application{
		ProjectID:      projectID,
		FreelancerID:   caller.ID,
		Proposal:       draft.Proposal,
		ProposedBudget: draft.ProposedBudget,
	})
	return a, storeErr(err)
}

// ListApplications returns a project's applications to its owning client or
// an administrator.
func (s *LifecycleService) ListApplications(ctx context.Context, caller domain.Caller, projectID string) ([]domain.Application, error) {
	if err := authorize(caller, domain.ActionListApplications); err != nil {
		return nil, err
	}
	p, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, storeErr(err)
	}
	if !caller.IsAdmin() && !p.IsClient(caller.ID) {
		return nil, fmt.Errorf("%w: not the owner of this project", domain.ErrForbidden)
	}
	apps, err := s.store.ListApplications(ctx, repository.ApplicationFilter{ProjectID: projectID})
	return apps, storeErr(err)
}

// applicationFor loads an application and its project and checks that the
// caller owns the project.
func (s *LifecycleService) applicationFor(ctx context.Context, caller domain.Caller, appID string) (*domain.Application, *domain.Project, error) {
	a, err := s.store.GetApplication(ctx, appID)
	if err != nil {
		return nil, nil, storeErr(err)
	}
	p, err := s.store.GetProject(ctx, a.ProjectID)
	if err != nil {
		return nil, nil, storeErr(err)
	}
	if !p.IsClient(caller.ID) {
		return nil, nil, fmt.Errorf("%w: not the owner of this project", domain.ErrForbidden)
	}
	return a, p, nil
}

// AcceptApplication accepts a Pending application, activating its project
// and rejecting every other Pending application in the same write.
func (s *LifecycleService) AcceptApplication(ctx context.Context, caller domain.Caller, appID string) (a *domain.Application, p *domain.Project, err error) {
	defer func() { record("accept", err) }()

	if err := authorize(caller, domain.ActionAcceptApplication); err != nil {
		return nil, nil, err
	}
	a, p, err = s.applicationFor(ctx, caller, appID)
	if err != nil {
		return nil, nil, err
	}
	if p.Status != domain.StatusOpen {
		return nil, nil, fmt.Errorf("%w: project is %q", domain.ErrInvalidTransition, p.Status)
	}
	if a.Status != domain.ApplicationPending {
		return nil, nil, fmt.Errorf("%w: application is %q", domain.ErrInvalidTransition, a.Status)
	}

	a, p, err = s.store.AcceptApplication(ctx, appID)
	if err != nil {
		return nil, nil, storeErr(err)
	}
	s.announce(p)
	return a, p, nil
}

// RejectApplication declines a Pending application. The project is untouched.
func (s *LifecycleService) RejectApplication(ctx context.Context, caller domain.Caller, appID string) (a *domain.Application, err error) {
	defer func() { record("reject_application", err) }()

	if err := authorize(caller, domain.ActionRejectApplication); err != nil {
		return nil, err
	}
	a, _, err = s.applicationFor(ctx, caller, appID)
	if err != nil {
		return nil, err
	}
	if a.Status != domain.ApplicationPending {
		return nil, fmt.Errorf("%w: application is %q", domain.ErrInvalidTransition, a.Status)
	}

	a, err = s.store.RejectApplication(ctx, appID)
	return a, storeErr(err)
}

type transition struct {
	op     string
	action domain.Action
	from   domain.Status
	to     domain.Status
	// owns reports whether the caller holds the project-side role the
	// transition needs.
	owns func(p *domain.Project, callerID string) bool
}

var (
	submitWork = transition{
		op: "submit", action: domain.ActionSubmitWork,
		from: domain.StatusActive, to: domain.StatusPendingApproval,
		owns: (*domain.Project).IsFreelancer,
	}
	approveWork = transition{
		op: "approve", action: domain.ActionApproveWork,
		from: domain.StatusPendingApproval, to: domain.StatusCompleted,
		owns: (*domain.Project).IsClient,
	}
	rejectWork = transition{
		op: "reject", action: domain.ActionRejectWork,
		from: domain.StatusPendingApproval, to: domain.StatusActive,
		owns: (*domain.Project).IsClient,
	}
)

func (s *LifecycleService) apply(ctx context.Context, caller domain.Caller, projectID string, t transition) (p *domain.Project, err error) {
	defer func() { record(t.op, err) }()

	if err := authorize(caller, t.action); err != nil {
		return nil, err
	}
	p, err = s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, storeErr(err)
	}
	if !t.owns(p, caller.ID) {
		return nil, fmt.Errorf("%w: caller cannot %s this project", domain.ErrForbidden, t.op)
	}
	if p.Status != t.from {
		return nil, fmt.Errorf("%w: cannot %s a %q project", domain.ErrInvalidTransition, t.op, p.Status)
	}

	p, err = s.store.UpdateStatus(ctx, projectID, t.from, t.to)
	if err != nil {
		return nil, storeErr(err)
	}
	s.announce(p)
	return p, nil
}

// Submit moves an Active project to Pending Approval on behalf of its
// assigned freelancer.
func (s *LifecycleService) Submit(ctx context.Context, caller domain.Caller, projectID string) (*domain.Project, error) {
	return s.apply(ctx, caller, projectID, submitWork)
}

// Approve completes a project awaiting approval. Completed is terminal.
func (s *LifecycleService) Approve(ctx context.Context, caller domain.Caller, projectID string) (*domain.Project, error) {
	return s.apply(ctx, caller, projectID, approveWork)
}

// Reject sends submitted work back to the freelancer; the project returns to Active.
func (s *LifecycleService) Reject(ctx context.Context, caller domain.Caller, projectID string) (*domain.Project, error) {
	return s.apply(ctx, caller, projectID, rejectWork)
}

// Delete removes an Open project and its applications. Nothing is broadcast:
// the room simply goes quiet and clients re-sync.
func (s *LifecycleService) Delete(ctx context.Context, caller domain.Caller, projectID string) (err error) {
	defer func() { record("delete", err) }()

	if err := authorize(caller, domain.ActionDeleteProject); err != nil {
		return err
	}
	p, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return storeErr(err)
	}
	if !p.IsClient(caller.ID) {
		return fmt.Errorf("%w: not the owner of this project", domain.ErrForbidden)
	}
	if p.Status != domain.StatusOpen {
		return fmt.Errorf("%w: only Open projects can be deleted", domain.ErrInvalidTransition)
	}

	removed, err := s.store.DeleteOpenProject(ctx, projectID)
	if err != nil {
		return storeErr(err)
	}
	s.log.Info().Str("project_id", projectID).Int("applications_removed", removed).Msg("project deleted")
	return nil
}

// Suspend freezes a project; the status it had is kept for Reinstate.
func (s *LifecycleService) Suspend(ctx context.Context, caller domain.Caller, projectID string) (p *domain.Project, err error) {
	defer func() { record("suspend", err) }()

	if err := authorize(caller, domain.ActionSuspend); err != nil {
		return nil, err
	}
	p, err = s.store.Suspend(ctx, projectID)
	if err != nil {
		return nil, storeErr(err)
	}
	s.announce(p)
	return p, nil
}

// Reinstate returns a suspended project to the status it was suspended from.
func (s *LifecycleService) Reinstate(ctx context.Context, caller domain.Caller, projectID string) (p *domain.Project, err error) {
	defer func() { record("reinstate", err) }()

	if err := authorize(caller, domain.ActionReinstate); err != nil {
		return nil, err
	}
	p, err = s.store.Reinstate(ctx, projectID)
	if err != nil {
		return nil, storeErr(err)
	}
	s.announce(p)
	return p, nil
}
