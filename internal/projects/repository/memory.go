package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sb-works/collab-backend/internal/projects/domain"
)

// MemoryStore keeps everything in process memory behind a single mutex. It is
// used by tests and by STORE_DRIVER=memory for local development.
type MemoryStore struct {
	mu       sync.Mutex
	now      func() time.Time
	projects map[string]*domain.Project
	apps     map[string]*domain.Application
	messages map[string][]*domain.Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:      func() time.Time { return time.Now().UTC() },
		projects: make(map[string]*domain.Project),
		apps:     make(map[string]*domain.Application),
		messages: make(map[string][]*domain.Message),
	}
}

func (s *MemoryStore) CreateProject(_ context.Context, p *domain.Project) (*domain.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := p.Clone()
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	if _, exists := s.projects[cp.ID]; exists {
		return nil, fmt.Errorf("project %s already exists", cp.ID)
	}
	if cp.Status == "" {
		cp.Status = domain.StatusOpen
	}
	now := s.now()
	cp.CreatedAt, cp.UpdatedAt = now, now
	cp.MessageSeq = 0
	cp.StatusVersion = 1
	s.projects[cp.ID] = cp
	return cp.Clone(), nil
}

func (s *MemoryStore) GetProject(_ context.Context, id string) (*domain.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p.Clone(), nil
}

func (s *MemoryStore) ListProjects(_ context.Context, f ProjectFilter) ([]domain.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Project, 0, len(s.projects))
	for _, p := range s.projects {
		if f.match(p) {
			out = append(out, *p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, id string, from, to domain.Status) (*domain.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if p.Status != from {
		return nil, fmt.Errorf("%w: project %s is %q, expected %q", domain.ErrInvalidTransition, id, p.Status, from)
	}
	p.Status = to
	if to == domain.StatusOpen {
		p.FreelancerID = nil
	}
	p.StatusVersion++
	p.UpdatedAt = s.now()
	return p.Clone(), nil
}

func (s *MemoryStore) Suspend(_ context.Context, id string) (*domain.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if !p.Status.Suspendable() {
		return nil, fmt.Errorf("%w: cannot suspend a %q project", domain.ErrInvalidTransition, p.Status)
	}
	prev := p.Status
	p.SuspendedFrom = &prev
	p.Status = domain.StatusSuspended
	p.StatusVersion++
	p.UpdatedAt = s.now()
	return p.Clone(), nil
}

func (s *MemoryStore) Reinstate(_ context.Context, id string) (*domain.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if p.Status != domain.StatusSuspended || p.SuspendedFrom == nil {
		return nil, fmt.Errorf("%w: project %s is not suspended", domain.ErrInvalidTransition, id)
	}
	p.Status = *p.SuspendedFrom
	p.SuspendedFrom = nil
	p.StatusVersion++
	p.UpdatedAt = s.now()
	return p.Clone(), nil
}

func (s *MemoryStore) DeleteOpenProject(_ context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[id]
	if !ok {
		return 0, domain.ErrNotFound
	}
	if p.Status != domain.StatusOpen {
		return 0, fmt.Errorf("%w: only Open projects can be deleted", domain.ErrInvalidTransition)
	}

	removed := 0
	for appID, a := range s.apps {
		if a.ProjectID == id {
			delete(s.apps, appID)
			removed++
		}
	}
	delete(s.messages, id)
	delete(s.projects, id)
	return removed, nil
}

func (s *MemoryStore) CreateApplication(_ context.Context, a *domain.Application) (*domain.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[a.ProjectID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if p.Status != domain.StatusOpen {
		return nil, fmt.Errorf("%w: project is %q and no longer accepts applications", domain.ErrInvalidTransition, p.Status)
	}
	for _, existing := range s.apps {
		if existing.ProjectID == a.ProjectID && existing.FreelancerID == a.FreelancerID {
			return nil, fmt.Errorf("%w: already applied to this project", domain.ErrInvalidInput)
		}
	}

	cp := a.Clone()
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	cp.Status = domain.ApplicationPending
	now := s.now()
	cp.CreatedAt, cp.UpdatedAt = now, now
	s.apps[cp.ID] = cp
	return cp.Clone(), nil
}

func (s *MemoryStore) GetApplication(_ context.Context, id string) (*domain.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.apps[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return a.Clone(), nil
}

func (s *MemoryStore) ListApplications(_ context.Context, f ApplicationFilter) ([]domain.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Application, 0)
	for _, a := range s.apps {
		if f.match(a) {
			out = append(out, *a.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) AcceptApplication(_ context.Context, id string) (*domain.Application, *domain.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.apps[id]
	if !ok {
		return nil, nil, domain.ErrNotFound
	}
	p, ok := s.projects[a.ProjectID]
	if !ok {
		return nil, nil, domain.ErrNotFound
	}
	if p.Status != domain.StatusOpen {
		return nil, nil, fmt.Errorf("%w: project is %q", domain.ErrInvalidTransition, p.Status)
	}
	if a.Status != domain.ApplicationPending {
		return nil, nil, fmt.Errorf("%w: application is %q", domain.ErrInvalidTransition, a.Status)
	}

	now := s.now()
	a.Status = domain.ApplicationAccepted
	a.UpdatedAt = now
	for _, sib := range s.apps {
		if sib.ProjectID == p.ID && sib.ID != a.ID && sib.Status == domain.ApplicationPending {
			sib.Status = domain.ApplicationRejected
			sib.UpdatedAt = now
		}
	}
	freelancer := a.FreelancerID
	p.FreelancerID = &freelancer
	p.Status = domain.StatusActive
	p.StatusVersion++
	p.UpdatedAt = now
	return a.Clone(), p.Clone(), nil
}

func (s *MemoryStore) RejectApplication(_ context.Context, id string) (*domain.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.apps[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if a.Status != domain.ApplicationPending {
		return nil, fmt.Errorf("%w: application is %q", domain.ErrInvalidTransition, a.Status)
	}
	a.Status = domain.ApplicationRejected
	a.UpdatedAt = s.now()
	return a.Clone(), nil
}

func (s *MemoryStore) AppendMessage(_ context.Context, m *domain.Message) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[m.ProjectID]
	if !ok {
		return nil, domain.ErrNotFound
	}

	cp := m.Clone()
	cp.ID = uuid.NewString()
	p.MessageSeq++
	cp.Seq = p.MessageSeq
	cp.CreatedAt = s.now()
	// creation time never runs backwards within a project
	if hist := s.messages[p.ID]; len(hist) > 0 {
		if last := hist[len(hist)-1].CreatedAt; cp.CreatedAt.Before(last) {
			cp.CreatedAt = last
		}
	}
	s.messages[p.ID] = append(s.messages[p.ID], cp)
	return cp.Clone(), nil
}

func (s *MemoryStore) ListMessages(_ context.Context, projectID string, afterSeq int64) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[projectID]; !ok {
		return nil, domain.ErrNotFound
	}
	hist := s.messages[projectID]
	out := make([]domain.Message, 0, len(hist))
	for _, m := range hist {
		if m.Seq > afterSeq {
			out = append(out, *m.Clone())
		}
	}
	return out, nil
}

func (s *MemoryStore) LastMessageSeq(_ context.Context, projectID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[projectID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	return p.MessageSeq, nil
}

func (s *MemoryStore) FindViolations(_ context.Context) ([]domain.Violation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accepted := make(map[string]int)
	for _, a := range s.apps {
		if a.Status == domain.ApplicationAccepted {
			accepted[a.ProjectID]++
		}
	}

	var out []domain.Violation
	for _, p := range s.projects {
		if err := p.CheckAssignment(); err != nil {
			out = append(out, domain.Violation{ProjectID: p.ID, Kind: domain.ViolationAssignment, Detail: err.Error()})
		}
		if n := accepted[p.ID]; n > 1 {
			out = append(out, domain.Violation{
				ProjectID: p.ID,
				Kind:      domain.ViolationMultipleAccepted,
				Detail:    fmt.Sprintf("%d accepted applications", n),
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProjectID != out[j].ProjectID {
			return out[i].ProjectID < out[j].ProjectID
		}
		return out[i].Kind < out[j].Kind
	})
	return out, nil
}

// Put stores p as-is, bypassing lifecycle checks. Used to seed fixtures and
// to reproduce corrupt records for the audit job.
func (s *MemoryStore) Put(p *domain.Project) {
	s.mu.Lock()
	s.projects[p.ID] = p.Clone()
	s.mu.Unlock()
}

// PutApplication stores a as-is, bypassing lifecycle checks.
func (s *MemoryStore) PutApplication(a *domain.Application) {
	s.mu.Lock()
	s.apps[a.ID] = a.Clone()
	s.mu.Unlock()
}

var _ Store = (*MemoryStore)(nil)
