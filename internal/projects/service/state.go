package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sb-works/collab-backend/internal/logging"
	"github.com/sb-works/collab-backend/internal/projects/domain"
	"github.com/sb-works/collab-backend/internal/projects/repository"
)

// Directory resolves user ids to directory entries. Unknown ids are skipped.
type Directory interface {
	Lookup(ctx context.Context, ids []string) ([]domain.User, error)
}

// ProjectState is everything a client needs before opening the channel.
type ProjectState struct {
	Project      *domain.Project  `json:"project"`
	Messages     []domain.Message `json:"messages"`
	Participants []domain.User    `json:"participants,omitempty"`
}

// StateService serves read access to projects and decides who may see a
// project's conversation.
type StateService struct {
	store     repository.Store
	directory Directory
	strict    bool
	log       zerolog.Logger
}

// NewStateService creates the read side. With strict set, only the project's
// client, its freelancer and administrators can read history or join the room.
// directory may be nil.
func NewStateService(store repository.Store, directory Directory, strict bool) *StateService {
	return &StateService{
		store:     store,
		directory: directory,
		strict:    strict,
		log:       logging.With("state"),
	}
}

func (s *StateService) canSeeConversation(caller domain.Caller, p *domain.Project) bool {
	if !s.strict {
		return true
	}
	return caller.Can(domain.ActionViewAnyProject) || p.IsParticipant(caller.ID)
}

// Fetch returns the project and its message history in persistence order.
// afterSeq > 0 returns only newer messages. A caller outside the project may
// still read an Open listing, without its conversation.
func (s *StateService) Fetch(ctx context.Context, caller domain.Caller, projectID string, afterSeq int64) (*ProjectState, error) {
	if caller.ID == "" {
		return nil, domain.ErrUnauthenticated
	}
	p, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, storeErr(err)
	}

	state := &ProjectState{Project: p, Messages: []domain.Message{}}
	if !s.canSeeConversation(caller, p) {
		if p.Status != domain.StatusOpen {
			return nil, fmt.Errorf("%w: not a participant of this project", domain.ErrForbidden)
		}
		return state, nil
	}

	msgs, err := s.store.ListMessages(ctx, projectID, afterSeq)
	if err != nil {
		return nil, storeErr(err)
	}
	state.Messages = msgs
	state.Participants = s.participants(ctx, p)
	return state, nil
}

func (s *StateService) participants(ctx context.Context, p *domain.Project) []domain.User {
	if s.directory == nil {
		return nil
	}
	ids := []string{p.ClientID}
	if p.FreelancerID != nil {
		ids = append(ids, *p.FreelancerID)
	}
	users, err := s.directory.Lookup(ctx, ids)
	if err != nil {
		// the conversation is still usable without names
		s.log.Warn().Err(err).Str("project_id", p.ID).Msg("participant lookup failed")
		return nil
	}
	return users
}

// CanJoin reports whether the caller may subscribe to the project's room.
func (s *StateService) CanJoin(ctx context.Context, caller domain.Caller, projectID string) error {
	if caller.ID == "" {
		return domain.ErrUnauthenticated
	}
	p, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return storeErr(err)
	}
	if !s.canSeeConversation(caller, p) {
		return fmt.Errorf("%w: not a participant of this project", domain.ErrForbidden)
	}
	return nil
}

// List returns the projects relevant to the caller: a client's own projects,
// a freelancer's assigned projects plus optionally the Open listings, or
// everything for an administrator.
func (s *StateService) List(ctx context.Context, caller domain.Caller, status domain.Status) ([]domain.Project, error) {
	f := repository.ProjectFilter{Status: status}
	switch caller.Role {
	case domain.RoleClient:
		f.ClientID = caller.ID
	case domain.RoleFreelancer:
		if status != domain.StatusOpen {
			f.FreelancerID = caller.ID
		}
	case domain.RoleAdmin:
	default:
		return nil, domain.ErrUnauthenticated
	}
	out, err := s.store.ListProjects(ctx, f)
	return out, storeErr(err)
}
