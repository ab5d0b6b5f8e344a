package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sb-works/collab-backend/internal/projects/domain"
	"github.com/sb-works/collab-backend/internal/projects/repository"
)

type stubDirectory struct {
	users map[string]domain.User
	err   error
}

func (d stubDirectory) Lookup(_ context.Context, ids []string) ([]domain.User, error) {
	if d.err != nil {
		return nil, d.err
	}
	var out []domain.User
	for _, id := range ids {
		if u, ok := d.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func postMessage(t *testing.T, store repository.Store, projectID, sender, text string) *domain.Message {
	t.Helper()
	m, err := domain.NewMessage(projectID, sender, domain.Payload{Text: text})
	require.NoError(t, err)
	saved, err := store.AppendMessage(context.Background(), m)
	require.NoError(t, err)
	return saved
}

func TestState_FetchReturnsHistoryInOrder(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newLifecycle(t)
	p := activeProject(t, svc)

	postMessage(t, store, p.ID, client.ID, "first")
	postMessage(t, store, p.ID, freelancer.ID, "second")
	postMessage(t, store, p.ID, client.ID, "third")

	dir := stubDirectory{users: map[string]domain.User{
		client.ID:     {ID: client.ID, FullName: "Cli Ent", Role: domain.RoleClient},
		freelancer.ID: {ID: freelancer.ID, FullName: "Free Lancer", Role: domain.RoleFreelancer},
	}}
	state := NewStateService(store, dir, true)

	got, err := state.Fetch(ctx, freelancer, p.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, got.Project.Status)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, "first", *got.Messages[0].Text)
	assert.Equal(t, "third", *got.Messages[2].Text)
	assert.Len(t, got.Participants, 2)

	tail, err := state.Fetch(ctx, client, p.ID, 2)
	require.NoError(t, err)
	require.Len(t, tail.Messages, 1)
	assert.Equal(t, int64(3), tail.Messages[0].Seq)
}

func TestState_StrictAccess(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newLifecycle(t)
	active := activeProject(t, svc)
	open := openProject(t, svc)
	postMessage(t, store, open.ID, client.ID, "private note")

	strict := NewStateService(store, nil, true)

	_, err := strict.Fetch(ctx, freeB, active.ID, 0)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.ErrorIs(t, strict.CanJoin(ctx, freeB, active.ID), domain.ErrForbidden)

	listing, err := strict.Fetch(ctx, freeB, open.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, open.ID, listing.Project.ID)
	assert.Empty(t, listing.Messages)

	assert.NoError(t, strict.CanJoin(ctx, admin, active.ID))
	assert.NoError(t, strict.CanJoin(ctx, freelancer, active.ID))
	assert.NoError(t, strict.CanJoin(ctx, client, active.ID))
	assert.ErrorIs(t, strict.CanJoin(ctx, client, "missing"), domain.ErrNotFound)
	assert.ErrorIs(t, strict.CanJoin(ctx, domain.Caller{}, active.ID), domain.ErrUnauthenticated)

	open2 := NewStateService(store, nil, false)
	assert.NoError(t, open2.CanJoin(ctx, freeB, active.ID))
	got, err := open2.Fetch(ctx, freeB, open.ID, 0)
	require.NoError(t, err)
	assert.Len(t, got.Messages, 1)
}

func TestState_DirectoryFailureIsNotFatal(t *testing.T) {
	svc, store, _ := newLifecycle(t)
	p := activeProject(t, svc)

	state := NewStateService(store, stubDirectory{err: errors.New("timeout")}, true)
	got, err := state.Fetch(context.Background(), client, p.ID, 0)
	require.NoError(t, err)
	assert.Nil(t, got.Participants)
}

func TestState_List(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newLifecycle(t)
	active := activeProject(t, svc)
	openProject(t, svc)

	state := NewStateService(store, nil, true)

	mine, err := state.List(ctx, client, "")
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	assigned, err := state.List(ctx, freelancer, "")
	require.NoError(t, err)
	require.Len(t, assigned, 1)
	assert.Equal(t, active.ID, assigned[0].ID)

	browse, err := state.List(ctx, freeB, domain.StatusOpen)
	require.NoError(t, err)
	assert.Len(t, browse, 1)

	all, err := state.List(ctx, admin, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
