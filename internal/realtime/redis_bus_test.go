package realtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sb-works/collab-backend/internal/projects/domain"
	"github.com/sb-works/collab-backend/internal/projects/repository"
)

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisBus_RoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := NewRedisBus(newRedis(t))
	events, err := bus.Subscribe(ctx)
	require.NoError(t, err)

	txt := "hello"
	want := Event{Type: EventMessage, ProjectID: "p1", Message: &domain.Message{ID: "m1", ProjectID: "p1", Type: domain.MessageText, Text: &txt, Seq: 7}}
	require.NoError(t, bus.Publish(ctx, want))

	select {
	case got := <-events:
		assert.Equal(t, want.ProjectID, got.ProjectID)
		assert.Equal(t, int64(7), got.Message.Seq)
		assert.Equal(t, "hello", *got.Message.Text)
	case <-time.After(2 * time.Second):
		t.Fatal("event not relayed")
	}

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, open := <-events:
			return !open
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHub_RelaysAcrossInstances(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := newRedis(t)
	store := repository.NewMemoryStore()
	pid := seedProject(t, store)

	hubA := NewHub(store, Options{Bus: NewRedisBus(client)})
	hubB := NewHub(store, Options{Bus: NewRedisBus(client)})
	require.NoError(t, hubA.Start(ctx))
	require.NoError(t, hubB.Start(ctx))

	onA, onB := newSub("a"), newSub("b")
	require.NoError(t, hubA.Join(ctx, onA, pid))
	require.NoError(t, hubB.Join(ctx, onB, pid))

	_, err := hubA.Publish(ctx, pid, "c", text("m1"))
	require.NoError(t, err)
	_, err = hubA.Publish(ctx, pid, "c", text("m2"))
	require.NoError(t, err)
	hubB.BroadcastStatus(pid, domain.StatusPendingApproval, 3)

	require.Eventually(t, func() bool { return len(onA.Events()) == 3 && len(onB.Events()) == 3 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"m1", "m2"}, onA.texts())
	assert.Equal(t, []string{"m1", "m2"}, onB.texts())
	for _, ev := range onA.Events() {
		if ev.Type == EventStatus {
			assert.Equal(t, int64(3), ev.Version)
		}
	}
}

type downBus struct{}

func (downBus) Publish(context.Context, Event) error { return errors.New("relay down") }
func (downBus) Subscribe(context.Context) (<-chan Event, error) {
	return make(chan Event), nil
}

func TestHub_RelayFailureFallsBackToLocal(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	pid := seedProject(t, store)
	hub := NewHub(store, Options{Bus: downBus{}})
	require.NoError(t, hub.Start(ctx))

	sub := newSub("s")
	require.NoError(t, hub.Join(ctx, sub, pid))

	_, err := hub.Publish(ctx, pid, "c", text("still here"))
	require.NoError(t, err)
	assert.Equal(t, []string{"still here"}, sub.texts())
}
