package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sb-works/collab-backend/internal/logging"
	"github.com/sb-works/collab-backend/internal/metrics"
	"github.com/sb-works/collab-backend/internal/projects/domain"
)

// MessageStore is the part of the persistence store the hub writes through.
type MessageStore interface {
	AppendMessage(ctx context.Context, m *domain.Message) (*domain.Message, error)
	LastMessageSeq(ctx context.Context, projectID string) (int64, error)
}

const relayTimeout = 2 * time.Second

type Options struct {
	// Bus relays events between instances. Nil keeps fan-out in process.
	Bus Bus
	// GapTimeout bounds how long a room waits for a missing sequence number.
	GapTimeout time.Duration
}

// Hub owns room membership and fans persisted messages and status changes
// out to the members of each project's room.
//
// Lock order is h.mu before room.mu. Subscribers are evicted only after the
// room lock has been released.
type Hub struct {
	store      MessageStore
	bus        Bus
	gapTimeout time.Duration
	log        zerolog.Logger

	mu      sync.Mutex
	rooms   map[string]*room
	members map[string]map[string]struct{} // subscriber id -> project ids
}

func NewHub(store MessageStore, opts Options) *Hub {
	if opts.GapTimeout <= 0 {
		opts.GapTimeout = 2 * time.Second
	}
	return &Hub{
		store:      store,
		bus:        opts.Bus,
		gapTimeout: opts.GapTimeout,
		log:        logging.With("hub"),
		rooms:      make(map[string]*room),
		members:    make(map[string]map[string]struct{}),
	}
}

// Start subscribes to the relay bus, if any, and dispatches relayed events to
// local rooms until ctx is cancelled.
func (h *Hub) Start(ctx context.Context) error {
	if h.bus == nil {
		return nil
	}
	events, err := h.bus.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe relay: %w", err)
	}
	go func() {
		for ev := range events {
			h.Dispatch(ev)
		}
		h.log.Info().Msg("relay subscription closed")
	}()
	return nil
}

// Join subscribes s to the project's room. Joining a room twice is a no-op.
// A new member only sees events published after it joined.
//
// A new room is registered before the store is asked for its last sequence
// number. Messages dispatched in between are held until the room is primed, so
// nothing committed after the read waits on the gap timer.
func (h *Hub) Join(ctx context.Context, s Subscriber, projectID string) error {
	h.mu.Lock()
	r, exists := h.rooms[projectID]
	if !exists {
		r = newRoom(projectID, h.gapTimeout, h.evict)
		h.rooms[projectID] = r
	}
	if r.add(s) {
		set, ok := h.members[s.ID()]
		if !ok {
			set = make(map[string]struct{})
			h.members[s.ID()] = set
		}
		set[projectID] = struct{}{}
	}
	metrics.SetRooms(len(h.rooms))
	h.mu.Unlock()

	if exists {
		return nil
	}

	last, err := h.store.LastMessageSeq(ctx, projectID)
	if err != nil {
		h.LeaveRoom(s, projectID)
		// members that joined meanwhile take their position from the first message
		h.afterDispatch(r.prime(0))
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	h.afterDispatch(r.prime(last + 1))
	return nil
}

func (h *Hub) afterDispatch(evicted []Subscriber) {
	if len(evicted) > 0 {
		h.evict(evicted)
	}
}

// LeaveRoom removes s from one room.
func (h *Hub) LeaveRoom(s Subscriber, projectID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(s.ID(), projectID)
	metrics.SetRooms(len(h.rooms))
}

// Leave removes s from every room. Called when a connection goes away.
func (h *Hub) Leave(s Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for projectID := range h.members[s.ID()] {
		h.leaveLocked(s.ID(), projectID)
	}
	delete(h.members, s.ID())
	metrics.SetRooms(len(h.rooms))
}

func (h *Hub) leaveLocked(subID, projectID string) {
	if set, ok := h.members[subID]; ok {
		delete(set, projectID)
		if len(set) == 0 {
			delete(h.members, subID)
		}
	}
	r, ok := h.rooms[projectID]
	if !ok {
		return
	}
	if r.remove(subID) == 0 {
		r.close()
		delete(h.rooms, projectID)
	}
}

func (h *Hub) evict(subs []Subscriber) {
	for _, s := range subs {
		metrics.SlowConsumerDropped()
		h.log.Warn().Str("subscriber", s.ID()).Msg("dropping slow subscriber")
		h.Leave(s)
	}
}

// Publish persists a message and then fans it out to the room. It returns only
// after the store has acknowledged the write; on failure nothing is fanned out.
func (h *Hub) Publish(ctx context.Context, projectID, senderID string, p domain.Payload) (*domain.Message, error) {
	m, err := domain.NewMessage(projectID, senderID, p)
	if err != nil {
		metrics.MessagePublished("rejected")
		return nil, err
	}
	saved, err := h.store.AppendMessage(ctx, m)
	if err != nil {
		metrics.MessagePublished("error")
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	metrics.MessagePublished("ok")

	h.emit(ctx, Event{Type: EventMessage, ProjectID: projectID, Message: saved})
	return saved, nil
}

// BroadcastStatus fans a committed status change out to the room without
// persisting it. Rooms drop a status event whose version is not newer than
// the last one they delivered, so a late broadcast cannot roll members back.
func (h *Hub) BroadcastStatus(projectID string, status domain.Status, version int64) {
	metrics.StatusBroadcast()
	h.emit(context.Background(), Event{Type: EventStatus, ProjectID: projectID, Status: status, Version: version})
}

// emit routes an event through the relay when one is configured. If the
// relay refuses it, local members still get it. The caller's cancellation is
// ignored: once a message is persisted it must be fanned out.
func (h *Hub) emit(ctx context.Context, ev Event) {
	if h.bus != nil {
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), relayTimeout)
		err := h.bus.Publish(pctx, ev)
		cancel()
		if err == nil {
			return
		}
		h.log.Error().Err(err).Str("project_id", ev.ProjectID).Str("type", string(ev.Type)).
			Msg("relay publish failed, dispatching locally")
	}
	h.Dispatch(ev)
}

// Dispatch delivers an event to the local members of its room.
func (h *Hub) Dispatch(ev Event) {
	h.mu.Lock()
	r := h.rooms[ev.ProjectID]
	h.mu.Unlock()
	if r == nil {
		return
	}
	h.afterDispatch(r.dispatch(ev))
}

type Stats struct {
	Rooms       int `json:"rooms"`
	Subscribers int `json:"subscribers"`
}

func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Stats{Rooms: len(h.rooms), Subscribers: len(h.members)}
}

// Members reports how many local subscribers a room has.
func (h *Hub) Members(projectID string) int {
	h.mu.Lock()
	r := h.rooms[projectID]
	h.mu.Unlock()
	if r == nil {
		return 0
	}
	return r.size()
}
