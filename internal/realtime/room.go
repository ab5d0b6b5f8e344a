package realtime

import (
	"sort"
	"sync"
	"time"
)

// room fans events out to its members in message sequence order. Messages
// that arrive ahead of the next expected sequence wait in pending until the
// gap fills or gapTimeout passes, at which point delivery skips forward.
//
// A room starts unprimed: messages are only collected until prime tells it
// where the sequence starts. next == 0 means the room adopts the sequence of
// the first message it sees.
type room struct {
	projectID  string
	gapTimeout time.Duration
	onEvict    func([]Subscriber)

	mu            sync.Mutex
	members       map[string]Subscriber
	primed        bool
	next          int64
	pending       map[int64]Event
	timer         *time.Timer
	statusVersion int64
}

func newRoom(projectID string, gapTimeout time.Duration, onEvict func([]Subscriber)) *room {
	return &room{
		projectID:  projectID,
		gapTimeout: gapTimeout,
		onEvict:    onEvict,
		members:    make(map[string]Subscriber),
		pending:    make(map[int64]Event),
	}
}

// prime sets the next expected sequence and releases whatever was collected
// meanwhile. Messages below next were committed before the room existed.
func (r *room) prime(next int64) []Subscriber {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.primed = true
	r.next = next
	if next > 0 {
		for seq := range r.pending {
			if seq < next {
				delete(r.pending, seq)
			}
		}
	} else if len(r.pending) > 0 {
		r.next = lowest(r.pending)
	}
	evicted := r.drainLocked()
	if len(r.pending) > 0 {
		r.armLocked()
	}
	return evicted
}

func lowest(pending map[int64]Event) int64 {
	seqs := make([]int64, 0, len(pending))
	for seq := range pending {
		seqs = append(seqs, seq)
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })
	return seqs[0]
}

func (r *room) add(s Subscriber) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[s.ID()]; ok {
		return false
	}
	r.members[s.ID()] = s
	return true
}

func (r *room) remove(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members, id)
	return len(r.members)
}

func (r *room) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

func (r *room) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.pending = make(map[int64]Event)
}

// dispatch delivers ev and returns the members that failed to accept it. The
// caller evicts them after the room lock is released.
func (r *room) dispatch(ev Event) []Subscriber {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ev.Type == EventStatus {
		if ev.Version > 0 {
			if ev.Version <= r.statusVersion {
				return nil
			}
			r.statusVersion = ev.Version
		}
		return r.deliverLocked(ev)
	}
	if ev.Type != EventMessage || ev.Message == nil {
		return r.deliverLocked(ev)
	}

	seq := ev.Message.Seq
	if !r.primed {
		r.pending[seq] = ev
		return nil
	}
	if r.next == 0 {
		r.next = seq
	}
	switch {
	case seq < r.next:
		// already delivered, or published before this room existed
		return nil
	case seq > r.next:
		r.pending[seq] = ev
		r.armLocked()
		return nil
	}

	evicted := r.deliverLocked(ev)
	r.next++
	return append(evicted, r.drainLocked()...)
}

func (r *room) deliverLocked(ev Event) []Subscriber {
	var evicted []Subscriber
	for id, s := range r.members {
		if !s.Deliver(ev) {
			delete(r.members, id)
			evicted = append(evicted, s)
		}
	}
	return evicted
}

func (r *room) drainLocked() []Subscriber {
	var evicted []Subscriber
	for {
		ev, ok := r.pending[r.next]
		if !ok {
			break
		}
		delete(r.pending, r.next)
		evicted = append(evicted, r.deliverLocked(ev)...)
		r.next++
	}
	if len(r.pending) == 0 && r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	return evicted
}

func (r *room) armLocked() {
	if r.timer != nil {
		return
	}
	r.timer = time.AfterFunc(r.gapTimeout, r.skipGap)
}

// skipGap gives up on the missing sequence numbers and delivers what is
// pending. A missing message is still in the store and reachable through a
// history fetch.
func (r *room) skipGap() {
	r.mu.Lock()
	r.timer = nil
	if len(r.pending) == 0 {
		r.mu.Unlock()
		return
	}
	r.next = lowest(r.pending)
	evicted := r.drainLocked()
	if len(r.pending) > 0 {
		r.armLocked()
	}
	r.mu.Unlock()

	if len(evicted) > 0 && r.onEvict != nil {
		r.onEvict(evicted)
	}
}
