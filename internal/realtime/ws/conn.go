package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/sb-works/collab-backend/internal/projects/domain"
	"github.com/sb-works/collab-backend/internal/realtime"
)

// Conn is one authenticated socket. The caller identity is fixed for the
// connection's lifetime and is the only sender identity it can publish as.
//
// readPump is the only goroutine that touches allowed; writePump is the
// only one that writes data frames.
type Conn struct {
	id      string
	caller  domain.Caller
	sock    *websocket.Conn
	gw      *Gateway
	send    chan []byte
	done    chan struct{}
	limiter *rate.Limiter
	allowed map[string]bool
	log     zerolog.Logger

	closeOnce sync.Once
}

func (c *Conn) ID() string { return c.id }

// Deliver queues an event without blocking. A full queue means the client
// fell behind; the connection is closed so it rejoins and re-fetches history.
func (c *Conn) Deliver(ev realtime.Event) bool {
	return c.enqueue(encodeEvent(ev))
}

func (c *Conn) enqueue(b []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- b:
		return true
	default:
		c.log.Warn().Str("conn_id", c.id).Msg("send buffer full, closing")
		go c.close(websocket.ClosePolicyViolation, "slow consumer")
		return false
	}
}

func (c *Conn) close(code int, reason string) {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.sock.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
		_ = c.sock.Close()
	})
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(c.gw.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case b := <-c.send:
			_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.sock.WriteMessage(websocket.TextMessage, b); err != nil {
				c.close(websocket.CloseAbnormalClosure, "")
				return
			}
		case <-ticker.C:
			if err := c.sock.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.close(websocket.CloseAbnormalClosure, "")
				return
			}
		}
	}
}

func (c *Conn) readPump() {
	pongWait := 2 * c.gw.opts.PingInterval
	c.sock.SetReadLimit(maxMessageSize)
	_ = c.sock.SetReadDeadline(time.Now().Add(pongWait))
	c.sock.SetPongHandler(func(string) error {
		return c.sock.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug().Err(err).Str("conn_id", c.id).Msg("read failed")
			}
			return
		}
		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.enqueue(encodeError("", fmt.Errorf("%w: malformed frame", domain.ErrInvalidInput)))
			continue
		}
		c.handle(f)
	}
}

func (c *Conn) handle(f Frame) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var err error
	switch f.Event {
	case EventJoin, EventJoinAlias:
		err = c.join(ctx, f.Data)
	case EventLeave:
		err = c.leave(f.Data)
	case EventSend, EventSendAlias:
		err = c.publish(ctx, f.Data)
	default:
		err = fmt.Errorf("%w: unknown event %q", domain.ErrInvalidInput, f.Event)
	}
	if err != nil {
		c.log.Debug().Err(err).Str("event", f.Event).Msg("socket event failed")
		c.enqueue(encodeError(f.Event, err))
	}
}

// authorize checks room access once per project and remembers the answer
// for the connection's lifetime.
func (c *Conn) authorize(ctx context.Context, projectID string) error {
	if c.allowed[projectID] {
		return nil
	}
	if err := c.gw.access.CanJoin(ctx, c.caller, projectID); err != nil {
		return err
	}
	c.allowed[projectID] = true
	return nil
}

func (c *Conn) join(ctx context.Context, raw []byte) error {
	projectID, err := parseProjectID(raw)
	if err != nil {
		return err
	}
	if err := c.authorize(ctx, projectID); err != nil {
		return err
	}
	if err := c.gw.rooms.Join(ctx, c, projectID); err != nil {
		return err
	}
	c.enqueue(encode(EventJoined, roomData{ProjectID: projectID}))
	return nil
}

func (c *Conn) leave(raw []byte) error {
	projectID, err := parseProjectID(raw)
	if err != nil {
		return err
	}
	c.gw.rooms.LeaveRoom(c, projectID)
	c.enqueue(encode(EventLeft, roomData{ProjectID: projectID}))
	return nil
}

func (c *Conn) publish(ctx context.Context, raw []byte) error {
	if !c.limiter.Allow() {
		return errRateLimited
	}
	d, err := parseSend(raw)
	if err != nil {
		return err
	}
	if claimed := d.claimedSender(); claimed != "" && claimed != c.caller.ID {
		return fmt.Errorf("%w: sender does not match the authenticated user", domain.ErrForbidden)
	}
	if err := c.authorize(ctx, d.ProjectID); err != nil {
		return err
	}
	_, err = c.gw.rooms.Publish(ctx, d.ProjectID, c.caller.ID, d.payload())
	return err
}

var _ realtime.Subscriber = (*Conn)(nil)
