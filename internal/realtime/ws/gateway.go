package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/sb-works/collab-backend/internal/auth"
	"github.com/sb-works/collab-backend/internal/logging"
	"github.com/sb-works/collab-backend/internal/metrics"
	"github.com/sb-works/collab-backend/internal/projects/domain"
	"github.com/sb-works/collab-backend/internal/realtime"
)

// Rooms is the messaging channel as seen by a connection.
type Rooms interface {
	Join(ctx context.Context, s realtime.Subscriber, projectID string) error
	LeaveRoom(s realtime.Subscriber, projectID string)
	Leave(s realtime.Subscriber)
	Publish(ctx context.Context, projectID, senderID string, p domain.Payload) (*domain.Message, error)
}

// Access decides whether a caller may join or post to a project's room.
type Access interface {
	CanJoin(ctx context.Context, caller domain.Caller, projectID string) error
}

type Options struct {
	AllowedOrigins []string
	SendRate       float64
	SendBurst      int
	SendBuffer     int
	PingInterval   time.Duration
}

func (o *Options) defaults() {
	if o.SendRate <= 0 {
		o.SendRate = 5
	}
	if o.SendBurst <= 0 {
		o.SendBurst = 10
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 64
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
}

const (
	writeWait      = 10 * time.Second
	opTimeout      = 5 * time.Second
	maxMessageSize = 64 << 10
)

// Gateway authenticates socket upgrades and runs one Conn per client.
type Gateway struct {
	verifier auth.Verifier
	rooms    Rooms
	access   Access
	opts     Options
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

func NewGateway(verifier auth.Verifier, rooms Rooms, access Access, opts Options) *Gateway {
	opts.defaults()
	g := &Gateway{
		verifier: verifier,
		rooms:    rooms,
		access:   access,
		opts:     opts,
		log:      logging.With("gateway"),
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		Subprotocols:    []string{"bearer"},
		CheckOrigin:     g.checkOrigin,
	}
	return g
}

func (g *Gateway) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(g.opts.AllowedOrigins) == 0 {
		return true
	}
	for _, o := range g.opts.AllowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// Handle adapts the gateway to a gin route.
func (g *Gateway) Handle(c *gin.Context) {
	g.ServeHTTP(c.Writer, c.Request)
}

// ServeHTTP verifies the credential before upgrading. A request without a
// valid credential never becomes a socket.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	caller, err := g.verifier.Verify(r.Context(), auth.TokenFromRequest(r))
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(gin.H{"ok": false, "error": "invalid token", "code": domain.ErrorCode(domain.ErrUnauthenticated)})
		return
	}

	sock, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn().Err(err).Str("user_id", caller.ID).Msg("websocket upgrade failed")
		return
	}

	c := &Conn{
		id:      uuid.NewString(),
		caller:  caller,
		sock:    sock,
		gw:      g,
		send:    make(chan []byte, g.opts.SendBuffer),
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(rate.Limit(g.opts.SendRate), g.opts.SendBurst),
		allowed: make(map[string]bool),
		log:     g.log.With().Str("user_id", caller.ID).Logger(),
	}

	metrics.ConnectionOpened()
	c.log.Debug().Str("conn_id", c.id).Msg("connection opened")

	go c.writePump()
	c.readPump()

	g.rooms.Leave(c)
	c.close(websocket.CloseNormalClosure, "")
	metrics.ConnectionClosed()
	c.log.Debug().Str("conn_id", c.id).Msg("connection closed")
}
