package ws

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sb-works/collab-backend/internal/projects/domain"
	"github.com/sb-works/collab-backend/internal/realtime"
)

// Client events. The camel-case aliases are what existing web clients emit.
const (
	EventJoin      = "join"
	EventJoinAlias = "joinProjectRoom"
	EventLeave     = "leave"
	EventSend      = "send"
	EventSendAlias = "sendMessage"
)

// Server events.
const (
	EventJoined  = "joined"
	EventLeft    = "left"
	EventMessage = "message"
	EventStatus  = "statusChanged"
	EventError   = "error"
)

const CodeRateLimited = "rate_limited"

// Frame is the envelope for every socket message in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Event   string `json:"event,omitempty"`
}

type roomData struct {
	ProjectID string `json:"projectId"`
}

type statusData struct {
	ProjectID string        `json:"projectId"`
	Status    domain.Status `json:"status"`
	Version   int64         `json:"version,omitempty"`
}

// sendData accepts both "sender" and "senderId"; either must match the
// connection's identity when present.
type sendData struct {
	ProjectID   string             `json:"projectId"`
	Sender      string             `json:"sender"`
	SenderID    string             `json:"senderId"`
	MessageType domain.MessageType `json:"messageType"`
	Text        string             `json:"text"`
	FileURL     string             `json:"fileUrl"`
	FileName    string             `json:"fileName"`
}

func (d sendData) claimedSender() string {
	if d.SenderID != "" {
		return d.SenderID
	}
	return d.Sender
}

func (d sendData) payload() domain.Payload {
	return domain.Payload{Type: d.MessageType, Text: d.Text, FileURL: d.FileURL, FileName: d.FileName}
}

var errMissingProject = fmt.Errorf("%w: projectId is required", domain.ErrInvalidInput)

// parseProjectID reads either a bare JSON string or {"projectId": "..."}.
func parseProjectID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", errMissingProject
	}
	var id string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &id); err != nil {
			return "", fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
	} else {
		var d roomData
		if err := json.Unmarshal(raw, &d); err != nil {
			return "", fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
		id = d.ProjectID
	}
	if id = strings.TrimSpace(id); id == "" {
		return "", errMissingProject
	}
	return id, nil
}

func parseSend(raw json.RawMessage) (sendData, error) {
	var d sendData
	if len(bytes.TrimSpace(raw)) == 0 {
		return d, fmt.Errorf("%w: empty message", domain.ErrInvalidInput)
	}
	if err := json.Unmarshal(raw, &d); err != nil {
		return d, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if d.ProjectID = strings.TrimSpace(d.ProjectID); d.ProjectID == "" {
		return d, errMissingProject
	}
	return d, nil
}

func encode(event string, data any) []byte {
	b, err := json.Marshal(outFrame{Event: event, Data: data})
	if err != nil {
		// only reachable with a non-encodable data value
		b, _ = json.Marshal(outFrame{Event: EventError, Data: ErrorData{Code: "internal", Message: err.Error()}})
	}
	return b
}

func encodeEvent(ev realtime.Event) []byte {
	if ev.Type == realtime.EventStatus {
		return encode(EventStatus, statusData{ProjectID: ev.ProjectID, Status: ev.Status, Version: ev.Version})
	}
	return encode(EventMessage, ev.Message)
}

func encodeError(event string, err error) []byte {
	code := domain.ErrorCode(err)
	if errors.Is(err, errRateLimited) {
		code = CodeRateLimited
	}
	return encode(EventError, ErrorData{Code: code, Message: err.Error(), Event: event})
}

var errRateLimited = errors.New("too many messages, slow down")
