package domain

import (
	"fmt"
	"strings"
	"time"
)

type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
	MessageFile  MessageType = "file"
)

// Payload is the sender-supplied body of a message. A text payload carries only
// Text; image and file payloads carry only FileURL and FileName.
type Payload struct {
	Type     MessageType
	Text     string
	FileURL  string
	FileName string
}

func (p Payload) Validate() error {
	switch p.Type {
	case MessageText:
		if strings.TrimSpace(p.Text) == "" {
			return fmt.Errorf("%w: text message requires text", ErrInvalidInput)
		}
		if p.FileURL != "" || p.FileName != "" {
			return fmt.Errorf("%w: text message cannot carry a file", ErrInvalidInput)
		}
	case MessageImage, MessageFile:
		if strings.TrimSpace(p.FileURL) == "" || strings.TrimSpace(p.FileName) == "" {
			return fmt.Errorf("%w: %s message requires fileUrl and fileName", ErrInvalidInput, p.Type)
		}
		if p.Text != "" {
			return fmt.Errorf("%w: %s message cannot carry text", ErrInvalidInput, p.Type)
		}
	default:
		return fmt.Errorf("%w: unknown message type %q", ErrInvalidInput, p.Type)
	}
	return nil
}

// Message is an append-only entry in a project's channel. Seq and CreatedAt are
// assigned by the store; Seq is strictly increasing per project and is the
// ordering key used for fan-out.
type Message struct {
	ID        string      `json:"_id"`
	ProjectID string      `json:"project"`
	SenderID  string      `json:"sender"`
	Type      MessageType `json:"messageType"`
	Text      *string     `json:"text,omitempty"`
	FileURL   *string     `json:"fileUrl,omitempty"`
	FileName  *string     `json:"fileName,omitempty"`
	Seq       int64       `json:"seq"`
	CreatedAt time.Time   `json:"createdAt"`
}

// NewMessage builds an unsaved message. A missing type defaults to text.
func NewMessage(projectID, senderID string, p Payload) (*Message, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, fmt.Errorf("%w: project id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(senderID) == "" {
		return nil, fmt.Errorf("%w: sender is required", ErrInvalidInput)
	}
	if p.Type == "" {
		p.Type = MessageText
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	m := &Message{ProjectID: projectID, SenderID: senderID, Type: p.Type}
	if p.Type == MessageText {
		text := p.Text
		m.Text = &text
	} else {
		url, name := p.FileURL, p.FileName
		m.FileURL = &url
		m.FileName = &name
	}
	return m, nil
}

func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	cp := *m
	if m.Text != nil {
		t := *m.Text
		cp.Text = &t
	}
	if m.FileURL != nil {
		u := *m.FileURL
		cp.FileURL = &u
	}
	if m.FileName != nil {
		n := *m.FileName
		cp.FileName = &n
	}
	return &cp
}
