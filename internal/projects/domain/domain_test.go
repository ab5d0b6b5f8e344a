package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestRoleCapabilities(t *testing.T) {
	assert.True(t, RoleClient.Can(ActionApproveWork))
	assert.True(t, RoleClient.Can(ActionDeleteProject))
	assert.False(t, RoleClient.Can(ActionSubmitWork))

	assert.True(t, RoleFreelancer.Can(ActionSubmitWork))
	assert.True(t, RoleFreelancer.Can(ActionApply))
	assert.False(t, RoleFreelancer.Can(ActionAcceptApplication))

	assert.True(t, RoleAdmin.Can(ActionSuspend))
	assert.False(t, RoleAdmin.Can(ActionApproveWork))

	assert.False(t, Role("guest").Valid())
	assert.False(t, Role("guest").Can(ActionApply))
	assert.False(t, Caller{Role: RoleClient}.Can(ActionCreateProject), "anonymous caller has no capabilities")
}

func TestProject_CheckAssignment(t *testing.T) {
	suspendedFromActive := StatusActive

	tests := []struct {
		name    string
		p       Project
		wantErr bool
	}{
		{"open without freelancer", Project{Status: StatusOpen}, false},
		{"open with freelancer", Project{Status: StatusOpen, FreelancerID: strPtr("f")}, true},
		{"active with freelancer", Project{Status: StatusActive, FreelancerID: strPtr("f")}, false},
		{"pending without freelancer", Project{Status: StatusPendingApproval}, true},
		{"completed with freelancer", Project{Status: StatusCompleted, FreelancerID: strPtr("f")}, false},
		{"suspended from active keeps freelancer", Project{Status: StatusSuspended, SuspendedFrom: &suspendedFromActive, FreelancerID: strPtr("f")}, false},
		{"suspended from active lost freelancer", Project{Status: StatusSuspended, SuspendedFrom: &suspendedFromActive}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.CheckAssignment()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestProject_Participants(t *testing.T) {
	p := &Project{ClientID: "c1", FreelancerID: strPtr("f1")}
	assert.True(t, p.IsParticipant("c1"))
	assert.True(t, p.IsParticipant("f1"))
	assert.False(t, p.IsParticipant("x"))
	assert.False(t, p.IsParticipant(""))

	cp := p.Clone()
	*cp.FreelancerID = "other"
	assert.Equal(t, "f1", *p.FreelancerID, "clone must not alias")
}

func TestProjectDraft_Normalize(t *testing.T) {
	d := ProjectDraft{Title: "  Logo ", Description: "a logo", Budget: 100, Skills: []string{" design", "", "svg "}}
	require.NoError(t, d.Normalize())
	assert.Equal(t, "Logo", d.Title)
	assert.Equal(t, []string{"design", "svg"}, d.Skills)

	bad := ProjectDraft{Title: "x", Description: "y"}
	assert.ErrorIs(t, bad.Normalize(), ErrInvalidInput)
}

func TestPayload_Validate(t *testing.T) {
	tests := []struct {
		name string
		p    Payload
		ok   bool
	}{
		{"text", Payload{Type: MessageText, Text: "hi"}, true},
		{"blank text", Payload{Type: MessageText, Text: "   "}, false},
		{"text with file", Payload{Type: MessageText, Text: "hi", FileURL: "u"}, false},
		{"image", Payload{Type: MessageImage, FileURL: "https://cdn/x.png", FileName: "x.png"}, true},
		{"file missing name", Payload{Type: MessageFile, FileURL: "https://cdn/x.pdf"}, false},
		{"file with text", Payload{Type: MessageFile, FileURL: "u", FileName: "n", Text: "t"}, false},
		{"unknown", Payload{Type: "video", FileURL: "u", FileName: "n"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidInput)
			}
		})
	}
}

func TestNewMessage_WireShape(t *testing.T) {
	m, err := NewMessage("p1", "u1", Payload{Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, MessageText, m.Type)

	raw, err := json.Marshal(m)
	require.NoError(t, err)
	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.Equal(t, "text", fields["messageType"])
	assert.Equal(t, "hello", fields["text"])
	assert.NotContains(t, fields, "fileUrl")
	assert.NotContains(t, fields, "fileName")

	f, err := NewMessage("p1", "u1", Payload{Type: MessageFile, FileURL: "https://cdn/a.pdf", FileName: "a.pdf"})
	require.NoError(t, err)
	raw, err = json.Marshal(f)
	require.NoError(t, err)
	fields = map[string]any{}
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.NotContains(t, fields, "text")
	assert.Equal(t, "a.pdf", fields["fileName"])
	assert.Equal(t, "file", fields["messageType"])
	assert.Equal(t, "https://cdn/a.pdf", fields["fileUrl"])

	_, err = NewMessage("", "u1", Payload{Text: "x"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "", ErrorCode(nil))
	assert.Equal(t, "forbidden", ErrorCode(fmt.Errorf("wrap: %w", ErrForbidden)))
	assert.Equal(t, "invalid_transition", ErrorCode(ErrInvalidTransition))
	assert.Equal(t, "not_found", ErrorCode(ErrNotFound))
	assert.Equal(t, "unauthenticated", ErrorCode(ErrUnauthenticated))
	assert.Equal(t, "persistence_failure", ErrorCode(errors.New("disk on fire")))
}

func TestProject_WireShape(t *testing.T) {
	raw, err := json.Marshal(&Project{ID: "p1", ClientID: "c1", Status: StatusOpen, StatusVersion: 1})
	require.NoError(t, err)
	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))

	v, ok := fields["freelancer"]
	assert.True(t, ok, "unassigned freelancer must be sent as null")
	assert.Nil(t, v)
	assert.Equal(t, float64(1), fields["statusVersion"])
	assert.NotContains(t, fields, "suspendedFrom")

	free := "f1"
	raw, err = json.Marshal(&Project{ID: "p1", FreelancerID: &free, Status: StatusActive})
	require.NoError(t, err)
	fields = map[string]any{}
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.Equal(t, "f1", fields["freelancer"])
}
