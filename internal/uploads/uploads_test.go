package uploads

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sb-works/collab-backend/config"
	"github.com/sb-works/collab-backend/internal/auth"
	"github.com/sb-works/collab-backend/internal/projects/domain"
)

type fakePresigner struct {
	key, contentType string
	ttl              time.Duration
	err              error
}

func (f *fakePresigner) PresignPut(_ context.Context, key, contentType string, ttl time.Duration) (*PresignedRequest, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.key, f.contentType, f.ttl = key, contentType, ttl
	h := http.Header{}
	h.Set("Host", "bucket.s3.amazonaws.com")
	h.Set("Content-Type", contentType)
	return &PresignedRequest{URL: "https://bucket.s3.amazonaws.com/" + key + "?X-Amz-Signature=abc", Method: http.MethodPut, Headers: h}, nil
}

type allowList map[string]bool

func (a allowList) CanJoin(_ context.Context, caller domain.Caller, _ string) error {
	if !a[caller.ID] {
		return domain.ErrForbidden
	}
	return nil
}

var member = domain.Caller{ID: "client-1", Role: domain.RoleClient}

func newService(p Presigner) *Service {
	svc := NewService(p, allowList{member.ID: true}, config.UploadsConfig{
		Bucket: "bucket", PublicBaseURL: "https://cdn.example.com/", URLTTL: 10 * time.Minute,
	})
	svc.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	return svc
}

func TestKindOf(t *testing.T) {
	for name, want := range map[string]domain.MessageType{
		"a.PNG": domain.MessageImage, "b.jpeg": domain.MessageImage,
		"c.pdf": domain.MessageFile, "d.docx": domain.MessageFile, "e.zip": domain.MessageFile,
	} {
		got, ok := KindOf(name)
		assert.True(t, ok, name)
		assert.Equal(t, want, got, name)
	}
	_, ok := KindOf("run.exe")
	assert.False(t, ok)
}

func TestService_Prepare(t *testing.T) {
	p := &fakePresigner{}
	svc := newService(p)

	tk, err := svc.Prepare(context.Background(), member, "p1", "Design Spec.PDF", "")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(p.key, Folder+"/p1/"))
	assert.True(t, strings.HasSuffix(p.key, ".pdf"))
	assert.Equal(t, "application/pdf", p.contentType)
	assert.Equal(t, 10*time.Minute, p.ttl)

	assert.Equal(t, "https://cdn.example.com/"+p.key, tk.FileURL)
	assert.Equal(t, "Design Spec.PDF", tk.FileName)
	assert.Equal(t, domain.MessageFile, tk.MessageType)
	assert.Equal(t, http.MethodPut, tk.Method)
	assert.NotContains(t, tk.Headers, "Host")
	assert.Equal(t, time.Date(2026, 1, 1, 0, 10, 0, 0, time.UTC), tk.ExpiresAt)

	// the ticket is a valid payload for a file message
	assert.NoError(t, domain.Payload{Type: tk.MessageType, FileURL: tk.FileURL, FileName: tk.FileName}.Validate())
}

func TestService_PrepareRejects(t *testing.T) {
	svc := newService(&fakePresigner{})
	ctx := context.Background()

	_, err := svc.Prepare(ctx, member, "p1", "virus.exe", "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.Prepare(ctx, member, "", "a.png", "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.Prepare(ctx, domain.Caller{ID: "stranger", Role: domain.RoleFreelancer}, "p1", "a.png", "")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	failing := newService(&fakePresigner{err: errors.New("no credentials")})
	_, err = failing.Prepare(ctx, member, "p1", "a.png", "image/png")
	assert.ErrorIs(t, err, domain.ErrPersistence)
}

func TestHandler_Prepare(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) { auth.SetCaller(c, member); c.Next() })
	NewHandler(newService(&fakePresigner{})).Register(r.Group("/api/v1"))

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := post(`{"projectId":"p1","fileName":"photo.jpg"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		OK     bool   `json:"ok"`
		Upload Ticket `json:"upload"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.Equal(t, domain.MessageImage, resp.Upload.MessageType)

	assert.Equal(t, http.StatusBadRequest, post(`{"projectId":"p1","fileName":"x.bat"}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(`not json`).Code)
}
