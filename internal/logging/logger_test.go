package logging

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGinLogger_WritesRequestLine(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	Init("info")
	SetOutput(&buf)
	t.Cleanup(func() { Init("info") })

	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set("request_id", "rid-1") })
	r.Use(GinLogger())
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "rid-1", line["request_id"])
	assert.Equal(t, float64(404), line["status"])
	assert.Equal(t, "/missing", line["path"])
}

func TestGinRecovery_ReturnsJSON500(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { Init("info") })

	r := gin.New()
	r.Use(GinRecovery())
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"ok":false`)
	assert.Contains(t, buf.String(), "panic recovered")
}
