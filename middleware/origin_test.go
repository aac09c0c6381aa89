package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/christianebacani/yoonet-quest-system-sub000/audit"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func originRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Origin())
	r.GET("/origin", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"gin": GetOrigin(c),
			"ctx": audit.OriginOf(c.Request.Context()),
		})
	})
	return r
}

func getOrigin(t *testing.T, r http.Handler, traceHeader string) (map[string]audit.Origin, *httptest.ResponseRecorder) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/origin", nil)
	req.RemoteAddr = "192.0.2.10:5555"
	if traceHeader != "" {
		req.Header.Set(TraceIDHeader, traceHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var got map[string]audit.Origin
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	return got, w
}

func TestOrigin_GeneratesTraceID(t *testing.T) {
	got, w := getOrigin(t, originRouter(), "")

	_, err := uuid.Parse(got["gin"].TraceID)
	require.NoError(t, err)
	assert.Equal(t, got["gin"].TraceID, w.Header().Get(TraceIDHeader))
	assert.Equal(t, "192.0.2.10", got["gin"].ClientIP)
	assert.Equal(t, got["gin"], got["ctx"])
}

func TestOrigin_KeepsWellFormedTraceID(t *testing.T) {
	const id = "5f0c6e0e-8f55-4a5c-9d43-1b2a3c4d5e6f"
	got, w := getOrigin(t, originRouter(), id)
	assert.Equal(t, id, got["ctx"].TraceID)
	assert.Equal(t, id, w.Header().Get(TraceIDHeader))
}

func TestOrigin_ReplacesMalformedTraceID(t *testing.T) {
	r := originRouter()
	a, _ := getOrigin(t, r, "my-custom-trace")
	b, _ := getOrigin(t, r, "my-custom-trace")
	assert.NotEqual(t, "my-custom-trace", a["gin"].TraceID)
	assert.NotEqual(t, a["gin"].TraceID, b["gin"].TraceID)
}

func TestGetOrigin_Unset(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Equal(t, audit.Origin{}, GetOrigin(c))
	assert.Empty(t, TraceIDOf(c))
}
