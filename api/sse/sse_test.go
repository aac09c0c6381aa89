package sse

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/christianebacani/yoonet-quest-system-sub000/config"
	"github.com/christianebacani/yoonet-quest-system-sub000/game/directory"
	"github.com/christianebacani/yoonet-quest-system-sub000/game/identity"
	"github.com/christianebacani/yoonet-quest-system-sub000/game/notify"
	mw "github.com/christianebacani/yoonet-quest-system-sub000/middleware"
	"github.com/christianebacani/yoonet-quest-system-sub000/model"
	"github.com/christianebacani/yoonet-quest-system-sub000/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func readEvent(t *testing.T, r *bufio.Reader) (string, string) {
	t.Helper()
	var event, data string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		case line == "" && event != "":
			return event, data
		}
	}
}

func TestServeSSE_StreamsEmployeeChannel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := testutil.SetupTestDB(t)
	c, ps := testutil.SetupTestCache(t)
	emp := testutil.SeedEmployee(t, db, "EMP-A", model.RoleSkillAssociate)
	sec := config.SecurityConfig{JWTSecret: "sse-secret", JWTTTLH: time.Hour}
	logger, _ := zap.NewDevelopment()

	h := NewHandler(ps, c, identity.NewResolver(directory.New(db), 0), sec, logger)
	r := gin.New()
	r.GET("/sse", h.ServeSSE)
	srv := httptest.NewServer(r)
	defer srv.Close()

	token, err := mw.GenerateToken(identity.Actor{AccountID: emp.ID, Role: emp.Role}, sec.JWTSecret, time.Hour)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/sse?token="+token, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	br := bufio.NewReader(resp.Body)
	event, data := readEvent(t, br)
	assert.Equal(t, "connected", event)
	assert.Contains(t, data, "EMP-A")

	require.NoError(t, ps.Publish(ctx, notify.Channel("EMP-A"), `{"event":"quest.assigned","quest_id":3}`))
	event, data = readEvent(t, br)
	assert.Equal(t, "quest.assigned", event)
	assert.JSONEq(t, `{"event":"quest.assigned","quest_id":3}`, data)

	require.NoError(t, ps.Publish(ctx, notify.Channel("EMP-B"), `{"event":"quest.assigned","quest_id":4}`))
	require.NoError(t, ps.Publish(ctx, notify.Channel("EMP-A"), `not json`))
	event, data = readEvent(t, br)
	assert.Equal(t, "message", event, "other employees' channels are not streamed")
	assert.Equal(t, "not json", data)
}

func TestEventName(t *testing.T) {
	assert.Equal(t, "submission.reviewed", eventName(`{"event":"submission.reviewed"}`))
	assert.Equal(t, "message", eventName(`{}`))
	assert.Equal(t, "message", eventName(`[`))
}

func TestServeSSE_RejectsBadTokens(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := testutil.SetupTestDB(t)
	c, ps := testutil.SetupTestCache(t)
	sec := config.SecurityConfig{JWTSecret: "sse-secret", JWTTTLH: time.Hour}
	logger, _ := zap.NewDevelopment()
	h := NewHandler(ps, c, identity.NewResolver(directory.New(db), 0), sec, logger)
	r := gin.New()
	r.GET("/sse", h.ServeSSE)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sse", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sse?token=garbage", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	ghost, err := mw.GenerateToken(identity.Actor{EmployeeCode: "NOBODY"}, sec.JWTSecret, time.Hour)
	require.NoError(t, err)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sse?token="+ghost, nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
}
