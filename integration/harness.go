package integration

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/christianebacani/yoonet-quest-system-sub000/app"
	"github.com/christianebacani/yoonet-quest-system-sub000/config"
	"github.com/christianebacani/yoonet-quest-system-sub000/game/identity"
	mw "github.com/christianebacani/yoonet-quest-system-sub000/middleware"
	"github.com/christianebacani/yoonet-quest-system-sub000/model"
	"github.com/christianebacani/yoonet-quest-system-sub000/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AdminKey is the X-Admin-Key accepted by the test server.
const AdminKey = "integration-admin-key"

// TestServer wraps a real HTTP server with every quest subsystem wired
// the way questd serve wires them.
type TestServer struct {
	App    *app.App
	DB     *gorm.DB
	Server *httptest.Server
	URL    string
	Sec    config.SecurityConfig
}

// NewTestServer starts a server over a fresh SQLite database, a local
// cache and a temporary blob directory.
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.SetupTestDB(t)
	cfg := &config.Config{
		Server: config.ServerConfig{AdminKey: AdminKey},
		Cache:  config.CacheConfig{LocalGCInterval: time.Minute, LocalPubSubBuf: 64},
		Security: config.SecurityConfig{
			JWTSecret:      "integration-test-secret",
			JWTTTLH:        time.Hour,
			RateLimitRPS:   1000,
			RateLimitBurst: 2000,
		},
		Storage: config.StorageConfig{Mode: "local", LocalDir: t.TempDir()},
		Upload:  config.DefaultUpload(),
		Quest:   config.DefaultQuest(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	a, err := app.NewWithDB(ctx, cfg, db, zap.NewNop())
	require.NoError(t, err)
	a.Start()

	server := httptest.NewServer(a.Router(ctx))
	ts := &TestServer{App: a, DB: db, Server: server, URL: server.URL, Sec: cfg.Security}
	t.Cleanup(func() {
		server.Close()
		cancel()
		a.Close()
	})
	return ts
}

// Employee seeds an employee and returns a token for it.
func (ts *TestServer) Employee(t *testing.T, code, role string) (token string, id int64) {
	t.Helper()
	emp := testutil.SeedEmployee(t, ts.DB, code, role)
	token, err := mw.GenerateToken(identity.Actor{AccountID: emp.ID, EmployeeCode: emp.EmployeeCode, Role: role},
		ts.Sec.JWTSecret, ts.Sec.JWTTTLH)
	require.NoError(t, err)
	return token, emp.ID
}

// Skill seeds a catalog skill.
func (ts *TestServer) Skill(t *testing.T, category, name string) *model.Skill {
	t.Helper()
	return testutil.SeedSkill(t, ts.DB, category, name)
}

// --- HTTP helpers ---

func (ts *TestServer) do(t *testing.T, method, path string, body interface{}, token string) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// PostJSON sends a POST request with a JSON body and optional Bearer token.
func (ts *TestServer) PostJSON(t *testing.T, path string, body interface{}, token string) *http.Response {
	t.Helper()
	return ts.do(t, http.MethodPost, path, body, token)
}

// Get sends a GET request with an optional Bearer token.
func (ts *TestServer) Get(t *testing.T, path string, token string) *http.Response {
	t.Helper()
	return ts.do(t, http.MethodGet, path, nil, token)
}

// Put sends a PUT request with a JSON body and optional Bearer token.
func (ts *TestServer) Put(t *testing.T, path string, body interface{}, token string) *http.Response {
	t.Helper()
	return ts.do(t, http.MethodPut, path, body, token)
}

// Delete sends a DELETE request with an optional Bearer token.
func (ts *TestServer) Delete(t *testing.T, path string, token string) *http.Response {
	t.Helper()
	return ts.do(t, http.MethodDelete, path, nil, token)
}

// ReadJSON reads and decodes a JSON response body into target.
func ReadJSON(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, target), "body: %s", string(data))
}

// RequireStatus fails unless resp carries want, printing the body.
func RequireStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode == want {
		return
	}
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, want, resp.StatusCode, "body: %s", string(data))
}

// --- SSE helpers ---

// SSEClient reads server-sent events from /sse.
type SSEClient struct {
	resp   *http.Response
	events chan SSEEvent
}

// SSEEvent is one decoded event.
type SSEEvent struct {
	Name string
	Data string
}

// ConnectSSE opens the notification stream for token and waits for the
// connected event.
func (ts *TestServer) ConnectSSE(t *testing.T, token string) *SSEClient {
	t.Helper()
	resp, err := http.Get(ts.URL + "/sse?token=" + token)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	sc := &SSEClient{resp: resp, events: make(chan SSEEvent, 32)}
	go sc.readLoop()
	t.Cleanup(sc.Close)

	ev, ok := sc.Next(5 * time.Second)
	require.True(t, ok, "no connected event")
	require.Equal(t, "connected", ev.Name)
	return sc
}

func (sc *SSEClient) readLoop() {
	defer close(sc.events)
	br := bufio.NewReader(sc.resp.Body)
	var ev SSEEvent
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		switch {
		case line == "":
			if ev.Name != "" || ev.Data != "" {
				sc.events <- ev
			}
			ev = SSEEvent{}
		case strings.HasPrefix(line, "event:"):
			ev.Name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			ev.Data += strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}
}

// Next returns the next event, or false after timeout.
func (sc *SSEClient) Next(timeout time.Duration) (SSEEvent, bool) {
	select {
	case ev, ok := <-sc.events:
		return ev, ok
	case <-time.After(timeout):
		return SSEEvent{}, false
	}
}

// NextNamed skips events until one named name arrives.
func (sc *SSEClient) NextNamed(name string, timeout time.Duration) (SSEEvent, bool) {
	deadline := time.Now().Add(timeout)
	for {
		left := time.Until(deadline)
		if left <= 0 {
			return SSEEvent{}, false
		}
		ev, ok := sc.Next(left)
		if !ok {
			return SSEEvent{}, false
		}
		if ev.Name == name {
			return ev, true
		}
	}
}

// Close ends the stream.
func (sc *SSEClient) Close() {
	sc.resp.Body.Close()
}
