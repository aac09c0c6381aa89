package app_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/christianebacani/yoonet-quest-system-sub000/app"
	"github.com/christianebacani/yoonet-quest-system-sub000/config"
	"github.com/christianebacani/yoonet-quest-system-sub000/game/identity"
	mw "github.com/christianebacani/yoonet-quest-system-sub000/middleware"
	"github.com/christianebacani/yoonet-quest-system-sub000/model"
	"github.com/christianebacani/yoonet-quest-system-sub000/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Cache:    config.CacheConfig{LocalGCInterval: time.Minute},
		Security: config.SecurityConfig{JWTSecret: "s", JWTTTLH: time.Hour},
		Storage:  config.StorageConfig{Mode: "local", LocalDir: t.TempDir()},
		Upload:   config.DefaultUpload(),
		Quest:    config.DefaultQuest(),
	}
}

func TestNewWithDB_RouterServesHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.NewWithDB(ctx, testConfig(t), testutil.SetupTestDB(t), zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	r := a.Router(ctx)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/quests", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestStart_SchedulesReconcileOnlyWhenEnabled(t *testing.T) {
	cfg := testConfig(t)
	a, err := app.NewWithDB(context.Background(), cfg, testutil.SetupTestDB(t), zap.NewNop())
	require.NoError(t, err)
	a.Start()
	assert.Empty(t, a.Sched.Tasks())
	a.Close()

	cfg = testConfig(t)
	cfg.Quest.ReconcileInterval = time.Hour
	a, err = app.NewWithDB(context.Background(), cfg, testutil.SetupTestDB(t), zap.NewNop())
	require.NoError(t, err)
	defer a.Close()
	a.Start()
	assert.Equal(t, []string{"reconcile"}, a.Sched.Tasks())
}

func TestNewWithDB_UnknownStorageMode(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Mode = "ftp"
	_, err := app.NewWithDB(context.Background(), cfg, testutil.SetupTestDB(t), zap.NewNop())
	assert.Error(t, err)
}

func TestNewWithDB_AdminAllowList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testConfig(t)
	cfg.Server.AdminIPs = []string{"10.0.0.0/8", "nope"}
	_, err := app.NewWithDB(context.Background(), cfg, testutil.SetupTestDB(t), zap.NewNop())
	assert.ErrorContains(t, err, "server.admin_ips")

	cfg.Server.AdminIPs = []string{"10.0.0.0/8"}
	a, err := app.NewWithDB(context.Background(), cfg, testutil.SetupTestDB(t), zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	token, err := mw.GenerateToken(identity.Actor{AccountID: 1, Role: model.RoleAdmin}, cfg.Security.JWTSecret, time.Hour)
	require.NoError(t, err)
	r := a.Router(context.Background())
	for remote, want := range map[string]int{"192.0.2.1:4000": http.StatusForbidden, "10.1.2.3:4000": http.StatusOK} {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/scheduler", nil)
		req.RemoteAddr = remote
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, want, w.Code, remote)
	}
}
