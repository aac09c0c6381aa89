package rest_test

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/christianebacani/yoonet-quest-system-sub000/api/rest"
	"github.com/christianebacani/yoonet-quest-system-sub000/cache"
	"github.com/christianebacani/yoonet-quest-system-sub000/config"
	"github.com/christianebacani/yoonet-quest-system-sub000/game/directory"
	"github.com/christianebacani/yoonet-quest-system-sub000/game/identity"
	"github.com/christianebacani/yoonet-quest-system-sub000/game/quest"
	"github.com/christianebacani/yoonet-quest-system-sub000/game/reconcile"
	"github.com/christianebacani/yoonet-quest-system-sub000/game/skill"
	"github.com/christianebacani/yoonet-quest-system-sub000/game/submission"
	"github.com/christianebacani/yoonet-quest-system-sub000/game/xp"
	mw "github.com/christianebacani/yoonet-quest-system-sub000/middleware"
	"github.com/christianebacani/yoonet-quest-system-sub000/model"
	"github.com/christianebacani/yoonet-quest-system-sub000/plugin/hook"
	"github.com/christianebacani/yoonet-quest-system-sub000/scheduler"
	"github.com/christianebacani/yoonet-quest-system-sub000/storage"
	"github.com/christianebacani/yoonet-quest-system-sub000/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var fixedNow = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

const adminKey = "admin-key"

type api struct {
	t      *testing.T
	r      *gin.Engine
	db     *gorm.DB
	cache  cache.Cache
	sec    config.SecurityConfig
	skill  *model.Skill
	tokens map[string]string
	ids    map[string]int64
}

func newAPI(t *testing.T) *api {
	t.Helper()
	db := testutil.SetupTestDB(t)
	c, _ := testutil.SetupTestCache(t)
	logger, _ := zap.NewDevelopment()
	blobs, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)
	sec := config.SecurityConfig{JWTSecret: "rest-secret", JWTTTLH: time.Hour}
	qcfg := config.DefaultQuest()

	hooks := hook.NewCenter(logger)
	dir := directory.New(db)
	ids := identity.NewResolver(dir, 0)
	ledger := xp.NewLedger(db, c, logger)
	rec := reconcile.New(db, hooks, logger)
	rec.Now = func() time.Time { return fixedNow }
	quests := quest.NewService(db, ids, ledger, blobs, hooks, qcfg, logger)
	quests.Now = rec.Now
	quests.SetReconciler(rec)
	upload := config.DefaultUpload()
	upload.MaxBytes = 1 << 10
	subs := submission.NewService(db, c, ids, ledger, blobs, hooks, qcfg, upload, logger)
	subs.Now = rec.Now
	subs.SetReconciler(rec)

	h := &rest.Handlers{
		Auth:       rest.NewAuthHandler(ids, c, sec, logger),
		Quest:      rest.NewQuestHandler(quests, subs, rec, logger),
		My:         rest.NewMyHandler(quests, subs, upload, logger),
		Submission: rest.NewSubmissionHandler(subs, logger),
		Attachment: rest.NewAttachmentHandler(quests, blobs, upload, logger),
		Skill:      rest.NewSkillHandler(skill.NewSearch(db), logger),
		XP:         rest.NewXPHandler(ledger, dir, ids, qcfg.LeaderboardSize, logger),
		Admin:      rest.NewAdminHandler(rec, ledger, scheduler.New(logger), logger),
	}
	r := gin.New()
	h.Mount(r, rest.AdminAccess{Key: adminKey}, sec, c)

	a := &api{t: t, r: r, db: db, cache: c, sec: sec, tokens: map[string]string{}, ids: map[string]int64{}}
	a.employee("LEAD-1", model.RoleQuestLead)
	a.employee("EMP-A", model.RoleSkillAssociate)
	a.employee("EMP-B", model.RoleSkillAssociate)
	a.employee("ADMIN-1", model.RoleAdmin)
	a.skill = testutil.SeedSkill(t, db, "Go", "Concurrency")
	return a
}

func (a *api) employee(code, role string) {
	emp := testutil.SeedEmployee(a.t, a.db, code, role)
	tok, err := mw.GenerateToken(identity.Actor{AccountID: emp.ID, EmployeeCode: code, Role: role}, a.sec.JWTSecret, time.Hour)
	require.NoError(a.t, err)
	a.tokens[code] = tok
	a.ids[code] = emp.ID
}

func (a *api) do(method, path, who string, body io.Reader, contentType string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if who != "" {
		req.Header.Set("Authorization", "Bearer "+a.tokens[who])
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	a.r.ServeHTTP(w, req)
	return w
}

func (a *api) json(method, path, who string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	}
	return a.do(method, path, who, rd, "application/json", headers...)
}

func (a *api) multipart(path, who string, fields map[string]string, fileName, content string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mpw := multipart.NewWriter(&buf)
	for k, v := range fields {
		_ = mpw.WriteField(k, v)
	}
	if fileName != "" {
		fw, err := mpw.CreateFormFile("file", fileName)
		require.NoError(a.t, err)
		_, _ = fw.Write([]byte(content))
	}
	require.NoError(a.t, mpw.Close())
	return a.do(http.MethodPost, path, who, &buf, mpw.FormDataContentType())
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

// createQuest creates a published quest assigned to EMP-A and returns its id.
func (a *api) createQuest(typ model.AssignmentType, due string) int64 {
	a.t.Helper()
	w := a.json(http.MethodPost, "/api/quests", "LEAD-1", map[string]interface{}{
		"title":           "Write table tests",
		"assignment_type": typ,
		"due_date":        due,
		"skills":          []map[string]interface{}{{"skill_id": a.skill.ID, "tier": 2}},
		"assign":          map[string]interface{}{"assignees": []string{"EMP-A"}},
		"publish":         true,
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	var resp struct {
		Quest model.Quest `json:"quest"`
	}
	decode(a.t, w, &resp)
	return resp.Quest.ID
}
