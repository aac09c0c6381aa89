package rest_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/christianebacani/yoonet-quest-system-sub000/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdmin_AccessControl(t *testing.T) {
	a := newAPI(t)

	assert.Equal(t, http.StatusForbidden, a.json(http.MethodGet, "/api/admin/scheduler", "EMP-A", nil).Code)
	assert.Equal(t, http.StatusForbidden,
		a.json(http.MethodGet, "/api/admin/scheduler", "EMP-A", nil, "X-Admin-Key", "wrong").Code)
	assert.Equal(t, http.StatusOK,
		a.json(http.MethodGet, "/api/admin/scheduler", "EMP-A", nil, "X-Admin-Key", adminKey).Code)
	assert.Equal(t, http.StatusOK, a.json(http.MethodGet, "/api/admin/scheduler", "ADMIN-1", nil).Code)
}

func TestAdmin_Reconcile(t *testing.T) {
	a := newAPI(t)
	qid := a.createQuest(model.AssignmentMandatory, "2026-03-01")

	w := a.json(http.MethodPost, "/api/admin/reconcile?quest_id=abc", "ADMIN-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.json(http.MethodPost, fmt.Sprintf("/api/admin/reconcile?quest_id=%d", qid), "ADMIN-1", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body map[string]int64
	decode(t, w, &body)
	assert.EqualValues(t, 1, body["missed"])

	w = a.json(http.MethodPost, "/api/admin/reconcile", "ADMIN-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &body)
	assert.EqualValues(t, 0, body["missed"])

	var uq model.UserQuest
	require.NoError(t, a.db.Where("quest_id = ?", qid).First(&uq).Error)
	assert.Equal(t, model.UserQuestMissed, uq.Status)
}

func TestAdmin_RefreshLeaderboard(t *testing.T) {
	a := newAPI(t)
	assert.Equal(t, http.StatusOK, a.json(http.MethodPost, "/api/admin/leaderboard/refresh", "ADMIN-1", nil).Code)
}
