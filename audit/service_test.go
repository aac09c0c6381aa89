package audit

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/christianebacani/yoonet-quest-system-sub000/model"
	"github.com/christianebacani/yoonet-quest-system-sub000/plugin/hook"
	"github.com/christianebacani/yoonet-quest-system-sub000/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func nop() *zap.Logger { l, _ := zap.NewDevelopment(); return l }

func TestOriginOf(t *testing.T) {
	ctx := WithOrigin(context.Background(), Origin{TraceID: "trace-1", ClientIP: "10.0.0.7"})
	assert.Equal(t, Origin{TraceID: "trace-1", ClientIP: "10.0.0.7"}, OriginOf(ctx))
	assert.Equal(t, Origin{}, OriginOf(context.Background()))
}

func TestLog_EnqueuedAndFlushed(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, nop())

	svc.Log(Entry{
		Event:     hook.QuestAssigned,
		QuestID:   9,
		Actor:     "LEAD-1",
		Employees: []int64{3},
		Data:      map[string]any{"title": "Learn channels"},
		Origin:    Origin{TraceID: "trace-123", ClientIP: "127.0.0.1"},
	})
	svc.Stop(context.Background())

	var logs []model.AuditLog
	require.NoError(t, db.Find(&logs).Error)
	require.Len(t, logs, 1)
	got := logs[0]
	assert.Equal(t, hook.QuestAssigned, got.Event)
	assert.Equal(t, "lead-1", got.ActorCode)
	assert.Nil(t, got.AccountID)
	require.NotNil(t, got.QuestID)
	assert.Equal(t, int64(9), *got.QuestID)
	assert.Equal(t, "trace-123", got.TraceID)
	assert.Equal(t, "127.0.0.1", got.ClientIP)
	assert.JSONEq(t, `[3]`, string(got.Employees))
	assert.JSONEq(t, `{"title":"Learn channels"}`, string(got.Data))
}

func TestLog_BatchFlush(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, nop())

	for i := 0; i < batchSize+5; i++ {
		svc.Log(Entry{Event: "batch"})
	}
	svc.Stop(context.Background())

	var count int64
	require.NoError(t, db.Model(&model.AuditLog{}).Count(&count).Error)
	assert.Equal(t, int64(batchSize+5), count)
}

func TestStop_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, nop())
	svc.Stop(context.Background())
	svc.Stop(context.Background()) // must not panic
}

func TestLog_DropsWhenFull(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, nop())
	for i := 0; i < 1030; i++ {
		svc.Log(Entry{Event: "flood"})
	}
	svc.Stop(context.Background())
}

func TestHandle_RecordsWorkflowEvents(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, nop())
	hc := hook.NewCenter(nop())
	svc.Register(hc)

	ctx := WithOrigin(context.Background(), Origin{TraceID: "trace-abc"})
	require.NoError(t, hc.Trigger(ctx, &hook.Event{
		Name: hook.QuestCreated, QuestID: 5, Actor: "emp:lead-1", Employees: []int64{3, 4},
	}))
	require.NoError(t, hc.Trigger(ctx, &hook.Event{Name: hook.SubmissionReviewed, QuestID: 5, Actor: "acct:12"}))
	require.NoError(t, hc.Trigger(context.Background(), &hook.Event{Name: hook.AssignmentMissed, Actor: "system"}))
	svc.Stop(context.Background())

	var logs []model.AuditLog
	require.NoError(t, db.Order("id").Find(&logs).Error)
	require.Len(t, logs, 3)

	assert.Equal(t, "trace-abc", logs[0].TraceID)
	assert.Equal(t, hook.QuestCreated, logs[0].Event)
	assert.Equal(t, "lead-1", logs[0].ActorCode)
	require.NotNil(t, logs[0].QuestID)
	assert.Equal(t, int64(5), *logs[0].QuestID)
	var emps []int64
	require.NoError(t, json.Unmarshal(logs[0].Employees, &emps))
	assert.Equal(t, []int64{3, 4}, emps)
	assert.JSONEq(t, `{}`, string(logs[0].Data))

	require.NotNil(t, logs[1].AccountID)
	assert.Equal(t, int64(12), *logs[1].AccountID)
	assert.Empty(t, logs[1].ActorCode)

	assert.Equal(t, "system", logs[2].ActorCode)
	assert.Nil(t, logs[2].QuestID)
	assert.Empty(t, logs[2].TraceID)
	assert.JSONEq(t, `[]`, string(logs[2].Employees))
}
