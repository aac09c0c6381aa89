// Package audit records quest workflow actions to the audit_logs table
// through a batching background writer.
package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/christianebacani/yoonet-quest-system-sub000/game/identity"
	"github.com/christianebacani/yoonet-quest-system-sub000/model"
	"github.com/christianebacani/yoonet-quest-system-sub000/plugin/hook"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	batchSize     = 100
	flushInterval = 2 * time.Second
)

type originKey struct{}

// Origin identifies the request an event was raised from.
type Origin struct {
	TraceID  string
	ClientIP string
}

// WithOrigin returns ctx carrying o.
func WithOrigin(ctx context.Context, o Origin) context.Context {
	return context.WithValue(ctx, originKey{}, o)
}

// OriginOf returns the origin carried by ctx. Background work has none.
func OriginOf(ctx context.Context) Origin {
	o, _ := ctx.Value(originKey{}).(Origin)
	return o
}

// Entry is one event waiting to be written.
type Entry struct {
	Event     string
	QuestID   int64
	Actor     string
	Employees []int64
	Data      map[string]any
	Origin    Origin
}

// Service logs audit entries asynchronously in batches.
type Service struct {
	db     *gorm.DB
	ch     chan *model.AuditLog
	stopCh chan struct{}
	wg     sync.WaitGroup
	logger *zap.Logger
}

// New creates a new audit Service and starts its background worker.
func New(db *gorm.DB, logger *zap.Logger) *Service {
	svc := &Service{
		db:     db,
		ch:     make(chan *model.AuditLog, 1024),
		stopCh: make(chan struct{}),
		logger: logger,
	}
	svc.wg.Add(1)
	go svc.worker()
	return svc
}

// Register records every workflow event on hc.
func (svc *Service) Register(hc *hook.Center) {
	hc.Register(hook.Any, 1000, "audit", svc.Handle)
}

// Handle turns a workflow event into an audit entry.
func (svc *Service) Handle(ctx context.Context, ev *hook.Event) error {
	svc.Log(Entry{
		Event:     ev.Name,
		QuestID:   ev.QuestID,
		Actor:     ev.Actor,
		Employees: ev.Employees,
		Data:      ev.Data,
		Origin:    OriginOf(ctx),
	})
	return nil
}

// Log enqueues e for the background writer. Entries are dropped, with a
// warning, while the queue is full.
func (svc *Service) Log(e Entry) {
	record := &model.AuditLog{
		Event:     e.Event,
		Employees: jsonColumn(e.Employees, "[]"),
		Data:      jsonColumn(e.Data, "{}"),
		TraceID:   e.Origin.TraceID,
		ClientIP:  e.Origin.ClientIP,
	}
	if e.QuestID > 0 {
		id := e.QuestID
		record.QuestID = &id
	}
	actor := identity.Canonicalize(e.Actor)
	switch {
	case actor.IsAccount():
		id := actor.AccountID()
		record.AccountID = &id
	case actor.Valid():
		record.ActorCode = actor.EmployeeCode()
	default:
		record.ActorCode = e.Actor
	}
	select {
	case svc.ch <- record:
	default:
		svc.logger.Warn("audit queue full, dropping entry", zap.String("event", e.Event))
	}
}

func jsonColumn(v any, empty string) datatypes.JSON {
	b, err := json.Marshal(v)
	if err != nil || string(b) == "null" {
		return datatypes.JSON(empty)
	}
	return datatypes.JSON(b)
}

// Stop flushes remaining entries and shuts down the worker.
// It blocks until the worker goroutine has finished.
func (svc *Service) Stop(_ context.Context) {
	select {
	case <-svc.stopCh:
	default:
		close(svc.stopCh)
	}
	svc.wg.Wait()
}

func (svc *Service) worker() {
	defer svc.wg.Done()
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]*model.AuditLog, 0, batchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := svc.db.Create(&batch).Error; err != nil {
			svc.logger.Error("audit batch write failed", zap.Int("entries", len(batch)), zap.Error(err))
		}
		batch = batch[:0]
	}

	for {
		select {
		case entry := <-svc.ch:
			batch = append(batch, entry)
			if len(batch) >= batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-svc.stopCh:
			for {
				select {
				case entry := <-svc.ch:
					batch = append(batch, entry)
				default:
					flush()
					return
				}
			}
		}
	}
}
