// Package hook dispatches quest workflow events to registered handlers
// (notifications, audit) after the originating transaction commits.
package hook

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrInterrupt signals that a handler wants to stop further processing.
var ErrInterrupt = errors.New("hook interrupted")

// Any registers a handler for every event.
const Any = "*"

// Event names.
const (
	QuestCreated       = "quest.created"
	QuestEdited        = "quest.edited"
	QuestPublished     = "quest.published"
	QuestDrafted       = "quest.drafted"
	QuestDeactivated   = "quest.deactivated"
	QuestDeleted       = "quest.deleted"
	QuestAssigned      = "quest.assigned"
	AssignmentAccepted = "assignment.accepted"
	AssignmentDeclined = "assignment.declined"
	AssignmentMissed   = "assignment.missed"
	SubmissionCreated  = "submission.created"
	SubmissionReviewed = "submission.reviewed"
)

// Event describes one committed workflow action.
type Event struct {
	Name      string         `json:"event"`
	QuestID   int64          `json:"quest_id"`
	Actor     string         `json:"actor,omitempty"`
	Employees []int64        `json:"employees,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	At        time.Time      `json:"at"`
}

// HandlerFn handles an event. Returning ErrInterrupt stops the chain;
// other errors are logged and the chain continues.
type HandlerFn func(ctx context.Context, ev *Event) error

type hookEntry struct {
	priority int
	fn       HandlerFn
	name     string
}

// Center manages handler registrations.
type Center struct {
	mu     sync.RWMutex
	hooks  map[string][]*hookEntry
	logger *zap.Logger
}

// NewCenter creates a new Center.
func NewCenter(logger *zap.Logger) *Center {
	return &Center{hooks: make(map[string][]*hookEntry), logger: logger}
}

// Register adds fn for event (or Any) with the given priority (lower runs
// first). name is used for Unregister.
func (hc *Center) Register(event string, priority int, name string, fn HandlerFn) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	entries := append(hc.hooks[event], &hookEntry{priority: priority, fn: fn, name: name})
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].priority < entries[j].priority
	})
	hc.hooks[event] = entries
}

// Unregister removes all handlers with the given name for the given event.
func (hc *Center) Unregister(event, name string) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.hooks[event] = without(hc.hooks[event], name)
}

// UnregisterAll removes all handlers registered with the given name.
func (hc *Center) UnregisterAll(name string) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	for event, entries := range hc.hooks {
		hc.hooks[event] = without(entries, name)
	}
}

func without(entries []*hookEntry, name string) []*hookEntry {
	n := 0
	for _, e := range entries {
		if e.name != name {
			entries[n] = e
			n++
		}
	}
	return entries[:n]
}

// Trigger runs the handlers of ev.Name and then the Any handlers, each
// group in priority order. A nil Center is a no-op.
func (hc *Center) Trigger(ctx context.Context, ev *Event) error {
	if hc == nil || ev == nil {
		return nil
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	hc.mu.RLock()
	entries := make([]*hookEntry, 0, len(hc.hooks[ev.Name])+len(hc.hooks[Any]))
	entries = append(entries, hc.hooks[ev.Name]...)
	if ev.Name != Any {
		entries = append(entries, hc.hooks[Any]...)
	}
	hc.mu.RUnlock()

	for _, e := range entries {
		err := e.fn(ctx, ev)
		if errors.Is(err, ErrInterrupt) {
			return err
		}
		if err != nil {
			hc.logger.Warn("hook handler failed",
				zap.String("event", ev.Name),
				zap.String("handler", e.name),
				zap.Error(err))
		}
	}
	return nil
}
