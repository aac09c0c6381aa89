// Package notify fans quest workflow events out to per-employee pub/sub
// channels, which the SSE endpoint streams to connected clients.
package notify

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/christianebacani/yoonet-quest-system-sub000/cache"
	"github.com/christianebacani/yoonet-quest-system-sub000/game/directory"
	"github.com/christianebacani/yoonet-quest-system-sub000/plugin/hook"
	"go.uber.org/zap"
)

const channelPrefix = "notify:"

// Events are the workflow events delivered to the affected employees.
var Events = []string{hook.QuestAssigned, hook.SubmissionReviewed, hook.AssignmentMissed}

// Channel returns the pub/sub channel of an employee code.
func Channel(employeeCode string) string {
	return channelPrefix + strings.ToLower(strings.TrimSpace(employeeCode))
}

// Message is the JSON payload published on an employee channel.
type Message struct {
	Event   string         `json:"event"`
	QuestID int64          `json:"quest_id"`
	Data    map[string]any `json:"data,omitempty"`
	At      time.Time      `json:"at"`
}

// Notifier publishes events to the channels of the employees they name.
type Notifier struct {
	ps     cache.PubSub
	dir    *directory.Directory
	logger *zap.Logger
}

func New(ps cache.PubSub, dir *directory.Directory, logger *zap.Logger) *Notifier {
	return &Notifier{ps: ps, dir: dir, logger: logger}
}

// Register subscribes the notifier to Events on hc.
func (n *Notifier) Register(hc *hook.Center) {
	for _, name := range Events {
		hc.Register(name, 100, "notify", n.Handle)
	}
}

// Handle publishes ev to every employee it names. Unknown employees are
// skipped; publish failures are logged and never fail the workflow.
func (n *Notifier) Handle(ctx context.Context, ev *hook.Event) error {
	if len(ev.Employees) == 0 {
		return nil
	}
	emps, err := n.dir.EmployeesByIDs(ctx, ev.Employees)
	if err != nil {
		n.logger.Error("notify lookup failed", zap.String("event", ev.Name), zap.Error(err))
		return err
	}
	payload, err := json.Marshal(Message{Event: ev.Name, QuestID: ev.QuestID, Data: ev.Data, At: ev.At})
	if err != nil {
		return err
	}
	for _, id := range ev.Employees {
		emp, ok := emps[id]
		if !ok {
			continue
		}
		if err := n.ps.Publish(ctx, Channel(emp.EmployeeCode), string(payload)); err != nil {
			n.logger.Warn("notify publish failed",
				zap.String("event", ev.Name),
				zap.String("employee_code", emp.EmployeeCode),
				zap.Error(err))
		}
	}
	return nil
}
