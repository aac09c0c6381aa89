// Package xp owns the append-only XP ledger and the leaderboard derived
// from it.
package xp

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"

	"github.com/christianebacani/yoonet-quest-system-sub000/apperr"
	"github.com/christianebacani/yoonet-quest-system-sub000/cache"
	"github.com/christianebacani/yoonet-quest-system-sub000/cache/rank"
	"github.com/christianebacani/yoonet-quest-system-sub000/model"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const leaderboardKey = "leaderboard:xp"

const defaultHistoryLimit = 50

// Standing is one leaderboard row.
type Standing struct {
	EmployeeID int64 `json:"employee_id"`
	Total      int64 `json:"total"`
}

// Ledger appends XP entries and answers totals. Rows are only ever
// inserted, except by the quest delete cascade.
//
// The cached leaderboard is dropped on every credit and rebuilt from the
// ledger on read, so it never counts an entry twice. Across instances
// sharing one Redis it may briefly miss a credit, until the next
// invalidation.
type Ledger struct {
	db     *gorm.DB
	cache  cache.Cache
	logger *zap.Logger

	mu  sync.Mutex
	gen uint64 // bumped by Invalidate; guarded by mu
}

// NewLedger creates a Ledger. c may be nil, in which case the leaderboard
// is always computed from the database.
func NewLedger(db *gorm.DB, c cache.Cache, logger *zap.Logger) *Ledger {
	return &Ledger{db: db, cache: c, logger: logger}
}

// Metadata encodes the detail kept with a ledger row.
func Metadata(fields map[string]any) datatypes.JSON {
	b, err := json.Marshal(fields)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(b)
}

// Append inserts entries through tx. Call Credited after the transaction
// commits.
func (l *Ledger) Append(ctx context.Context, tx *gorm.DB, entries ...*model.XPHistory) error {
	for _, e := range entries {
		if err := tx.WithContext(ctx).Create(e).Error; err != nil {
			return apperr.Storage("append xp", err)
		}
	}
	return nil
}

// Credited drops the cached leaderboard once entries that move a total
// have committed.
func (l *Ledger) Credited(ctx context.Context, entries ...*model.XPHistory) {
	for _, e := range entries {
		if e.XPChange != 0 {
			l.Invalidate(ctx)
			return
		}
	}
}

// Invalidate drops the cached leaderboard. A rebuild already reading the
// ledger will not publish its result.
func (l *Ledger) Invalidate(ctx context.Context) {
	if l.cache == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gen++
	if err := l.cache.Del(ctx, leaderboardKey); err != nil {
		l.logger.Warn("leaderboard invalidate failed", zap.Error(err))
	}
}

func (l *Ledger) generation() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.gen
}

// publish caches a rebuilt board unless an invalidation happened since gen
// was read.
func (l *Ledger) publish(ctx context.Context, gen uint64, all []Standing) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.gen != gen {
		return
	}
	board := make([]rank.Entry, len(all))
	for i, st := range all {
		board[i] = rank.Entry{Member: member(st.EmployeeID), Score: float64(st.Total)}
	}
	if err := l.cache.ZReplace(ctx, leaderboardKey, board); err != nil {
		l.logger.Warn("leaderboard rebuild failed", zap.Error(err))
	}
}

// Total returns the sum of an employee's ledger entries.
func (l *Ledger) Total(ctx context.Context, employeeID int64) (int64, error) {
	var total int64
	err := l.db.WithContext(ctx).Model(&model.XPHistory{}).
		Where("employee_id = ?", employeeID).
		Select("COALESCE(SUM(xp_change), 0)").Scan(&total).Error
	if err != nil {
		return 0, apperr.Storage("sum xp", err)
	}
	return total, nil
}

// History returns an employee's most recent entries, newest first.
func (l *Ledger) History(ctx context.Context, employeeID int64, limit int) ([]model.XPHistory, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	var rows []model.XPHistory
	err := l.db.WithContext(ctx).Where("employee_id = ?", employeeID).
		Order("created_at DESC, id DESC").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, apperr.Storage("list xp", err)
	}
	return rows, nil
}

// Leaderboard returns the top n employees by total XP.
func (l *Ledger) Leaderboard(ctx context.Context, n int) ([]Standing, error) {
	if n <= 0 {
		return nil, nil
	}
	var gen uint64
	if l.cache != nil {
		if out, ok := l.cached(ctx, n); ok {
			return out, nil
		}
		gen = l.generation()
	}

	var all []Standing
	err := l.db.WithContext(ctx).Model(&model.XPHistory{}).
		Select("employee_id, SUM(xp_change) AS total").
		Group("employee_id").
		Order("total DESC, employee_id").
		Scan(&all).Error
	if err != nil {
		return nil, apperr.Storage("rank xp", err)
	}

	if l.cache != nil {
		l.publish(ctx, gen, all)
	}
	if len(all) > n {
		all = all[:n]
	}
	return all, nil
}

func (l *Ledger) cached(ctx context.Context, n int) ([]Standing, bool) {
	top, err := l.cache.ZTop(ctx, leaderboardKey, int64(n))
	if err != nil || len(top) == 0 {
		return nil, false
	}
	out := make([]Standing, 0, len(top))
	for _, e := range top {
		id, err := strconv.ParseInt(e.Member, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, Standing{EmployeeID: id, Total: int64(e.Score)})
	}
	return out, true
}

func member(employeeID int64) string {
	return strconv.FormatInt(employeeID, 10)
}
