// Package assignment turns an assignment request into the set of employees
// that receive a quest.
package assignment

import (
	"context"
	"sort"

	"github.com/christianebacani/yoonet-quest-system-sub000/apperr"
	"github.com/christianebacani/yoonet-quest-system-sub000/game/identity"
	"github.com/christianebacani/yoonet-quest-system-sub000/model"
	"go.uber.org/zap"
)

// Directory is the employee directory and group store the resolver reads.
type Directory interface {
	identity.Lookup
	EmployeesByIDs(ctx context.Context, ids []int64) (map[int64]*model.Employee, error)
	MembersOf(ctx context.Context, groupID int64) ([]int64, error)
}

// Request names who should receive a quest: individual references in any
// identity form and/or one group.
type Request struct {
	Individuals []string `json:"assignees"`
	GroupID     *int64   `json:"group_id"`
}

// Empty reports whether the request names nobody.
func (r Request) Empty() bool {
	return len(r.Individuals) == 0 && r.GroupID == nil
}

// Resolver expands and filters assignment requests.
type Resolver struct {
	ids      *identity.Resolver
	eligible map[string]bool
	logger   *zap.Logger
}

// NewResolver creates a Resolver accepting employees holding one of
// eligibleRoles.
func NewResolver(ids *identity.Resolver, eligibleRoles []string, logger *zap.Logger) *Resolver {
	eligible := make(map[string]bool, len(eligibleRoles))
	for _, r := range eligibleRoles {
		eligible[r] = true
	}
	return &Resolver{ids: ids, eligible: eligible, logger: logger}
}

// Resolve returns the ascending employee ids the request expands to.
//
// The group, if any, must exist. Individual references that do not resolve,
// employees that are disabled or hold an ineligible role, and the excluded
// actor are skipped with a warning. An empty result is a ValidationError.
func (r *Resolver) Resolve(ctx context.Context, dir Directory, req Request, exclude identity.Actor) ([]int64, error) {
	seen := make(map[int64]bool)
	var ids []int64
	add := func(id int64) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	if req.GroupID != nil {
		members, err := dir.MembersOf(ctx, *req.GroupID)
		if err != nil {
			return nil, err
		}
		for _, id := range members {
			add(id)
		}
	}

	lookup := r.ids.WithLookup(dir)
	for _, raw := range req.Individuals {
		id, err := lookup.ResolveID(ctx, raw)
		if apperr.IsReferential(err) {
			r.logger.Warn("assignee skipped: unknown reference", zap.String("ref", raw))
			continue
		}
		if err != nil {
			return nil, err
		}
		add(id)
	}

	emps, err := dir.EmployeesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := ids[:0]
	for _, id := range ids {
		emp, ok := emps[id]
		switch {
		case !ok:
			r.logger.Warn("assignee skipped: not in directory", zap.Int64("employee_id", id))
		case exclude.Is(string(identity.FromAccountID(id))) || exclude.Is(string(identity.FromEmployeeCode(emp.EmployeeCode))):
			r.logger.Debug("assignee skipped: creator", zap.Int64("employee_id", id))
		case emp.Status != model.EmployeeActive:
			r.logger.Warn("assignee skipped: disabled", zap.Int64("employee_id", id))
		case !r.eligible[emp.Role]:
			r.logger.Warn("assignee skipped: ineligible role",
				zap.Int64("employee_id", id), zap.String("role", emp.Role))
		default:
			out = append(out, id)
		}
	}
	if len(out) == 0 {
		return nil, apperr.Validation(apperr.CodeNoAssignees, "no valid assignees")
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
