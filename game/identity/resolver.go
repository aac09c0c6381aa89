package identity

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru"

	"github.com/christianebacani/yoonet-quest-system-sub000/apperr"
	"github.com/christianebacani/yoonet-quest-system-sub000/model"
)

const defaultResolverCacheSize = 4096

// Lookup is the part of the employee directory the resolver reads.
type Lookup interface {
	EmployeeByID(ctx context.Context, id int64) (*model.Employee, error)
	EmployeeByCode(ctx context.Context, code string) (*model.Employee, error)
}

// Resolver maps raw references onto directory employees. Code to id
// mappings never change, so they are memoized in an LRU.
type Resolver struct {
	dir   Lookup
	codes *lru.Cache // employee code → account id
}

// NewResolver creates a Resolver over dir. size <= 0 uses a default.
func NewResolver(dir Lookup, size int) *Resolver {
	if size <= 0 {
		size = defaultResolverCacheSize
	}
	codes, err := lru.New(size)
	if err != nil {
		panic(fmt.Sprintf("identity: lru: %v", err))
	}
	return &Resolver{dir: dir, codes: codes}
}

// ResolveID returns the account id raw refers to. Unresolvable or unknown
// references yield a ReferentialError.
//
// A bare number resolves to the employee whose code it is exactly, and only
// falls back to the account id when no such code exists.
func (r *Resolver) ResolveID(ctx context.Context, raw string) (int64, error) {
	if digits, ok := bareDigits(raw); ok {
		id, err := r.byCode(ctx, digits)
		if err == nil {
			return id, nil
		}
		if !apperr.IsReferential(err) {
			return 0, err
		}
	}
	c := Canonicalize(raw)
	if !c.Valid() {
		return 0, apperr.NotFound("employee", raw)
	}
	if c.IsAccount() {
		return c.AccountID(), nil
	}
	return r.byCode(ctx, c.EmployeeCode())
}

func (r *Resolver) byCode(ctx context.Context, code string) (int64, error) {
	if v, ok := r.codes.Get(code); ok {
		return v.(int64), nil
	}
	emp, err := r.dir.EmployeeByCode(ctx, code)
	if err != nil {
		return 0, err
	}
	r.codes.Add(code, emp.ID)
	return emp.ID, nil
}

// Resolve returns the directory entry raw refers to.
func (r *Resolver) Resolve(ctx context.Context, raw string) (*model.Employee, error) {
	id, err := r.ResolveID(ctx, raw)
	if err != nil {
		return nil, err
	}
	return r.dir.EmployeeByID(ctx, id)
}

// ActorID returns the account id of the actor, resolving its employee code
// when the token carried no account id.
func (r *Resolver) ActorID(ctx context.Context, a Actor) (int64, error) {
	if a.AccountID > 0 {
		return a.AccountID, nil
	}
	return r.ResolveID(ctx, a.EmployeeCode)
}

// WithLookup returns a Resolver reading through dir that shares the code
// cache with r. Use it to resolve inside a transaction.
func (r *Resolver) WithLookup(dir Lookup) *Resolver {
	return &Resolver{dir: dir, codes: r.codes}
}
