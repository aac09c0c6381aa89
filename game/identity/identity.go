// Package identity normalizes the references under which an employee may
// appear: an employee code ("EMP-0042"), a numeric account id ("42") or
// the legacy prefixed form ("user_42").
//
// A bare number is ambiguous: it canonicalizes to the account form, but
// Resolver.ResolveID and Actor.Is first try it as an employee code.
//
// Canonical ids are "emp:<code>" or "acct:<digits>", lowercased and
// trimmed. Input that cannot be classified canonicalizes to the empty id,
// which never equals anything, including itself.
package identity

import (
	"strconv"
	"strings"
)

// CanonicalID is a normalized identity token usable for equality.
type CanonicalID string

const (
	employeePrefix = "emp:"
	accountPrefix  = "acct:"
	legacyPrefix   = "user_"
)

// Canonicalize normalizes raw. It is pure and idempotent.
func Canonicalize(raw string) CanonicalID {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case s == "":
		return ""
	case strings.HasPrefix(s, accountPrefix):
		return account(strings.TrimPrefix(s, accountPrefix))
	case strings.HasPrefix(s, employeePrefix):
		return employee(strings.TrimPrefix(s, employeePrefix))
	case strings.HasPrefix(s, legacyPrefix):
		return account(strings.TrimPrefix(s, legacyPrefix))
	case isDigits(s):
		return account(s)
	}
	return employee(s)
}

// FromAccountID returns the canonical id of a numeric account id.
func FromAccountID(id int64) CanonicalID {
	if id <= 0 {
		return ""
	}
	return CanonicalID(accountPrefix + strconv.FormatInt(id, 10))
}

// FromEmployeeCode returns the canonical id of an employee code.
func FromEmployeeCode(code string) CanonicalID {
	return employee(strings.ToLower(strings.TrimSpace(code)))
}

func account(digits string) CanonicalID {
	if !isDigits(digits) {
		return ""
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || n <= 0 {
		return ""
	}
	return CanonicalID(accountPrefix + strconv.FormatInt(n, 10))
}

func employee(code string) CanonicalID {
	if code == "" || strings.ContainsAny(code, " \t\r\n:") {
		return ""
	}
	return CanonicalID(employeePrefix + code)
}

// bareDigits returns the trimmed ref when it is an unprefixed number.
func bareDigits(ref string) (string, bool) {
	s := strings.TrimSpace(ref)
	return s, isDigits(s)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Valid reports whether c identifies anybody.
func (c CanonicalID) Valid() bool { return c != "" }

// IsAccount reports whether c is an account-id form.
func (c CanonicalID) IsAccount() bool { return strings.HasPrefix(string(c), accountPrefix) }

// AccountID returns the numeric id of an account-form id, or 0.
func (c CanonicalID) AccountID() int64 {
	if !c.IsAccount() {
		return 0
	}
	n, _ := strconv.ParseInt(strings.TrimPrefix(string(c), accountPrefix), 10, 64)
	return n
}

// EmployeeCode returns the (lowercased) code of an employee-form id, or "".
func (c CanonicalID) EmployeeCode() string {
	if !strings.HasPrefix(string(c), employeePrefix) {
		return ""
	}
	return strings.TrimPrefix(string(c), employeePrefix)
}

// IsSameActor reports whether a and b canonicalize to the same valid id.
func IsSameActor(a, b string) bool {
	ca := Canonicalize(a)
	return ca.Valid() && ca == Canonicalize(b)
}

// Actor is the authenticated caller of a quest operation. It is built per
// request from token claims, never from process-wide state.
type Actor struct {
	AccountID    int64
	EmployeeCode string
	Role         string
}

// Canonical is the identity persisted for rows the actor creates.
func (a Actor) Canonical() CanonicalID {
	if id := FromEmployeeCode(a.EmployeeCode); id.Valid() {
		return id
	}
	return FromAccountID(a.AccountID)
}

// Is reports whether ref names this actor under any of its forms. Rows
// written by older versions may store the creator as a code, an account
// id or a user_ prefixed id. A bare number matches both a numeric employee
// code and the account id.
func (a Actor) Is(ref string) bool {
	if digits, ok := bareDigits(ref); ok && strings.EqualFold(strings.TrimSpace(a.EmployeeCode), digits) {
		return true
	}
	c := Canonicalize(ref)
	if !c.Valid() {
		return false
	}
	if code := FromEmployeeCode(a.EmployeeCode); code.Valid() && c == code {
		return true
	}
	acct := FromAccountID(a.AccountID)
	return acct.Valid() && c == acct
}
