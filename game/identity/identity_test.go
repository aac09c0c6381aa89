package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalize(t *testing.T) {
	cases := []struct {
		raw  string
		want CanonicalID
	}{
		{"EMP-0042", "emp:emp-0042"},
		{"  emp-0042 ", "emp:emp-0042"},
		{"42", "acct:42"},
		{"0042", "acct:42"},
		{"user_42", "acct:42"},
		{"USER_42", "acct:42"},
		{"acct:42", "acct:42"},
		{"emp:EMP-0042", "emp:emp-0042"},
		{"", ""},
		{"   ", ""},
		{"user_", ""},
		{"user_abc", ""},
		{"0", ""},
		{"two words", ""},
		{"99999999999999999999999", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Canonicalize(tc.raw), "raw=%q", tc.raw)
	}
}

func TestCanonicalize_Idempotent(t *testing.T) {
	for _, raw := range []string{"EMP-7", "user_7", "7", "acct:7", "emp:x", "", "user_x"} {
		once := Canonicalize(raw)
		assert.Equal(t, once, Canonicalize(string(once)), "raw=%q", raw)
	}
}

func TestIsSameActor(t *testing.T) {
	assert.True(t, IsSameActor("EMP-1", "emp-1"))
	assert.True(t, IsSameActor("user_12", "12"))
	assert.True(t, IsSameActor(" 12 ", "acct:12"))
	assert.False(t, IsSameActor("EMP-1", "EMP-2"))
	assert.False(t, IsSameActor("12", "EMP-12"))
	// Unresolvable input never matches, not even itself.
	assert.False(t, IsSameActor("", ""))
	assert.False(t, IsSameActor("user_x", "user_x"))
}

func TestActor_Is_LegacyForms(t *testing.T) {
	a := Actor{AccountID: 12, EmployeeCode: "EMP-0012"}
	assert.Equal(t, CanonicalID("emp:emp-0012"), a.Canonical())

	for _, stored := range []string{"EMP-0012", "emp:emp-0012", "12", "user_12", "acct:12"} {
		assert.True(t, a.Is(stored), "stored=%q", stored)
	}
	for _, stored := range []string{"EMP-0013", "13", "user_13", "", "user_"} {
		assert.False(t, a.Is(stored), "stored=%q", stored)
	}
}

func TestActor_Is_NumericCode(t *testing.T) {
	a := Actor{AccountID: 4, EmployeeCode: "2"}
	assert.True(t, a.Is("2"))
	assert.True(t, a.Is(" 2 "))
	assert.True(t, a.Is("4"), "account id still matches")
	assert.True(t, a.Is("emp:2"))
	assert.False(t, a.Is("acct:2"), "explicit account form is not a code")
	assert.False(t, a.Is("user_2"))
	assert.False(t, a.Is("3"))
}

func TestActor_NoCodeFallsBackToAccount(t *testing.T) {
	a := Actor{AccountID: 5}
	assert.Equal(t, CanonicalID("acct:5"), a.Canonical())
	assert.True(t, a.Is("user_5"))
	assert.False(t, Actor{}.Is(""))
	assert.False(t, Actor{}.Canonical().Valid())
}

func TestCanonicalID_Accessors(t *testing.T) {
	assert.Equal(t, int64(42), Canonicalize("user_42").AccountID())
	assert.Equal(t, "", Canonicalize("user_42").EmployeeCode())
	assert.Equal(t, "emp-1", Canonicalize("EMP-1").EmployeeCode())
	assert.Equal(t, int64(0), Canonicalize("EMP-1").AccountID())
	assert.Equal(t, CanonicalID(""), FromAccountID(0))
}
