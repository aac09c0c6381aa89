package middleware

import (
	"testing"
	"time"

	"github.com/christianebacani/yoonet-quest-system-sub000/game/identity"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-jwt-secret-32bytes-padded!!"

var lead = identity.Actor{AccountID: 99, EmployeeCode: "LEAD-1", Role: "quest_lead"}

func signed(t *testing.T, method jwt.SigningMethod, key any, claims jwt.Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestParseToken_RoundTrip(t *testing.T) {
	tok, err := GenerateToken(lead, testSecret, time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(tok, testSecret)
	require.NoError(t, err)
	assert.Equal(t, lead, claims.Actor())
	assert.Equal(t, "emp:lead-1", claims.Subject)
	assert.Equal(t, TokenIssuer, claims.Issuer)
	assert.NotEmpty(t, claims.ID)

	other, err := GenerateToken(lead, testSecret, time.Hour)
	require.NoError(t, err)
	otherClaims, err := ParseToken(other, testSecret)
	require.NoError(t, err)
	assert.NotEqual(t, claims.ID, otherClaims.ID)
}

func TestParseToken_Rejects(t *testing.T) {
	good, err := GenerateToken(lead, testSecret, time.Hour)
	require.NoError(t, err)
	expired, err := GenerateToken(lead, testSecret, -time.Minute)
	require.NoError(t, err)
	noActor, err := GenerateToken(identity.Actor{Role: "admin"}, testSecret, time.Hour)
	require.NoError(t, err)

	exp := jwt.NewNumericDate(time.Now().Add(time.Hour))
	cases := map[string]struct {
		tok    string
		secret string
		is     error
	}{
		"wrong secret": {good, "wrong-secret", jwt.ErrTokenSignatureInvalid},
		"expired":      {expired, testSecret, jwt.ErrTokenExpired},
		"no actor":     {noActor, testSecret, ErrNoActor},
		"malformed":    {"not.a.jwt", testSecret, jwt.ErrTokenMalformed},
		"empty":        {"", testSecret, jwt.ErrTokenMalformed},
		"foreign issuer": {signed(t, jwt.SigningMethodHS256, []byte(testSecret), &Claims{
			EmployeeCode:     "LEAD-1",
			RegisteredClaims: jwt.RegisteredClaims{ID: "x", Issuer: "elsewhere", ExpiresAt: exp},
		}), testSecret, jwt.ErrTokenInvalidIssuer},
		"no expiry": {signed(t, jwt.SigningMethodHS256, []byte(testSecret), &Claims{
			EmployeeCode:     "LEAD-1",
			RegisteredClaims: jwt.RegisteredClaims{ID: "x", Issuer: TokenIssuer},
		}), testSecret, jwt.ErrTokenRequiredClaimMissing},
		"no jti": {signed(t, jwt.SigningMethodHS256, []byte(testSecret), &Claims{
			EmployeeCode:     "LEAD-1",
			RegisteredClaims: jwt.RegisteredClaims{Issuer: TokenIssuer, ExpiresAt: exp},
		}), testSecret, ErrNoTokenID},
		"hs512": {signed(t, jwt.SigningMethodHS512, []byte(testSecret), &Claims{
			EmployeeCode:     "LEAD-1",
			RegisteredClaims: jwt.RegisteredClaims{ID: "x", Issuer: TokenIssuer, ExpiresAt: exp},
		}), testSecret, jwt.ErrTokenSignatureInvalid},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseToken(tc.tok, tc.secret)
			assert.ErrorIs(t, err, tc.is)
		})
	}
}
