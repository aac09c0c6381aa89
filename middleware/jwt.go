package middleware

import (
	"errors"
	"fmt"
	"time"

	"github.com/christianebacani/yoonet-quest-system-sub000/game/identity"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenIssuer is stamped on every token and required when parsing.
const TokenIssuer = "questd"

const clockLeeway = 5 * time.Second

var (
	ErrNoActor   = errors.New("token names no actor")
	ErrNoTokenID = errors.New("token has no id")
)

// Claims is the JWT payload. The jti is what logout and refresh revoke.
type Claims struct {
	AccountID    int64  `json:"account_id,omitempty"`
	EmployeeCode string `json:"employee_code,omitempty"`
	Role         string `json:"role"`
	jwt.RegisteredClaims
}

// Actor returns the quest actor the claims describe.
func (c *Claims) Actor() identity.Actor {
	return identity.Actor{AccountID: c.AccountID, EmployeeCode: c.EmployeeCode, Role: c.Role}
}

// GenerateToken signs an HS256 token for actor valid for ttl.
func GenerateToken(actor identity.Actor, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		AccountID:    actor.AccountID,
		EmployeeCode: actor.EmployeeCode,
		Role:         actor.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    TokenIssuer,
			Subject:   string(actor.Canonical()),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

var parser = jwt.NewParser(
	jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	jwt.WithIssuer(TokenIssuer),
	jwt.WithExpirationRequired(),
	jwt.WithIssuedAt(),
	jwt.WithLeeway(clockLeeway),
)

// ParseToken verifies tokenStr and returns its claims. Tokens must carry
// an id and name an actor.
func ParseToken(tokenStr, secret string) (*Claims, error) {
	claims := &Claims{}
	_, err := parser.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if claims.ID == "" {
		return nil, ErrNoTokenID
	}
	if !claims.Actor().Canonical().Valid() {
		return nil, ErrNoActor
	}
	return claims, nil
}
