// Package session issues and verifies the bearer tokens handed out at login.
package session

import (
	"errors"
	"fmt"
	"time"

	"staff-tracker/internal/models"

	"github.com/golang-jwt/jwt/v4"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims carry the authenticated account. PasswordExpired tokens may only be
// used to change the password.
type Claims struct {
	AccountID       int         `json:"user_id"`
	Role            models.Role `json:"role"`
	PasswordExpired bool        `json:"pwd_expired,omitempty"`
	jwt.RegisteredClaims
}

func (c Claims) Auth() models.AuthenticatedContext {
	return models.AuthenticatedContext{AccountID: c.AccountID, Role: c.Role}
}

type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (i *Issuer) Issue(auth models.AuthenticatedContext, passwordExpired bool) (string, time.Time, error) {
	now := i.now()
	exp := now.Add(i.ttl)
	claims := Claims{
		AccountID:       auth.AccountID,
		Role:            auth.Role,
		PasswordExpired: passwordExpired,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	return token, exp, nil
}

func (i *Issuer) Parse(raw string) (Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil || !token.Valid {
		return Claims{}, ErrInvalidToken
	}
	if claims.ExpiresAt == nil || !claims.Role.Valid() || claims.AccountID <= 0 {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}
