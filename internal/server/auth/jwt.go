// Package auth mints the identity tokens handed to clients after a
// successful login.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/sigauth/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Issuer is the iss claim of every minted token.
const Issuer = "sigauth"

// Minter creates an identity token for a user.
type Minter interface {
	Mint(ctx context.Context, userID string) (string, error)
}

// Claims carries the standard claims plus the user id.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
}

// HMACMinter signs HS256 tokens with a shared secret.
type HMACMinter struct {
	secret   []byte
	validity time.Duration
	now      func() time.Time
}

func NewHMACMinter(secret []byte, validity time.Duration) *HMACMinter {
	return &HMACMinter{secret: secret, validity: validity, now: time.Now}
}

func (m *HMACMinter) Mint(_ context.Context, userID string) (string, error) {
	now := m.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.validity)),
		},
		UserID: userID,
	})

	s, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return s, nil
}

// ParseToken verifies tokenString and returns the user id it was minted for.
// Expired tokens yield common.ErrTokenExpired; anything else that fails
// verification yields common.ErrInvalidToken.
func ParseToken(tokenString string, secret []byte) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", common.ErrTokenExpired
		}
		return "", fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID == "" || claims.Subject != claims.UserID {
		return "", common.ErrInvalidToken
	}
	return claims.UserID, nil
}
