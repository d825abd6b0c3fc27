package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid manage token")

// ManageTokens issues the signed links guests use for self-service
// actions on their own reservation (cancel, accept a counter-offer)
// without an account.
type ManageTokens struct {
	secret []byte
	ttl    time.Duration
}

func NewManageTokens(secret string, ttl time.Duration) *ManageTokens {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &ManageTokens{secret: []byte(secret), ttl: ttl}
}

type manageClaims struct {
	Code string `json:"code"`
	jwt.RegisteredClaims
}

// Issue signs a token for a reservation id and short code.
func (m *ManageTokens) Issue(reservationID, code string) (string, error) {
	claims := manageClaims{
		Code: code,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   reservationID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign manage token: %w", err)
	}
	return signed, nil
}

// Verify checks a token and returns the reservation id and code it was
// issued for.
func (m *ManageTokens) Verify(tokenString string) (reservationID, code string, err error) {
	token, err := jwt.ParseWithClaims(tokenString, &manageClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*manageClaims)
	if !ok || claims.Subject == "" {
		return "", "", ErrInvalidToken
	}
	return claims.Subject, claims.Code, nil
}
