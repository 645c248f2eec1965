package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token classes. A refresh token is never accepted where an access token is
// required and vice versa.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// ErrInvalidToken is the single verification failure reported to callers:
// bad signature, expired, malformed claims, and class mismatch all map here.
var ErrInvalidToken = errors.New("invalid token")

type Manager struct {
	secret []byte
	now    func() time.Time
}

func NewManager(secret string) *Manager {
	return &Manager{
		secret: []byte(secret),
		now:    time.Now,
	}
}

// NewToken signs a token carrying the subject account id, a class tag, and an
// expiry. The jti claim keeps two tokens minted in the same second distinct.
func (m *Manager) NewToken(accountID, tokenType string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub":  accountID,
		"type": tokenType,
		"exp":  m.now().Add(ttl).Unix(),
		"jti":  uuid.NewString(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return token.SignedString(m.secret)
}

// Parse verifies the signature and expiry of tokenStr, checks that its class
// matches wantType, and returns the subject account id. It fails closed.
func (m *Manager) Parse(tokenStr, wantType string) (string, error) {
	claims := jwt.MapClaims{}

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	if typ, ok := claims["type"].(string); !ok || typ != wantType {
		return "", ErrInvalidToken
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", ErrInvalidToken
	}

	return sub, nil
}
