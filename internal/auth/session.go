// internal/auth/session.go
package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTokenTTL is used when no TOKEN_EXPIRE_TIME is configured.
const DefaultTokenTTL = 30 * 24 * time.Hour

// ErrInvalidToken is returned for any token that fails signature, expiry, or claim checks.
var ErrInvalidToken = errors.New("invalid token")

// Claims are the JWT claims issued to a player account.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Identity is what a verified token proves.
type Identity struct {
	UserID   uuid.UUID
	Username string
}

// Issuer signs and verifies HS256 session tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer builds an issuer for the given secret. An empty secret gets a random one,
// so tokens will not survive a restart. A ttl of 0 means tokens never expire.
func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("failed to generate jwt secret: %w", err)
		}
	}
	return &Issuer{secret: key, ttl: ttl, now: time.Now}, nil
}

// ParseTTL reads a TOKEN_EXPIRE_TIME style value. "never" and "0" disable expiry,
// an empty value falls back to DefaultTokenTTL.
func ParseTTL(value string) (time.Duration, error) {
	switch value {
	case "":
		return DefaultTokenTTL, nil
	case "never", "0":
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("failed to parse token expire time: %w", err)
	}
	return d, nil
}

// CreateJWT issues a token with sub = userID.
func (i *Issuer) CreateJWT(userID uuid.UUID, username string) (string, error) {
	now := i.now()
	claims := Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  userID.String(),
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if i.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(i.ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// AuthenticateJWT verifies a token string and returns the identity it carries.
func (i *Issuer) AuthenticateJWT(tokenString string) (Identity, error) {
	var claims Claims
	t, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.now))
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !t.Valid {
		return Identity{}, ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: bad sub: %v", ErrInvalidToken, err)
	}
	return Identity{UserID: userID, Username: claims.Username}, nil
}
