package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken covers malformed, wrong-signature, wrong-class and expired
// tokens. Callers never learn which; all of them surface as unauthenticated.
var ErrInvalidToken = errors.New("invalid token")

// TokenCodec mints and verifies the two token classes. The access and refresh
// spaces are signed with distinct secrets so a token of one class can never
// be replayed as the other.
type TokenCodec struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

func NewTokenCodec(accessSecret, refreshSecret []byte, accessTTL, refreshTTL time.Duration) *TokenCodec {
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}
	return &TokenCodec{
		accessSecret:  accessSecret,
		refreshSecret: refreshSecret,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
}

func (c *TokenCodec) IssueAccessToken(id Identity) (string, time.Time, error) {
	return c.issue(id, c.accessSecret, c.accessTTL)
}

func (c *TokenCodec) IssueRefreshToken(id Identity) (string, time.Time, error) {
	return c.issue(id, c.refreshSecret, c.refreshTTL)
}

// issue signs the claim set with the given secret. The exp claim carries
// whole seconds, so sub-second TTLs truncate; effective TTLs are one second
// at minimum.
func (c *TokenCodec) issue(id Identity, secret []byte, ttl time.Duration) (string, time.Time, error) {
	now := c.now()
	exp := now.Add(ttl)

	claims := jwt.MapClaims{
		"id":   id.SubjectID,
		"role": string(id.Role),
		"iat":  now.Unix(),
		"exp":  exp.Unix(),
	}
	if id.Email != "" {
		claims["email"] = id.Email
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString(secret)
	return ss, exp, err
}

// VerifyAccessToken checks the token against the access secret and returns
// the normalized identity, or ErrInvalidToken for any failure.
func (c *TokenCodec) VerifyAccessToken(tokenStr string) (*Identity, error) {
	return c.verify(tokenStr, c.accessSecret)
}

// VerifyRefreshToken is the same contract against the refresh secret.
func (c *TokenCodec) VerifyRefreshToken(tokenStr string) (*Identity, error) {
	return c.verify(tokenStr, c.refreshSecret)
}

func (c *TokenCodec) verify(tokenStr string, secret []byte) (*Identity, error) {
	keyFunc := func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	}

	tok, err := jwt.ParseWithClaims(tokenStr, jwt.MapClaims{}, keyFunc, jwt.WithTimeFunc(c.now))
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}
	raw := tok.Claims.(jwt.MapClaims)
	return normalizeClaims(raw)
}

// normalizeClaims adapts the raw payload to the current claim shape. Tokens
// minted before the schema settled carry the subject under "_id" instead of
// "id"; everything downstream only ever sees SubjectID.
func normalizeClaims(raw jwt.MapClaims) (*Identity, error) {
	getString := func(k string) string {
		if v, ok := raw[k].(string); ok {
			return v
		}
		return ""
	}
	getInt64 := func(k string) int64 {
		switch v := raw[k].(type) {
		case float64:
			return int64(v)
		case int64:
			return v
		default:
			return 0
		}
	}

	sub := getString("id")
	if sub == "" {
		sub = getString("_id")
	}
	role := Role(getString("role"))
	if sub == "" || role == "" {
		return nil, ErrInvalidToken
	}

	return &Identity{
		SubjectID: sub,
		Role:      role,
		Email:     getString("email"),
		IssuedAt:  getInt64("iat"),
		ExpiresAt: getInt64("exp"),
	}, nil
}
