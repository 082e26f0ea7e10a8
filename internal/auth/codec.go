package auth

import (
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"wishstash/internal/apperr"
)

// CodecConfig carries the signing-key material and lifetime bounds for the
// token codec.
type CodecConfig struct {
	CurrentKey  string
	PreviousKey string
	// RotationEnabled allows verification to fall back to PreviousKey for
	// tokens signed before the last rotation.
	RotationEnabled bool
	DefaultTTL      time.Duration
	MaxTTL          time.Duration
}

// Codec signs and verifies HS256 access tokens. Only the current key ever
// signs; the previous key is a verification fallback during rotation.
type Codec struct {
	mu       sync.RWMutex
	current  []byte
	previous []byte

	rotationEnabled bool
	defaultTTL      time.Duration
	maxTTL          time.Duration
}

func NewCodec(cfg CodecConfig) *Codec {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 15 * time.Minute
	}
	if cfg.MaxTTL <= 0 {
		cfg.MaxTTL = 15 * time.Minute
	}

	c := &Codec{
		current:         []byte(cfg.CurrentKey),
		rotationEnabled: cfg.RotationEnabled,
		defaultTTL:      cfg.DefaultTTL,
		maxTTL:          cfg.MaxTTL,
	}
	if cfg.PreviousKey != "" {
		c.previous = []byte(cfg.PreviousKey)
	}

	return c
}

// Issue signs a token for the user. A non-positive ttl uses the default; a
// ttl beyond the configured maximum is clamped, not rejected.
func (c *Codec) Issue(userID string, role Role, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	if ttl > c.maxTTL {
		ttl = c.maxTTL
	}

	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub":  userID,
		"role": string(role),
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}

	c.mu.RLock()
	key := c.current
	c.mu.RUnlock()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	encoded, err := token.SignedString(key)
	if err != nil {
		return "", apperr.Internal("sign token", err)
	}

	return encoded, nil
}

// Verify validates the token against the current key, falling back to the
// previous key when rotation is enabled. Both cryptographic failures and
// malformed claims surface as InvalidToken.
func (c *Codec) Verify(token string) (Claims, error) {
	c.mu.RLock()
	current, previous := c.current, c.previous
	rotation := c.rotationEnabled
	c.mu.RUnlock()

	claims, err := parseWithKey(token, current)
	if err != nil {
		if !rotation || previous == nil {
			return Claims{}, apperr.InvalidToken("invalid or malformed token")
		}
		claims, err = parseWithKey(token, previous)
		if err != nil {
			return Claims{}, apperr.InvalidToken("invalid or malformed token")
		}
	}

	subject, _ := claims["sub"].(string)
	if subject == "" {
		return Claims{}, apperr.InvalidToken("token has no subject")
	}

	out := Claims{Subject: subject}
	if role, ok := claims["role"].(string); ok {
		out.Role = Role(role)
	}
	if exp, ok := claims["exp"].(float64); ok {
		out.ExpiresAt = time.Unix(int64(exp), 0).UTC()
	}

	return out, nil
}

// Rotate installs newKey as the current signing key and demotes the old
// current key to the verification fallback slot.
func (c *Codec) Rotate(newKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.previous = c.current
	c.current = []byte(newKey)
	c.rotationEnabled = true
}

func parseWithKey(token string, key []byte) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, jwt.ErrTokenUnverifiable
	}

	return claims, nil
}

// Expiry extracts the expiry of a token without verifying its signature.
// Logout uses it to bound how long a revocation record must be retained.
func Expiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}

	switch exp := claims["exp"].(type) {
	case float64:
		return time.Unix(int64(exp), 0).UTC(), true
	case string:
		parsed, err := strconv.ParseInt(exp, 10, 64)
		if err != nil {
			return time.Time{}, false
		}
		return time.Unix(parsed, 0).UTC(), true
	default:
		return time.Time{}, false
	}
}
