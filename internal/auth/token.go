package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	defaultIssuer   = "devsign"
	defaultTokenTTL = 12 * time.Hour
)

// ErrInvalidToken indicates the token failed validation. Bad signature,
// malformed payload and expiry all collapse into this one error so the
// failure mode is not distinguishable by a caller.
var ErrInvalidToken = errors.New("invalid token")

// Claims carries the member identity embedded in a signed token.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Authority issues and verifies signed identity tokens. Tokens are
// stateless: there is no revocation list, a token stays valid until it
// expires. Suspension is enforced per request by the status gate instead.
type Authority struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// AuthorityOption configures an Authority.
type AuthorityOption func(*Authority)

// WithIssuer overrides the issuer claim.
func WithIssuer(issuer string) AuthorityOption {
	return func(a *Authority) {
		if s := strings.TrimSpace(issuer); s != "" {
			a.issuer = s
		}
	}
}

// WithTTL overrides the token lifetime.
func WithTTL(ttl time.Duration) AuthorityOption {
	return func(a *Authority) {
		if ttl > 0 {
			a.ttl = ttl
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) AuthorityOption {
	return func(a *Authority) {
		if fn != nil {
			a.now = fn
		}
	}
}

// NewAuthority constructs an Authority signing with the given secret.
func NewAuthority(secret string, opts ...AuthorityOption) (*Authority, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("auth: secret is not configured")
	}
	a := &Authority{
		secret: []byte(secret),
		issuer: defaultIssuer,
		ttl:    defaultTokenTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// TTL reports the configured token lifetime.
func (a *Authority) TTL() time.Duration { return a.ttl }

// Issue signs a token for the given subject and role using HS256.
func (a *Authority) Issue(subject, role string) (string, time.Time, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", time.Time{}, errors.New("auth: subject is required")
	}
	now := a.now().UTC()
	expiresAt := now.Add(a.ttl)
	claims := Claims{
		Role: normalizeRole(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify checks the signature and claims of a token and returns the
// embedded identity. Every failure is reported as ErrInvalidToken.
func (a *Authority) Verify(token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return a.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return a.now().UTC() }))
	if err != nil {
		return Identity{}, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Identity{}, ErrInvalidToken
	}
	if err := a.validateClaims(claims); err != nil {
		return Identity{}, ErrInvalidToken
	}
	return Identity{Subject: claims.Subject, Role: normalizeRole(claims.Role)}, nil
}

func (a *Authority) validateClaims(claims *Claims) error {
	if claims.Issuer != a.issuer {
		return errors.New("unexpected issuer")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return errors.New("subject missing")
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return errors.New("timestamps missing")
	}
	now := a.now().UTC()
	if now.After(claims.ExpiresAt.Time) {
		return errors.New("token expired")
	}
	// Allow a small clock skew of 5 seconds when validating issued-at.
	if claims.IssuedAt.Time.After(now.Add(5 * time.Second)) {
		return errors.New("token issued in the future")
	}
	if claims.ExpiresAt.Time.Before(claims.IssuedAt.Time) {
		return errors.New("token expiry precedes issued-at")
	}
	return nil
}

func normalizeRole(role string) string {
	role = strings.ToUpper(strings.TrimSpace(role))
	if role != RoleAdmin {
		return RoleUser
	}
	return role
}
