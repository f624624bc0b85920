package mock

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"k8s.io/utils/clock"

	"github.com/kubedash/kubedash-go/internal/core/domain"
	"github.com/kubedash/kubedash-go/pkg/cmap"
)

// DefaultTokenTTL is the lifetime of issued tokens.
const DefaultTokenTTL = time.Hour

const issuer = "kubedash-mock"

// ErrTokenRevoked is returned for a token that was logged out or refreshed.
var ErrTokenRevoked = errors.New("token revoked")

// Claims are carried by mock tokens.
type Claims struct {
	Email    string      `json:"email"`
	Role     domain.Role `json:"role"`
	TenantID string      `json:"tenant_id,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 tokens and tracks revocations.
type TokenIssuer struct {
	secret  []byte
	ttl     time.Duration
	clock   clock.PassiveClock
	revoked *cmap.Map[time.Time] // jti -> token expiry
}

// NewTokenIssuer creates an issuer. An empty secret selects a random one.
func NewTokenIssuer(secret []byte, ttl time.Duration, clk clock.PassiveClock) (*TokenIssuer, error) {
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate signing key: %w", err)
		}
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &TokenIssuer{secret: secret, ttl: ttl, clock: clk, revoked: cmap.New[time.Time]()}, nil
}

// Issue signs a token for u.
func (ti *TokenIssuer) Issue(u domain.User) (string, *Claims, error) {
	now := ti.clock.Now()
	claims := &Claims{
		Email:    u.Email,
		Role:     u.Role,
		TenantID: u.TenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   u.ID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ti.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims, nil
}

// Verify checks the signature, time claims and revocation of token.
func (ti *TokenIssuer) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return ti.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ti.clock.Now),
	)
	if err != nil {
		return nil, err
	}
	if ti.revoked.Has(claims.ID) {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// Revoke invalidates the token identified by claims.
func (ti *TokenIssuer) Revoke(claims *Claims) {
	exp := ti.clock.Now().Add(ti.ttl)
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	ti.revoked.Set(claims.ID, exp)

	// Entries for tokens that expired on their own are no longer needed.
	now := ti.clock.Now()
	ti.revoked.DeleteFunc(func(_ string, exp time.Time) bool {
		return !now.Before(exp)
	})
}

// TTL returns the token lifetime.
func (ti *TokenIssuer) TTL() time.Duration {
	return ti.ttl
}
