package tokengenerator

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/alimurtadho/authcore/pkg/clock"
	autherrors "github.com/alimurtadho/authcore/pkg/errors"
)

// Kind discriminates access tokens from refresh tokens.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Default token expiry durations
const (
	DefaultAccessTokenExpiry  = 30 * time.Minute
	DefaultRefreshTokenExpiry = 7 * 24 * time.Hour
)

// Claims struct for JWT claims
type Claims struct {
	Kind    Kind `json:"kind"`
	Version int  `json:"ver"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies HS256-signed access and refresh tokens.
type TokenManager struct {
	secrets            SecretStore
	clock              clock.Clock
	issuer             string
	accessTokenExpiry  time.Duration
	refreshTokenExpiry time.Duration
	logger             *slog.Logger
}

// NewTokenManager creates a TokenManager signing with keys from secrets.
func NewTokenManager(secrets SecretStore, opts ...Option) *TokenManager {
	m := &TokenManager{
		secrets:            secrets,
		clock:              clock.Real{},
		accessTokenExpiry:  DefaultAccessTokenExpiry,
		refreshTokenExpiry: DefaultRefreshTokenExpiry,
		logger:             slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AccessTokenExpiry returns the configured access token lifetime.
func (m *TokenManager) AccessTokenExpiry() time.Duration {
	return m.accessTokenExpiry
}

// RefreshTokenExpiry returns the configured refresh token lifetime.
func (m *TokenManager) RefreshTokenExpiry() time.Duration {
	return m.refreshTokenExpiry
}

// IssueAccess issues an access token with the configured lifetime.
func (m *TokenManager) IssueAccess(subject string, opts ...IssueOption) (string, time.Time, error) {
	return m.Issue(subject, KindAccess, m.accessTokenExpiry, opts...)
}

// IssueRefresh issues a refresh token with the configured lifetime.
func (m *TokenManager) IssueRefresh(subject string, opts ...IssueOption) (string, time.Time, error) {
	return m.Issue(subject, KindRefresh, m.refreshTokenExpiry, opts...)
}

// Issue signs a token for subject that expires ttl from now. Timestamps have
// second precision and exp is always after iat: a positive ttl shorter than a
// second is rounded up, and a non-positive ttl back-dates iat so the token is
// already expired.
func (m *TokenManager) Issue(subject string, kind Kind, ttl time.Duration, opts ...IssueOption) (string, time.Time, error) {
	key, err := m.secrets.SigningKey()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("load signing key: %w", err)
	}

	iat := m.clock.Now().UTC().Truncate(time.Second)
	exp := iat.Add(ttl).Truncate(time.Second)
	if !exp.After(iat) {
		if ttl > 0 {
			exp = iat.Add(time.Second)
		} else {
			iat = exp.Add(-time.Second)
		}
	}

	claims := Claims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(iat),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.New().String(),
		},
	}
	for _, opt := range opts {
		opt(&claims)
	}

	ss, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		m.logger.Error("Failed sign JWT Claim string!", "err", err)
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return ss, exp, nil
}

// Verify checks signature, kind, expiry and subject, in that order.
func (m *TokenManager) Verify(tokenStr string, expected Kind) (*Claims, error) {
	key, err := m.secrets.SigningKey()
	if err != nil {
		return nil, fmt.Errorf("load signing key: %w", err)
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.clock.Now),
		jwt.WithExpirationRequired(),
	)

	claims := &Claims{}
	_, err = parser.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return key, nil
	})

	// The signature is checked before claims, so an expired token still
	// carries trustworthy claims here.
	expired := false
	if err != nil {
		if !errors.Is(err, jwt.ErrTokenExpired) {
			m.logger.Debug("Failed parse JWT string!", "err", err)
			return nil, autherrors.Wrap(err, autherrors.ErrCodeTokenMalformed, "malformed token")
		}
		expired = true
	}

	if claims.Kind != expected {
		return nil, autherrors.Newf(autherrors.ErrCodeTokenTypeMismatch, "expected %s token, got %q", expected, claims.Kind)
	}

	if expired || claims.ExpiresAt == nil || !m.clock.Now().Before(claims.ExpiresAt.Time) {
		return nil, autherrors.New(autherrors.ErrCodeTokenExpired, "token has expired")
	}

	if claims.Subject == "" {
		return nil, autherrors.New(autherrors.ErrCodeTokenMissingSubject, "token has no subject")
	}

	return claims, nil
}

// Peek decodes claims without verifying the signature. It must not be used
// for authorization decisions.
func (m *TokenManager) Peek(tokenStr string) (*Claims, bool) {
	return Peek(tokenStr)
}

// IsExpired reports whether the token is expired. Tokens that cannot be
// decoded, or carry no exp, count as expired.
func (m *TokenManager) IsExpired(tokenStr string) bool {
	claims, ok := Peek(tokenStr)
	if !ok || claims.ExpiresAt == nil {
		return true
	}
	return !m.clock.Now().Before(claims.ExpiresAt.Time)
}

// Peek decodes claims without verifying the signature.
func Peek(tokenStr string) (*Claims, bool) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return nil, false
	}
	return claims, true
}
