package tokengenerator

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/alimurtadho/authcore/pkg/clock"
)

// Option configures a TokenManager
type Option func(*TokenManager)

// IssueOption adjusts the claims of a single token.
type IssueOption func(*Claims)

// parseDurationValue parses either a string or time.Duration into time.Duration
func parseDurationValue(v interface{}) (time.Duration, error) {
	switch val := v.(type) {
	case time.Duration:
		return val, nil
	case string:
		if val == "" {
			return 0, nil
		}
		return time.ParseDuration(val)
	default:
		return 0, fmt.Errorf("invalid duration type: %T", v)
	}
}

// WithAccessTokenExpiry sets the access token expiry duration.
// Accepts either time.Duration or string (e.g., "30m").
func WithAccessTokenExpiry(expiry interface{}) Option {
	return func(m *TokenManager) {
		if d, err := parseDurationValue(expiry); err == nil && d > 0 {
			m.accessTokenExpiry = d
		} else if err != nil {
			m.logger.Error("Failed to parse access token expiry", "err", err, "value", expiry)
		}
	}
}

// WithRefreshTokenExpiry sets the refresh token expiry duration.
// Accepts either time.Duration or string (e.g., "168h").
func WithRefreshTokenExpiry(expiry interface{}) Option {
	return func(m *TokenManager) {
		if d, err := parseDurationValue(expiry); err == nil && d > 0 {
			m.refreshTokenExpiry = d
		} else if err != nil {
			m.logger.Error("Failed to parse refresh token expiry", "err", err, "value", expiry)
		}
	}
}

// WithClock sets the time source used for iat, exp and verification.
func WithClock(c clock.Clock) Option {
	return func(m *TokenManager) {
		if c != nil {
			m.clock = c
		}
	}
}

// WithIssuer sets the iss claim.
func WithIssuer(issuer string) Option {
	return func(m *TokenManager) {
		m.issuer = issuer
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *TokenManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithVersion stamps the account token version into the ver claim.
func WithVersion(version int) IssueOption {
	return func(c *Claims) {
		c.Version = version
	}
}
