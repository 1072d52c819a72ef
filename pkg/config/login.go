package config

import (
	"time"

	"github.com/alimurtadho/authcore/pkg/lockout"
	"github.com/alimurtadho/authcore/pkg/ratelimit"
)

// LoginConfig contains login behavior settings.
type LoginConfig struct {
	// MaxFailedAttempts is the number of consecutive failures that locks an account. 0 disables lockout.
	MaxFailedAttempts int `yaml:"max_failed_attempts" env:"LOGIN_MAX_FAILED_ATTEMPTS" env-default:"5"`

	// LockoutDuration is how long a locked account stays locked (ISO 8601 format, e.g., "PT15M")
	LockoutDuration string `yaml:"lockout_duration" env:"LOGIN_LOCKOUT_DURATION" env-default:"PT15M"`

	// PasswordHash selects the hasher for new passwords: "bcrypt" or "argon2id"
	PasswordHash string `yaml:"password_hash" env:"LOGIN_PASSWORD_HASH" env-default:"bcrypt"`

	BcryptCost int `yaml:"bcrypt_cost" env:"LOGIN_BCRYPT_COST" env-default:"10"`

	// RateLimitAttempts is the number of login attempts allowed per email within RateLimitWindow. 0 disables rate limiting.
	RateLimitAttempts int `yaml:"rate_limit_attempts" env:"LOGIN_RATE_LIMIT_ATTEMPTS" env-default:"5"`

	RateLimitWindow string `yaml:"rate_limit_window" env:"LOGIN_RATE_LIMIT_WINDOW" env-default:"PT15M"`
}

// ParseLockoutDuration parses the LockoutDuration field as a time.Duration.
// Supports ISO 8601 duration format (e.g., "PT15M") and Go duration format (e.g., "15m").
func (c LoginConfig) ParseLockoutDuration() (time.Duration, error) {
	return parseDurationISO8601(c.LockoutDuration)
}

// ToLockoutPolicy converts the configuration to a lockout.Policy
func (c LoginConfig) ToLockoutPolicy() (lockout.Policy, error) {
	d, err := c.ParseLockoutDuration()
	if err != nil {
		return lockout.Policy{}, err
	}
	return lockout.Policy{Threshold: c.MaxFailedAttempts, Duration: d}, nil
}

// ToRateLimitPolicy converts the configuration to a ratelimit.Policy
func (c LoginConfig) ToRateLimitPolicy() (ratelimit.Policy, error) {
	d, err := parseDurationISO8601(c.RateLimitWindow)
	if err != nil {
		return ratelimit.Policy{}, err
	}
	return ratelimit.Policy{Attempts: c.RateLimitAttempts, Window: d}, nil
}

func (c LoginConfig) validate() ValidationErrors {
	errs := CollectErrors(
		RequireNonNegative("LOGIN_MAX_FAILED_ATTEMPTS", c.MaxFailedAttempts),
		requireDuration("LOGIN_LOCKOUT_DURATION", c.LockoutDuration, RequireNonNegativeDuration),
		RequireOneOf("LOGIN_PASSWORD_HASH", c.PasswordHash, []string{"bcrypt", "argon2id"}),
		// bcrypt.MinCost and bcrypt.MaxCost
		RequireInRange("LOGIN_BCRYPT_COST", c.BcryptCost, 4, 31),
		RequireNonNegative("LOGIN_RATE_LIMIT_ATTEMPTS", c.RateLimitAttempts),
		requireDuration("LOGIN_RATE_LIMIT_WINDOW", c.RateLimitWindow, RequireNonNegativeDuration),
	)
	if errs.HasErrors() {
		return errs
	}

	policy, _ := c.ToLockoutPolicy()
	if err := policy.Validate(); err != nil {
		errs = append(errs, ValidationError{Field: "LOGIN_LOCKOUT_DURATION", Message: err.Error()})
	}

	rate, _ := c.ToRateLimitPolicy()
	if err := rate.Validate(); err != nil {
		errs = append(errs, ValidationError{Field: "LOGIN_RATE_LIMIT_WINDOW", Message: err.Error()})
	}
	return errs
}
