package config

import (
	"time"

	"github.com/sosodev/duration"
)

// JWTConfig holds token signing configuration
type JWTConfig struct {
	Secret             string `yaml:"secret" env:"JWT_SECRET"`
	Issuer             string `yaml:"issuer" env:"JWT_ISSUER" env-default:"authcore"`
	AccessTokenExpiry  string `yaml:"access_token_expiry" env:"ACCESS_TOKEN_EXPIRY" env-default:"PT30M"`
	RefreshTokenExpiry string `yaml:"refresh_token_expiry" env:"REFRESH_TOKEN_EXPIRY" env-default:"P7D"`
}

// ParseAccessTokenExpiry parses the access token expiry duration
func (j JWTConfig) ParseAccessTokenExpiry() (time.Duration, error) {
	return parseDurationISO8601(j.AccessTokenExpiry)
}

// ParseRefreshTokenExpiry parses the refresh token expiry duration
func (j JWTConfig) ParseRefreshTokenExpiry() (time.Duration, error) {
	return parseDurationISO8601(j.RefreshTokenExpiry)
}

func (j JWTConfig) validate() ValidationErrors {
	errs := CollectErrors(
		RequireNonEmpty("JWT_SECRET", j.Secret),
		WhenSet(j.Secret, func() *ValidationError {
			return RequireMinLength("JWT_SECRET", j.Secret, 16)
		}),
	)
	errs = append(errs, CollectErrors(
		requireDuration("ACCESS_TOKEN_EXPIRY", j.AccessTokenExpiry, RequirePositiveDuration),
		requireDuration("REFRESH_TOKEN_EXPIRY", j.RefreshTokenExpiry, RequirePositiveDuration),
	)...)
	return errs
}

// parseDurationISO8601 tries to parse duration as ISO8601 first, then Go duration
func parseDurationISO8601(s string) (time.Duration, error) {
	// Try ISO8601 format first
	isoDuration, err := duration.Parse(s)
	if err == nil {
		return isoDuration.ToTimeDuration(), nil
	}

	// Fall back to Go duration format
	return time.ParseDuration(s)
}
