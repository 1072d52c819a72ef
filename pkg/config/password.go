package config

import (
	"github.com/jinzhu/copier"

	"github.com/alimurtadho/authcore/pkg/passwordpolicy"
)

// PasswordPolicyConfig holds password policy configuration from environment variables.
// Field names match passwordpolicy.Policy so the two can be copied.
type PasswordPolicyConfig struct {
	MinLength        int  `yaml:"min_length" env:"PASSWORD_MIN_LENGTH" env-default:"8"`
	MaxLength        int  `yaml:"max_length" env:"PASSWORD_MAX_LENGTH" env-default:"128"`
	RequireUppercase bool `yaml:"require_uppercase" env:"PASSWORD_REQUIRE_UPPERCASE" env-default:"true"`
	RequireLowercase bool `yaml:"require_lowercase" env:"PASSWORD_REQUIRE_LOWERCASE" env-default:"true"`
	RequireDigit     bool `yaml:"require_digit" env:"PASSWORD_REQUIRE_DIGIT" env-default:"true"`
	RequireSpecial   bool `yaml:"require_special" env:"PASSWORD_REQUIRE_SPECIAL" env-default:"false"`
	MinGuessScore    int  `yaml:"min_guess_score" env:"PASSWORD_MIN_GUESS_SCORE" env-default:"0"`
}

// ToPasswordPolicy converts the configuration to a passwordpolicy.Policy
func (c PasswordPolicyConfig) ToPasswordPolicy() (passwordpolicy.Policy, error) {
	var policy passwordpolicy.Policy
	if err := copier.Copy(&policy, &c); err != nil {
		return passwordpolicy.Policy{}, err
	}
	return policy, nil
}

func (c PasswordPolicyConfig) validate() ValidationErrors {
	errs := CollectErrors(
		RequirePositive("PASSWORD_MIN_LENGTH", c.MinLength),
		RequireInRange("PASSWORD_MIN_GUESS_SCORE", c.MinGuessScore, 0, 4),
	)
	if c.MaxLength < c.MinLength {
		errs = append(errs, ValidationError{
			Field:   "PASSWORD_MAX_LENGTH",
			Message: "must not be less than PASSWORD_MIN_LENGTH",
		})
	}
	return errs
}
