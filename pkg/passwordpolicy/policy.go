package passwordpolicy

import "fmt"

// Policy enumerates the composition rules a password must satisfy.
type Policy struct {
	MinLength        int
	MaxLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireDigit     bool
	RequireSpecial   bool
	// MinGuessScore rejects passwords whose zxcvbn score (0-4) is lower.
	// Zero disables the check.
	MinGuessScore int
}

// DefaultPolicy returns the policy used when none is configured:
// 8 to 128 characters with upper, lower and digit required.
func DefaultPolicy() Policy {
	return Policy{
		MinLength:        8,
		MaxLength:        128,
		RequireUppercase: true,
		RequireLowercase: true,
		RequireDigit:     true,
		RequireSpecial:   false,
	}
}

// Validate checks that the length bounds are usable.
func (p Policy) Validate() error {
	if p.MinLength < 1 {
		return fmt.Errorf("password min length must be at least 1, got %d", p.MinLength)
	}
	if p.MaxLength < p.MinLength {
		return fmt.Errorf("password max length (%d) must not be less than min length (%d)", p.MaxLength, p.MinLength)
	}
	if p.MinGuessScore < 0 || p.MinGuessScore > 4 {
		return fmt.Errorf("password min guess score must be between 0 and 4, got %d", p.MinGuessScore)
	}
	return nil
}
