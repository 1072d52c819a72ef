// Package passwordpolicy scores password strength and enforces composition rules.
//
// Evaluation is a pure function of the password and the Policy. The score is
// the sum of three sub-scores (length, character-class complexity and pattern
// penalties), normalized against a maximum of 8 points and bucketed into a
// StrengthLevel. Hard violations make the password invalid regardless of score.
package passwordpolicy

import (
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	zxcvbn "github.com/nbutton23/zxcvbn-go"
)

// StrengthLevel buckets the normalized score.
type StrengthLevel string

const (
	VeryWeak   StrengthLevel = "very_weak"
	Weak       StrengthLevel = "weak"
	Medium     StrengthLevel = "medium"
	Strong     StrengthLevel = "strong"
	VeryStrong StrengthLevel = "very_strong"
)

const maxScore = 8

// Requirements reports which rules the password satisfied.
type Requirements struct {
	Length    bool `json:"length"`
	Uppercase bool `json:"uppercase"`
	Lowercase bool `json:"lowercase"`
	Digit     bool `json:"digit"`
	Special   bool `json:"special"`
}

// Assessment is the result of one evaluation. It is never persisted.
type Assessment struct {
	RawScore        int           `json:"raw_score"`
	NormalizedScore float64       `json:"normalized_score"`
	StrengthLevel   StrengthLevel `json:"strength_level"`
	EntropyBits     float64       `json:"entropy_bits"`
	IsValid         bool          `json:"is_valid"`
	Violations      []string      `json:"violations"`
	RequirementsMet Requirements  `json:"requirements_met"`
	PatternsFound   []string      `json:"patterns_found"`
	Guessability    *Guessability `json:"guessability,omitempty"`
}

// Guessability is the zxcvbn estimate for a password. It does not contribute
// to RawScore.
type Guessability struct {
	Score            int     `json:"score"`
	Entropy          float64 `json:"entropy"`
	CrackTimeDisplay string  `json:"crack_time_display"`
}

var commonPasswords = []string{
	"123456", "password", "qwerty", "abc123", "letmein",
	"welcome", "monkey", "1234567890", "admin", "guest",
	"123456789", "password123", "qwerty123",
}

var keyboardPatterns = []string{"qwerty", "asdf", "zxcv", "1234", "4321"}

var sequences = ascendingSequences()

// ascendingSequences lists 123..789 and abc..xyz.
func ascendingSequences() []string {
	var seqs []string
	for c := '1'; c <= '7'; c++ {
		seqs = append(seqs, string([]rune{c, c + 1, c + 2}))
	}
	for c := 'a'; c <= 'x'; c++ {
		seqs = append(seqs, string([]rune{c, c + 1, c + 2}))
	}
	return seqs
}

// Engine evaluates passwords against a validated Policy.
type Engine struct {
	policy Policy
}

// NewEngine validates the policy once and returns an engine bound to it.
func NewEngine(policy Policy) (*Engine, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &Engine{policy: policy}, nil
}

// Policy returns the policy the engine enforces.
func (e *Engine) Policy() Policy {
	return e.policy
}

// Evaluate scores the password against the engine's policy. userInputs, such
// as the account email, are penalized by the guessability estimate.
func (e *Engine) Evaluate(password string, userInputs ...string) Assessment {
	return Evaluate(password, e.policy, userInputs...)
}

// Evaluate scores password against policy. The same input always yields the
// same Assessment.
func Evaluate(password string, policy Policy, userInputs ...string) Assessment {
	a := Assessment{
		Violations:    []string{},
		PatternsFound: []string{},
	}

	lengthScore := a.checkLength(password, policy)
	classes := classify(password)
	complexityScore := a.checkComplexity(classes, policy)
	patternScore := 0
	if password != "" {
		patternScore = a.checkPatterns(password)
	}

	a.RawScore = lengthScore + complexityScore + patternScore
	a.NormalizedScore = math.Min(100, math.Max(0, float64(a.RawScore)/maxScore*100))
	a.StrengthLevel = levelFor(a.NormalizedScore)
	a.EntropyBits = entropy(password, classes)
	if a.RequirementsMet.Length {
		a.checkGuessability(password, policy, userInputs)
	}
	a.IsValid = len(a.Violations) == 0
	return a
}

func (a *Assessment) checkGuessability(password string, policy Policy, userInputs []string) {
	result := zxcvbn.PasswordStrength(password, userInputs)
	a.Guessability = &Guessability{
		Score:            result.Score,
		Entropy:          result.Entropy,
		CrackTimeDisplay: result.CrackTimeDisplay,
	}
	if policy.MinGuessScore > 0 && result.Score < policy.MinGuessScore {
		a.Violations = append(a.Violations, "Password is too easy to guess")
	}
}

func (a *Assessment) checkLength(password string, policy Policy) int {
	n := utf8.RuneCountInString(password)
	if n < policy.MinLength {
		a.Violations = append(a.Violations, fmt.Sprintf("Password must be at least %d characters long", policy.MinLength))
		return 0
	}
	if n > policy.MaxLength {
		a.Violations = append(a.Violations, fmt.Sprintf("Password must not exceed %d characters", policy.MaxLength))
		return 0
	}

	a.RequirementsMet.Length = true
	score := 1
	if n >= 12 {
		score++
	}
	if n >= 16 {
		score++
	}
	return score
}

func (a *Assessment) checkComplexity(c charClasses, policy Policy) int {
	score := 0
	check := func(present, required bool, met *bool, violation string) {
		*met = present
		if present {
			score++
		} else if required {
			a.Violations = append(a.Violations, violation)
		}
	}

	check(c.upper, policy.RequireUppercase, &a.RequirementsMet.Uppercase, "Password must contain at least one uppercase letter")
	check(c.lower, policy.RequireLowercase, &a.RequirementsMet.Lowercase, "Password must contain at least one lowercase letter")
	check(c.digit, policy.RequireDigit, &a.RequirementsMet.Digit, "Password must contain at least one number")
	check(c.special, policy.RequireSpecial, &a.RequirementsMet.Special, "Password must contain at least one special character")
	return score
}

func (a *Assessment) checkPatterns(password string) int {
	lower := strings.ToLower(password)
	score := 0

	for _, common := range commonPasswords {
		if strings.Contains(lower, common) {
			a.Violations = append(a.Violations, fmt.Sprintf("Password contains common weak pattern: %s", common))
			a.PatternsFound = append(a.PatternsFound, common)
		}
	}

	for _, seq := range sequences {
		if strings.Contains(lower, seq) {
			a.PatternsFound = append(a.PatternsFound, "sequence_"+seq)
			score--
		}
	}

	if hasRepeatedRun(password, 3) {
		a.PatternsFound = append(a.PatternsFound, "repetitive_chars")
		score--
	}

	for _, pattern := range keyboardPatterns {
		if strings.Contains(lower, pattern) {
			a.PatternsFound = append(a.PatternsFound, "keyboard_"+pattern)
			score--
		}
	}

	if len(a.PatternsFound) == 0 {
		score += 2
	}
	return score
}

type charClasses struct {
	upper, lower, digit, special bool
}

func classify(password string) charClasses {
	var c charClasses
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			c.upper = true
		case unicode.IsLower(r):
			c.lower = true
		case unicode.IsDigit(r) || unicode.IsNumber(r):
			c.digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			c.special = true
		}
	}
	return c
}

// hasRepeatedRun reports whether any rune occurs n or more times in a row.
func hasRepeatedRun(s string, n int) bool {
	var prev rune
	run := 0
	for i, r := range []rune(s) {
		if i > 0 && r == prev {
			run++
		} else {
			run = 1
		}
		if run >= n {
			return true
		}
		prev = r
	}
	return false
}

func entropy(password string, c charClasses) float64 {
	if password == "" {
		return 0
	}

	charset := 0
	if c.lower {
		charset += 26
	}
	if c.upper {
		charset += 26
	}
	if c.digit {
		charset += 10
	}
	if c.special {
		charset += 32
	}
	if charset == 0 {
		return 0
	}

	runes := []rune(password)
	unique := make(map[rune]struct{}, len(runes))
	for _, r := range runes {
		unique[r] = struct{}{}
	}

	length := float64(len(runes))
	return length * math.Log2(float64(charset)) * float64(len(unique)) / length
}

func levelFor(score float64) StrengthLevel {
	switch {
	case score >= 80:
		return VeryStrong
	case score >= 60:
		return Strong
	case score >= 40:
		return Medium
	case score >= 20:
		return Weak
	default:
		return VeryWeak
	}
}
