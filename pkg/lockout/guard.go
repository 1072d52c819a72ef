// Package lockout implements the account lockout state machine.
//
// The Guard never touches storage. It decides whether an account may attempt
// authentication and returns updated copies of the account after each
// outcome; callers persist them inside a single repository update.
package lockout

import (
	"fmt"
	"time"

	"github.com/alimurtadho/authcore/pkg/account"
)

// State is the observable lockout state of an account.
type State string

const (
	StateActive   State = "active"
	StateLocked   State = "locked"
	StateDisabled State = "disabled"
)

// Reason explains a Decision.
type Reason string

const (
	ReasonNone     Reason = "none"
	ReasonLocked   Reason = "locked"
	ReasonDisabled Reason = "disabled"
)

// Decision is the outcome of CheckBeforeAttempt.
type Decision struct {
	Allowed     bool
	Reason      Reason
	LockedUntil *time.Time
}

// Policy configures when and for how long accounts lock.
// A zero Threshold disables lockout.
type Policy struct {
	Threshold int
	Duration  time.Duration
}

// DefaultPolicy locks for 15 minutes after 5 consecutive failures.
func DefaultPolicy() Policy {
	return Policy{Threshold: 5, Duration: 15 * time.Minute}
}

// Validate checks the policy values.
func (p Policy) Validate() error {
	if p.Threshold < 0 {
		return fmt.Errorf("lockout threshold must not be negative, got %d", p.Threshold)
	}
	if p.Threshold > 0 && p.Duration <= 0 {
		return fmt.Errorf("lockout duration must be positive when threshold is set, got %s", p.Duration)
	}
	return nil
}

// Guard applies a Policy to accounts.
type Guard struct {
	policy Policy
}

// NewGuard creates a Guard after validating policy.
func NewGuard(policy Policy) (*Guard, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &Guard{policy: policy}, nil
}

// Policy returns the guard's policy.
func (g *Guard) Policy() Policy {
	return g.policy
}

// IsLocked reports whether acct has a lock that is still in effect at now.
func IsLocked(acct account.Account, now time.Time) bool {
	return acct.LockedUntil != nil && now.Before(*acct.LockedUntil)
}

// State classifies acct at now. An expired lock counts as active.
func (g *Guard) State(acct account.Account, now time.Time) State {
	switch {
	case !acct.IsActive:
		return StateDisabled
	case IsLocked(acct, now):
		return StateLocked
	default:
		return StateActive
	}
}

// CheckBeforeAttempt decides whether acct may try to authenticate.
// Disabled accounts are rejected before the lock is considered.
func (g *Guard) CheckBeforeAttempt(acct account.Account, now time.Time) Decision {
	switch g.State(acct, now) {
	case StateDisabled:
		return Decision{Allowed: false, Reason: ReasonDisabled}
	case StateLocked:
		until := *acct.LockedUntil
		return Decision{Allowed: false, Reason: ReasonLocked, LockedUntil: &until}
	default:
		return Decision{Allowed: true, Reason: ReasonNone}
	}
}

// RecordFailure returns acct after one more failed attempt. A lock that has
// already expired is cleared first, so counting starts over. The threshold-th
// failure locks the account until now + Duration.
func (g *Guard) RecordFailure(acct account.Account, now time.Time) account.Account {
	if IsLocked(acct, now) {
		return acct
	}
	if acct.LockedUntil != nil {
		acct.LockedUntil = nil
		acct.FailedAttempts = 0
	}

	acct.FailedAttempts++
	if g.policy.Threshold > 0 && acct.FailedAttempts >= g.policy.Threshold {
		acct.FailedAttempts = g.policy.Threshold
		until := now.Add(g.policy.Duration)
		acct.LockedUntil = &until
	}
	return acct
}

// RecordSuccess returns acct with counters reset and LastLoginAt set to now.
func (g *Guard) RecordSuccess(acct account.Account, now time.Time) account.Account {
	acct.FailedAttempts = 0
	acct.LockedUntil = nil
	t := now
	acct.LastLoginAt = &t
	return acct
}
