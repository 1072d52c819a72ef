package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alimurtadho/authcore/pkg/account"
	"github.com/alimurtadho/authcore/pkg/clock"
	autherrors "github.com/alimurtadho/authcore/pkg/errors"
	"github.com/alimurtadho/authcore/pkg/lockout"
	"github.com/alimurtadho/authcore/pkg/passwordpolicy"
	"github.com/alimurtadho/authcore/pkg/ratelimit"
	"github.com/alimurtadho/authcore/pkg/tokengenerator"
)

const tokenTypeBearer = "bearer"

// dummyPassword is hashed once and verified against when a login names an
// unknown email, so both failure paths pay for one hash comparison.
const dummyPassword = "authcore-timing-equalizer"

// TokenManager issues and verifies signed tokens.
type TokenManager interface {
	IssueAccess(subject string, opts ...tokengenerator.IssueOption) (string, time.Time, error)
	IssueRefresh(subject string, opts ...tokengenerator.IssueOption) (string, time.Time, error)
	Verify(token string, expected tokengenerator.Kind) (*tokengenerator.Claims, error)
	AccessTokenExpiry() time.Duration
}

// RegisterParams is the input to Register.
type RegisterParams struct {
	Email           string
	Password        string
	ConfirmPassword string
	Profile         account.Profile
}

// ChangePasswordParams is the input to ChangePassword.
type ChangePasswordParams struct {
	AccountID          uuid.UUID
	CurrentPassword    string
	NewPassword        string
	ConfirmNewPassword string
}

// ProfileUpdate holds the profile fields to change. Nil fields are left as is.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
	Bio       *string
}

// TokenPair is returned by Login and Refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Service coordinates registration, login, token refresh and password changes.
type Service struct {
	repo    account.Repository
	tokens  TokenManager
	guard   *lockout.Guard
	engine  *passwordpolicy.Engine
	hasher  PasswordHasher
	clock   clock.Clock
	limiter *ratelimit.RateLimiter
	metrics *Metrics
	logger  *slog.Logger

	dummyOnce sync.Once
	dummyHash string
}

// Option configures a Service
type Option func(*Service)

// WithHasher sets the password hasher. Defaults to bcrypt at the default cost.
func WithHasher(h PasswordHasher) Option {
	return func(s *Service) {
		if h != nil {
			s.hasher = h
		}
	}
}

func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithRateLimiter throttles login attempts per normalized email.
func WithRateLimiter(rl *ratelimit.RateLimiter) Option {
	return func(s *Service) {
		s.limiter = rl
	}
}

// WithMetrics enables Prometheus counters.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates a new authentication service
func NewService(repo account.Repository, tokens TokenManager, guard *lockout.Guard, engine *passwordpolicy.Engine, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		tokens: tokens,
		guard:  guard,
		engine: engine,
		hasher: NewBcryptHasher(0),
		clock:  clock.Real{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates an account after checking the confirmation, the email,
// the password policy and the profile.
func (s *Service) Register(ctx context.Context, params RegisterParams) (account.Account, error) {
	acct, err := s.register(ctx, params)
	s.metrics.observe("register", err)
	return acct, err
}

func (s *Service) register(ctx context.Context, params RegisterParams) (account.Account, error) {
	if params.Password != params.ConfirmPassword {
		return account.Account{}, autherrors.New(autherrors.ErrCodePasswordConfirmationMismatch, "passwords do not match")
	}

	email, err := validateEmail(params.Email)
	if err != nil {
		return account.Account{}, err
	}

	assessment := s.engine.Evaluate(params.Password, userInputs(email, params.Profile)...)
	if !assessment.IsValid {
		return account.Account{}, autherrors.PasswordComplexity(assessment.Violations)
	}

	profile, err := validateProfile(params.Profile)
	if err != nil {
		return account.Account{}, err
	}

	// Cheap pre-check so duplicates do not pay for a hash; Create still
	// enforces uniqueness.
	_, err = s.repo.FindByEmail(ctx, email)
	if err == nil {
		return account.Account{}, duplicateEmail()
	}
	if !errors.Is(err, account.ErrNotFound) {
		s.logger.Error("Failed to look up email", "email", email, "err", err)
		return account.Account{}, autherrors.InternalWrap(err, "failed to look up account")
	}

	hash, err := s.hasher.Hash(params.Password)
	if err != nil {
		return account.Account{}, autherrors.InternalWrap(err, "failed to hash password")
	}

	now := s.clock.Now()
	created, err := s.repo.Create(ctx, account.Account{
		Email:        email,
		PasswordHash: hash,
		IsActive:     true,
		Profile:      profile,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if errors.Is(err, account.ErrDuplicateEmail) {
		return account.Account{}, duplicateEmail()
	}
	if err != nil {
		s.logger.Error("Failed to create account", "email", email, "err", err)
		return account.Account{}, autherrors.InternalWrap(err, "failed to create account")
	}

	s.logger.Info("Account registered", "account_id", created.ID, "email", created.Email)
	return created, nil
}

// Login verifies credentials and issues a token pair. Unknown emails and wrong
// passwords produce the same INVALID_CREDENTIALS error. With a rate limiter,
// attempts beyond the limit fail with TOO_MANY_ATTEMPTS before any lookup.
func (s *Service) Login(ctx context.Context, email, password string) (TokenPair, error) {
	pair, err := s.login(ctx, email, password)
	s.metrics.observe("login", err)
	return pair, err
}

func (s *Service) login(ctx context.Context, email, password string) (TokenPair, error) {
	normalized := account.NormalizeEmail(email)

	if s.limiter != nil {
		if ok, retryAfter := s.limiter.Allow(normalized); !ok {
			s.logger.Warn("Login rate limited", "email", normalized, "retry_after", retryAfter)
			return TokenPair{}, autherrors.TooManyAttempts(retryAfter)
		}
	}

	found, err := s.repo.FindByEmail(ctx, normalized)
	if errors.Is(err, account.ErrNotFound) {
		s.burnVerify(password)
		s.logger.Debug("Login for unknown email", "email", normalized)
		return TokenPair{}, autherrors.InvalidCredentials()
	}
	if err != nil {
		s.logger.Error("Failed to look up email", "email", normalized, "err", err)
		return TokenPair{}, autherrors.InternalWrap(err, "failed to look up account")
	}

	// Set inside fn when the failure is persisted rather than aborting.
	var failure error

	acct, err := s.repo.Update(ctx, found.ID, func(current account.Account) (account.Account, error) {
		failure = nil
		now := s.clock.Now()

		decision := s.guard.CheckBeforeAttempt(current, now)
		if !decision.Allowed {
			return current, rejection(decision)
		}

		ok, err := s.hasher.Verify(password, current.PasswordHash)
		if err != nil {
			return current, fmt.Errorf("verify password: %w", err)
		}

		if !ok {
			next := s.guard.RecordFailure(current, now)
			next.UpdatedAt = now
			if lockout.IsLocked(next, now) {
				s.metrics.lockout()
				s.logger.Warn("Account locked after failed logins",
					"account_id", next.ID, "failed_attempts", next.FailedAttempts, "locked_until", *next.LockedUntil)
				failure = lockedError(*next.LockedUntil)
			} else {
				failure = autherrors.InvalidCredentials()
			}
			return next, nil
		}

		next := s.guard.RecordSuccess(current, now)
		next.UpdatedAt = now
		return next, nil
	})
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return TokenPair{}, autherrors.InvalidCredentials()
		}
		if isDomainError(err) {
			s.logger.Debug("Login rejected", "account_id", found.ID, "code", autherrors.GetCode(err))
			return TokenPair{}, err
		}
		s.logger.Error("Failed to record login attempt", "account_id", found.ID, "err", err)
		return TokenPair{}, autherrors.InternalWrap(err, "failed to record login attempt")
	}
	if failure != nil {
		s.logger.Debug("Login failed", "account_id", acct.ID, "failed_attempts", acct.FailedAttempts)
		return TokenPair{}, failure
	}

	pair, err := s.issuePair(acct)
	if err != nil {
		return TokenPair{}, err
	}

	if s.limiter != nil {
		s.limiter.Reset(normalized)
	}

	s.logger.Info("Login succeeded", "account_id", acct.ID)
	return pair, nil
}

// Refresh exchanges a refresh token for a new pair. Every failure is reported
// as TOKEN_INVALID.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	pair, err := s.refresh(ctx, refreshToken)
	s.metrics.observe("refresh", err)
	return pair, err
}

func (s *Service) refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.tokens.Verify(refreshToken, tokengenerator.KindRefresh)
	if err != nil {
		if !isDomainError(err) || autherrors.IsCode(err, autherrors.ErrCodeInternal) {
			s.logger.Error("Failed to verify refresh token", "err", err)
			return TokenPair{}, autherrors.InternalWrap(err, "failed to verify token")
		}
		s.logger.Warn("Refresh token rejected", "code", autherrors.GetCode(err))
		return TokenPair{}, autherrors.TokenInvalid(err)
	}

	acct, err := s.accountForClaims(ctx, claims)
	if err != nil {
		return TokenPair{}, err
	}
	if !acct.IsActive {
		s.logger.Warn("Refresh for disabled account", "account_id", acct.ID)
		return TokenPair{}, autherrors.TokenInvalid(nil)
	}

	return s.issuePair(acct)
}

// Authenticate verifies an access token and returns its account. Verification
// errors keep their specific token codes.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (account.Account, error) {
	acct, err := s.authenticate(ctx, accessToken)
	s.metrics.observe("authenticate", err)
	return acct, err
}

func (s *Service) authenticate(ctx context.Context, accessToken string) (account.Account, error) {
	claims, err := s.tokens.Verify(accessToken, tokengenerator.KindAccess)
	if err != nil {
		if !isDomainError(err) {
			return account.Account{}, autherrors.InternalWrap(err, "failed to verify token")
		}
		return account.Account{}, err
	}

	acct, err := s.accountForClaims(ctx, claims)
	if err != nil {
		return account.Account{}, err
	}
	if !acct.IsActive {
		return account.Account{}, autherrors.New(autherrors.ErrCodeUserDisabled, "account is disabled")
	}
	return acct, nil
}

// accountForClaims loads the token subject and checks the token version.
func (s *Service) accountForClaims(ctx context.Context, claims *tokengenerator.Claims) (account.Account, error) {
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return account.Account{}, autherrors.TokenInvalid(err)
	}

	acct, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, account.ErrNotFound) {
		return account.Account{}, autherrors.TokenInvalid(err)
	}
	if err != nil {
		s.logger.Error("Failed to load token subject", "account_id", id, "err", err)
		return account.Account{}, autherrors.InternalWrap(err, "failed to load account")
	}

	if claims.Version != acct.TokenVersion {
		s.logger.Warn("Token version is stale", "account_id", acct.ID, "token_version", claims.Version, "current_version", acct.TokenVersion)
		return account.Account{}, autherrors.TokenInvalid(nil)
	}
	return acct, nil
}

// ChangePassword replaces the password of an account. Tokens issued before the
// change stop verifying through Refresh and Authenticate.
func (s *Service) ChangePassword(ctx context.Context, params ChangePasswordParams) error {
	err := s.changePassword(ctx, params)
	s.metrics.observe("change_password", err)
	return err
}

func (s *Service) changePassword(ctx context.Context, params ChangePasswordParams) error {
	_, err := s.repo.Update(ctx, params.AccountID, func(current account.Account) (account.Account, error) {
		ok, err := s.hasher.Verify(params.CurrentPassword, current.PasswordHash)
		if err != nil {
			return current, fmt.Errorf("verify password: %w", err)
		}
		if !ok {
			return current, autherrors.New(autherrors.ErrCodeCurrentPasswordIncorrect, "current password is incorrect")
		}

		if params.NewPassword == params.CurrentPassword {
			return current, autherrors.New(autherrors.ErrCodeSamePassword, "new password must be different from current password")
		}

		if params.NewPassword != params.ConfirmNewPassword {
			return current, autherrors.New(autherrors.ErrCodePasswordConfirmationMismatch, "passwords do not match")
		}

		assessment := s.engine.Evaluate(params.NewPassword, userInputs(current.Email, current.Profile)...)
		if !assessment.IsValid {
			return current, autherrors.PasswordComplexity(assessment.Violations)
		}

		hash, err := s.hasher.Hash(params.NewPassword)
		if err != nil {
			return current, fmt.Errorf("hash password: %w", err)
		}

		now := s.clock.Now()
		current.PasswordHash = hash
		current.TokenVersion++
		current.PasswordChangedAt = &now
		current.UpdatedAt = now
		return current, nil
	})
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return autherrors.New(autherrors.ErrCodeUserNotFound, "account not found")
		}
		if isDomainError(err) {
			return err
		}
		s.logger.Error("Failed to change password", "account_id", params.AccountID, "err", err)
		return autherrors.InternalWrap(err, "failed to change password")
	}

	s.logger.Info("Password changed", "account_id", params.AccountID)
	return nil
}

// GetAccount returns the account with id.
func (s *Service) GetAccount(ctx context.Context, id uuid.UUID) (account.Account, error) {
	acct, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, account.ErrNotFound) {
		return account.Account{}, autherrors.New(autherrors.ErrCodeUserNotFound, "account not found")
	}
	if err != nil {
		return account.Account{}, autherrors.InternalWrap(err, "failed to load account")
	}
	return acct, nil
}

// UpdateProfile validates and applies the non-nil fields of update.
func (s *Service) UpdateProfile(ctx context.Context, id uuid.UUID, update ProfileUpdate) (account.Account, error) {
	var err error
	var firstName, lastName, bio string
	if update.FirstName != nil {
		if firstName, err = validateName("first_name", *update.FirstName); err != nil {
			return account.Account{}, err
		}
	}
	if update.LastName != nil {
		if lastName, err = validateName("last_name", *update.LastName); err != nil {
			return account.Account{}, err
		}
	}
	if update.Bio != nil {
		if bio, err = validateBio(*update.Bio); err != nil {
			return account.Account{}, err
		}
	}

	acct, err := s.repo.Update(ctx, id, func(current account.Account) (account.Account, error) {
		if update.FirstName != nil {
			current.Profile.FirstName = firstName
		}
		if update.LastName != nil {
			current.Profile.LastName = lastName
		}
		if update.Bio != nil {
			current.Profile.Bio = bio
		}
		current.UpdatedAt = s.clock.Now()
		return current, nil
	})
	if errors.Is(err, account.ErrNotFound) {
		return account.Account{}, autherrors.New(autherrors.ErrCodeUserNotFound, "account not found")
	}
	if err != nil {
		return account.Account{}, autherrors.InternalWrap(err, "failed to update profile")
	}
	return acct, nil
}

func (s *Service) issuePair(acct account.Account) (TokenPair, error) {
	subject := acct.ID.String()
	version := tokengenerator.WithVersion(acct.TokenVersion)

	access, _, err := s.tokens.IssueAccess(subject, version)
	if err != nil {
		s.logger.Error("Failed to issue access token", "account_id", acct.ID, "err", err)
		return TokenPair{}, autherrors.InternalWrap(err, "failed to issue access token")
	}

	refresh, _, err := s.tokens.IssueRefresh(subject, version)
	if err != nil {
		s.logger.Error("Failed to issue refresh token", "account_id", acct.ID, "err", err)
		return TokenPair{}, autherrors.InternalWrap(err, "failed to issue refresh token")
	}

	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    tokenTypeBearer,
		ExpiresIn:    int64(s.tokens.AccessTokenExpiry().Seconds()),
	}, nil
}

// burnVerify runs one hash comparison against a throwaway hash.
func (s *Service) burnVerify(password string) {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash(dummyPassword)
		if err != nil {
			s.logger.Error("Failed to prepare dummy hash", "err", err)
			return
		}
		s.dummyHash = hash
	})
	if s.dummyHash == "" {
		return
	}
	_, _ = s.hasher.Verify(password, s.dummyHash)
}

func rejection(d lockout.Decision) error {
	if d.Reason == lockout.ReasonDisabled {
		return autherrors.New(autherrors.ErrCodeUserDisabled, "account is disabled")
	}
	return lockedError(*d.LockedUntil)
}

func lockedError(until time.Time) error {
	return autherrors.Newf(autherrors.ErrCodeUserLocked, "account is locked until %s", until.UTC().Format(time.RFC3339)).
		WithDetail(autherrors.DetailLockedUntil, until)
}

func duplicateEmail() error {
	return autherrors.New(autherrors.ErrCodeUserAlreadyExists, "email already registered")
}

func isDomainError(err error) bool {
	var e *autherrors.Error
	return errors.As(err, &e)
}

// userInputs feeds account-specific words to the guessability estimate.
func userInputs(email string, p account.Profile) []string {
	inputs := make([]string, 0, 4)
	if local, _, ok := strings.Cut(email, "@"); ok && local != "" {
		inputs = append(inputs, local)
	}
	for _, v := range []string{p.FirstName, p.LastName} {
		if v != "" {
			inputs = append(inputs, v)
		}
	}
	return inputs
}
