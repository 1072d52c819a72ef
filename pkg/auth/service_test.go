package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/alimurtadho/authcore/pkg/account"
	"github.com/alimurtadho/authcore/pkg/clock"
	autherrors "github.com/alimurtadho/authcore/pkg/errors"
	"github.com/alimurtadho/authcore/pkg/lockout"
	"github.com/alimurtadho/authcore/pkg/passwordpolicy"
	"github.com/alimurtadho/authcore/pkg/ratelimit"
	"github.com/alimurtadho/authcore/pkg/tokengenerator"
)

const (
	testEmail    = "user@example.com"
	testPassword = "ValidPass123"
	newPassword  = "NewValidPass456"
)

var testStart = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc     *Service
	repo    *account.InMemoryRepository
	clock   *clock.Fake
	tokens  *tokengenerator.TokenManager
	metrics *Metrics
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	fc := clock.NewFake(testStart)
	repo := account.NewInMemoryRepository()
	tokens := tokengenerator.NewTokenManager(
		tokengenerator.NewStaticSecretStore("test-secret"),
		tokengenerator.WithClock(fc),
		tokengenerator.WithLogger(discardLogger()),
	)

	guard, err := lockout.NewGuard(lockout.DefaultPolicy())
	require.NoError(t, err)

	engine, err := passwordpolicy.NewEngine(passwordpolicy.DefaultPolicy())
	require.NoError(t, err)

	metrics, err := NewMetrics(MetricsOptions{Registerer: prometheus.NewRegistry()})
	require.NoError(t, err)

	base := []Option{
		WithHasher(NewBcryptHasher(bcrypt.MinCost)),
		WithClock(fc),
		WithMetrics(metrics),
		WithLogger(discardLogger()),
	}
	svc := NewService(repo, tokens, guard, engine, append(base, opts...)...)

	return &fixture{svc: svc, repo: repo, clock: fc, tokens: tokens, metrics: metrics}
}

func (f *fixture) register(t *testing.T) account.Account {
	t.Helper()
	acct, err := f.svc.Register(context.Background(), RegisterParams{
		Email:           testEmail,
		Password:        testPassword,
		ConfirmPassword: testPassword,
	})
	require.NoError(t, err)
	return acct
}

func (f *fixture) disable(t *testing.T, id uuid.UUID) {
	t.Helper()
	_, err := f.repo.Update(context.Background(), id, func(a account.Account) (account.Account, error) {
		a.IsActive = false
		return a, nil
	})
	require.NoError(t, err)
}

// MockHasher is a mock implementation of PasswordHasher
type MockHasher struct {
	mock.Mock
}

func (m *MockHasher) Hash(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

func (m *MockHasher) Verify(password, hash string) (bool, error) {
	args := m.Called(password, hash)
	return args.Bool(0), args.Error(1)
}

// MockTokenManager is a mock implementation of TokenManager
type MockTokenManager struct {
	mock.Mock
}

func (m *MockTokenManager) IssueAccess(subject string, opts ...tokengenerator.IssueOption) (string, time.Time, error) {
	args := m.Called(subject)
	return args.String(0), args.Get(1).(time.Time), args.Error(2)
}

func (m *MockTokenManager) IssueRefresh(subject string, opts ...tokengenerator.IssueOption) (string, time.Time, error) {
	args := m.Called(subject)
	return args.String(0), args.Get(1).(time.Time), args.Error(2)
}

func (m *MockTokenManager) Verify(token string, expected tokengenerator.Kind) (*tokengenerator.Claims, error) {
	args := m.Called(token, expected)
	claims, _ := args.Get(0).(*tokengenerator.Claims)
	return claims, args.Error(1)
}

func (m *MockTokenManager) AccessTokenExpiry() time.Duration {
	return m.Called().Get(0).(time.Duration)
}

// failingRepository fails every call with err.
type failingRepository struct {
	err error
}

func (r failingRepository) FindByEmail(context.Context, string) (account.Account, error) {
	return account.Account{}, r.err
}

func (r failingRepository) FindByID(context.Context, uuid.UUID) (account.Account, error) {
	return account.Account{}, r.err
}

func (r failingRepository) Create(context.Context, account.Account) (account.Account, error) {
	return account.Account{}, r.err
}

func (r failingRepository) Save(context.Context, account.Account) error {
	return r.err
}

func (r failingRepository) Update(context.Context, uuid.UUID, account.UpdateFunc) (account.Account, error) {
	return account.Account{}, r.err
}

func TestRegister(t *testing.T) {
	t.Run("creates an active account with a hashed password", func(t *testing.T) {
		f := newFixture(t)

		acct, err := f.svc.Register(context.Background(), RegisterParams{
			Email:           "  New.User@Example.COM ",
			Password:        testPassword,
			ConfirmPassword: testPassword,
			Profile:         account.Profile{FirstName: "Ada", LastName: "Lovelace", Bio: "mathematician"},
		})
		require.NoError(t, err)

		assert.NotEqual(t, uuid.Nil, acct.ID)
		assert.Equal(t, "new.user@example.com", acct.Email)
		assert.True(t, acct.IsActive)
		assert.Zero(t, acct.FailedAttempts)
		assert.NotEqual(t, testPassword, acct.PasswordHash)
		assert.Equal(t, "Ada", acct.Profile.FirstName)
		assert.True(t, testStart.Equal(acct.CreatedAt))

		stored, err := f.repo.FindByEmail(context.Background(), "new.user@example.com")
		require.NoError(t, err)
		assert.Equal(t, acct.ID, stored.ID)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte(testPassword)))
	})

	t.Run("confirmation mismatch is rejected before hashing", func(t *testing.T) {
		hasher := new(MockHasher)
		f := newFixture(t, WithHasher(hasher))

		_, err := f.svc.Register(context.Background(), RegisterParams{
			Email:           testEmail,
			Password:        testPassword,
			ConfirmPassword: "ValidPass124",
		})
		require.Error(t, err)
		assert.True(t, autherrors.IsCode(err, autherrors.ErrCodePasswordConfirmationMismatch))
		hasher.AssertNotCalled(t, "Hash", mock.Anything)
	})

	t.Run("policy violations are all reported", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.Register(context.Background(), RegisterParams{
			Email:           testEmail,
			Password:        "abc",
			ConfirmPassword: "abc",
		})
		require.Error(t, err)
		assert.True(t, autherrors.IsCode(err, autherrors.ErrCodePasswordComplexity))

		violations := autherrors.Violations(err)
		assert.Contains(t, violations, "Password must be at least 8 characters long")
		assert.Contains(t, violations, "Password must contain at least one uppercase letter")
		assert.Contains(t, violations, "Password must contain at least one number")
	})

	t.Run("duplicate email is case-insensitive", func(t *testing.T) {
		f := newFixture(t)
		f.register(t)

		_, err := f.svc.Register(context.Background(), RegisterParams{
			Email:           "USER@example.com",
			Password:        testPassword,
			ConfirmPassword: testPassword,
		})
		require.Error(t, err)
		assert.True(t, autherrors.IsCode(err, autherrors.ErrCodeUserAlreadyExists))
	})

	t.Run("invalid input", func(t *testing.T) {
		long := make([]byte, 101)
		for i := range long {
			long[i] = 'a'
		}

		tests := []struct {
			name    string
			email   string
			profile account.Profile
			field   string
		}{
			{name: "empty email", email: "  ", field: "email"},
			{name: "not an address", email: "not-an-email", field: "email"},
			{name: "display name form", email: "Bob <bob@example.com>", field: "email"},
			{name: "digits in first name", email: testEmail, profile: account.Profile{FirstName: "R2D2"}, field: "first_name"},
			{name: "long last name", email: testEmail, profile: account.Profile{LastName: string(long)}, field: "last_name"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				f := newFixture(t)
				_, err := f.svc.Register(context.Background(), RegisterParams{
					Email:           tt.email,
					Password:        testPassword,
					ConfirmPassword: testPassword,
					Profile:         tt.profile,
				})
				require.Error(t, err)
				assert.True(t, autherrors.IsCode(err, autherrors.ErrCodeInvalidInput))
				assert.Equal(t, tt.field, autherrors.GetDetails(err)[autherrors.DetailField])
			})
		}
	})

	t.Run("repository failure is internal", func(t *testing.T) {
		f := newFixture(t)
		f.svc.repo = failingRepository{err: errors.New("connection refused")}

		_, err := f.svc.Register(context.Background(), RegisterParams{
			Email:           testEmail,
			Password:        testPassword,
			ConfirmPassword: testPassword,
		})
		require.Error(t, err)
		assert.True(t, autherrors.IsCode(err, autherrors.ErrCodeInternal))
	})
}

func TestLogin(t *testing.T) {
	t.Run("issues a bearer token pair", func(t *testing.T) {
		f := newFixture(t)
		acct := f.register(t)

		pair, err := f.svc.Login(context.Background(), "User@Example.com", testPassword)
		require.NoError(t, err)

		assert.Equal(t, "bearer", pair.TokenType)
		assert.Equal(t, int64(1800), pair.ExpiresIn)

		access, err := f.tokens.Verify(pair.AccessToken, tokengenerator.KindAccess)
		require.NoError(t, err)
		assert.Equal(t, acct.ID.String(), access.Subject)

		refresh, err := f.tokens.Verify(pair.RefreshToken, tokengenerator.KindRefresh)
		require.NoError(t, err)
		assert.Equal(t, acct.ID.String(), refresh.Subject)

		stored, err := f.repo.FindByID(context.Background(), acct.ID)
		require.NoError(t, err)
		require.NotNil(t, stored.LastLoginAt)
		assert.True(t, testStart.Equal(*stored.LastLoginAt))
	})

	t.Run("unknown email and wrong password are indistinguishable", func(t *testing.T) {
		f := newFixture(t)
		f.register(t)

		_, unknownErr := f.svc.Login(context.Background(), "nobody@example.com", testPassword)
		_, wrongErr := f.svc.Login(context.Background(), testEmail, "WrongPass123")

		require.Error(t, unknownErr)
		require.Error(t, wrongErr)
		assert.True(t, autherrors.IsCode(unknownErr, autherrors.ErrCodeInvalidCredentials))
		assert.Equal(t, unknownErr.Error(), wrongErr.Error())
		assert.Equal(t, autherrors.GetDetails(unknownErr), autherrors.GetDetails(wrongErr))
	})

	t.Run("unknown email still verifies a hash", func(t *testing.T) {
		hasher := new(MockHasher)
		hasher.On("Hash", dummyPassword).Return("dummy-hash", nil).Once()
		hasher.On("Verify", "whatever", "dummy-hash").Return(false, nil).Twice()

		f := newFixture(t, WithHasher(hasher))

		for i := 0; i < 2; i++ {
			_, err := f.svc.Login(context.Background(), "nobody@example.com", "whatever")
			assert.True(t, autherrors.IsCode(err, autherrors.ErrCodeInvalidCredentials))
		}
		hasher.AssertExpectations(t)
	})

	t.Run("success resets the failure counter", func(t *testing.T) {
		f := newFixture(t)
		acct := f.register(t)

		for i := 0; i < 3; i++ {
			_, err := f.svc.Login(context.Background(), testEmail, "WrongPass123")
			require.Error(t, err)
		}
		stored, err := f.repo.FindByID(context.Background(), acct.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, stored.FailedAttempts)

		_, err = f.svc.Login(context.Background(), testEmail, testPassword)
		require.NoError(t, err)

		stored, err = f.repo.FindByID(context.Background(), acct.ID)
		require.NoError(t, err)
		assert.Zero(t, stored.FailedAttempts)
		assert.Nil(t, stored.LockedUntil)
	})

	t.Run("disabled account is rejected with the correct password", func(t *testing.T) {
		f := newFixture(t)
		acct := f.register(t)
		f.disable(t, acct.ID)

		_, err := f.svc.Login(context.Background(), testEmail, testPassword)
		require.Error(t, err)
		assert.True(t, autherrors.IsCode(err, autherrors.ErrCodeUserDisabled))
	})

	t.Run("repository failure is internal", func(t *testing.T) {
		f := newFixture(t)
		f.svc.repo = failingRepository{err: errors.New("connection refused")}

		_, err := f.svc.Login(context.Background(), testEmail, testPassword)
		require.Error(t, err)
		assert.True(t, autherrors.IsCode(err, autherrors.ErrCodeInternal))
	})

	t.Run("token issuing failure is internal", func(t *testing.T) {
		f := newFixture(t)
		acct := f.register(t)

		tokens := new(MockTokenManager)
		tokens.On("IssueAccess", acct.ID.String()).Return("", time.Time{}, errors.New("signing key unavailable"))
		f.svc.tokens = tokens

		_, err := f.svc.Login(context.Background(), testEmail, testPassword)
		require.Error(t, err)
		assert.True(t, autherrors.IsCode(err, autherrors.ErrCodeInternal))
		tokens.AssertExpectations(t)
	})
}

func TestLoginLockout(t *testing.T) {
	f := newFixture(t)
	acct := f.register(t)
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		_, err := f.svc.Login(ctx, testEmail, "WrongPass123")
		require.Error(t, err)
		assert.True(t, autherrors.IsCode(err, autherrors.ErrCodeInvalidCredentials), "attempt %d", i)
	}

	_, err := f.svc.Login(ctx, testEmail, "WrongPass123")
	require.Error(t, err)
	assert.True(t, autherrors.IsCode(err, autherrors.ErrCodeUserLocked))

	lockedUntil, ok := autherrors.GetDetails(err)[autherrors.DetailLockedUntil].(time.Time)
	require.True(t, ok)
	assert.True(t, testStart.Add(15*time.Minute).Equal(lockedUntil))

	// Correct password inside the window is still locked and changes nothing.
	before, err := f.repo.FindByID(ctx, acct.ID)
	require.NoError(t, err)

	f.clock.Advance(5 * time.Minute)
	_, err = f.svc.Login(ctx, testEmail, testPassword)
	require.Error(t, err)
	assert.True(t, autherrors.IsCode(err, autherrors.ErrCodeUserLocked))

	after, err := f.repo.FindByID(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, before.FailedAttempts, after.FailedAttempts)
	require.NotNil(t, after.LockedUntil)
	assert.True(t, before.LockedUntil.Equal(*after.LockedUntil))

	// Once the window has passed the correct password works again.
	f.clock.Set(lockedUntil)
	_, err = f.svc.Login(ctx, testEmail, testPassword)
	require.NoError(t, err)

	after, err = f.repo.FindByID(ctx, acct.ID)
	require.NoError(t, err)
	assert.Zero(t, after.FailedAttempts)
	assert.Nil(t, after.LockedUntil)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Lockouts))
	assert.Equal(t, 4.0, testutil.ToFloat64(f.metrics.Operations.WithLabelValues("login", "invalid_credentials")))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.Operations.WithLabelValues("login", "user_locked")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Operations.WithLabelValues("login", "success")))
}

func TestLoginConcurrentFailuresAreNotLost(t *testing.T) {
	f := newFixture(t)
	acct := f.register(t)

	const attempts = 20
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Login(context.Background(), testEmail, "WrongPass123")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	counts := map[autherrors.ErrorCode]int{}
	for err := range errs {
		counts[autherrors.GetCode(err)]++
	}
	assert.Equal(t, 4, counts[autherrors.ErrCodeInvalidCredentials])
	assert.Equal(t, attempts-4, counts[autherrors.ErrCodeUserLocked])

	stored, err := f.repo.FindByID(context.Background(), acct.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, stored.FailedAttempts)
	assert.NotNil(t, stored.LockedUntil)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Lockouts))
}

// rendezvousHasher holds every Verify until n of them are in flight.
type rendezvousHasher struct {
	entered sync.WaitGroup
	all     chan struct{}
}

func newRendezvousHasher(n int) *rendezvousHasher {
	h := &rendezvousHasher{all: make(chan struct{})}
	h.entered.Add(n)
	go func() {
		h.entered.Wait()
		close(h.all)
	}()
	return h
}

func (h *rendezvousHasher) Hash(password string) (string, error) {
	return "plain:" + password, nil
}

func (h *rendezvousHasher) Verify(password, hash string) (bool, error) {
	h.entered.Done()
	select {
	case <-h.all:
		return hash == "plain:"+password, nil
	case <-time.After(5 * time.Second):
		return false, errors.New("verifications did not overlap")
	}
}

func TestLoginDistinctAccountsRunConcurrently(t *testing.T) {
	const accounts = 5
	hasher := newRendezvousHasher(accounts)
	f := newFixture(t, WithHasher(hasher))
	ctx := context.Background()

	emails := make([]string, accounts)
	for i := range emails {
		emails[i] = fmt.Sprintf("user%d@example.com", i)
		_, err := f.svc.Register(ctx, RegisterParams{
			Email:           emails[i],
			Password:        testPassword,
			ConfirmPassword: testPassword,
		})
		require.NoError(t, err)
	}

	errs := make(chan error, accounts)
	for _, email := range emails {
		go func(email string) {
			_, err := f.svc.Login(ctx, email, testPassword)
			errs <- err
		}(email)
	}
	for i := 0; i < accounts; i++ {
		assert.NoError(t, <-errs)
	}
}

func TestLoginRateLimit(t *testing.T) {
	newLimited := func(t *testing.T, policy ratelimit.Policy) *fixture {
		f := newFixture(t)
		rl, err := ratelimit.NewRateLimiter(policy, f.clock)
		require.NoError(t, err)
		f.svc.limiter = rl
		return f
	}

	t.Run("unknown emails are throttled", func(t *testing.T) {
		f := newLimited(t, ratelimit.DefaultPolicy())
		ctx := context.Background()

		for i := 1; i <= 5; i++ {
			_, err := f.svc.Login(ctx, "ghost@example.com", "WrongPass123")
			assert.True(t, autherrors.IsCode(err, autherrors.ErrCodeInvalidCredentials), "attempt %d", i)
		}

		_, err := f.svc.Login(ctx, "GHOST@example.com", "WrongPass123")
		require.Error(t, err)
		assert.True(t, autherrors.IsCode(err, autherrors.ErrCodeTooManyAttempts))
		assert.Equal(t, 3*time.Minute, autherrors.GetDetails(err)[autherrors.DetailRetryAfter])
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Operations.WithLabelValues("login", "too_many_attempts")))

		// other emails keep their own budget
		f.register(t)
		_, err = f.svc.Login(ctx, testEmail, testPassword)
		assert.NoError(t, err)

		f.clock.Advance(3 * time.Minute)
		_, err = f.svc.Login(ctx, "ghost@example.com", "WrongPass123")
		assert.True(t, autherrors.IsCode(err, autherrors.ErrCodeInvalidCredentials))
		_, err = f.svc.Login(ctx, "ghost@example.com", "WrongPass123")
		assert.True(t, autherrors.IsCode(err, autherrors.ErrCodeTooManyAttempts))
	})

	t.Run("throttled attempts do not count as failures", func(t *testing.T) {
		f := newLimited(t, ratelimit.Policy{Attempts: 2, Window: time.Hour})
		acct := f.register(t)
		ctx := context.Background()

		for i := 0; i < 2; i++ {
			_, err := f.svc.Login(ctx, testEmail, "WrongPass123")
			assert.True(t, autherrors.IsCode(err, autherrors.ErrCodeInvalidCredentials))
		}
		_, err := f.svc.Login(ctx, testEmail, "WrongPass123")
		assert.True(t, autherrors.IsCode(err, autherrors.ErrCodeTooManyAttempts))

		stored, err := f.repo.FindByID(ctx, acct.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, stored.FailedAttempts)
	})

	t.Run("success restores the budget", func(t *testing.T) {
		f := newLimited(t, ratelimit.Policy{Attempts: 3, Window: time.Hour})
		f.register(t)
		ctx := context.Background()

		_, err := f.svc.Login(ctx, testEmail, "WrongPass123")
		require.Error(t, err)
		_, err = f.svc.Login(ctx, testEmail, "WrongPass123")
		require.Error(t, err)
		_, err = f.svc.Login(ctx, testEmail, testPassword)
		require.NoError(t, err)

		_, err = f.svc.Login(ctx, testEmail, "WrongPass123")
		assert.True(t, autherrors.IsCode(err, autherrors.ErrCodeInvalidCredentials))
	})
}

func TestRefresh(t *testing.T) {
	t.Run("exchanges a refresh token for a new pair", func(t *testing.T) {
		f := newFixture(t)
		acct := f.register(t)

		pair, err := f.svc.Login(context.Background(), testEmail, testPassword)
		require.NoError(t, err)

		f.clock.Advance(time.Hour)
		next, err := f.svc.Refresh(context.Background(), pair.RefreshToken)
		require.NoError(t, err)

		claims, err := f.tokens.Verify(next.AccessToken, tokengenerator.KindAccess)
		require.NoError(t, err)
		assert.Equal(t, acct.ID.String(), claims.Subject)
		assert.True(t, testStart.Add(time.Hour).Equal(claims.IssuedAt.Time))
	})

	t.Run("failures collapse to TOKEN_INVALID", func(t *testing.T) {
		f := newFixture(t)
		acct := f.register(t)

		pair, err := f.svc.Login(context.Background(), testEmail, testPassword)
		require.NoError(t, err)

		orphan, _, err := f.tokens.IssueRefresh(uuid.NewString())
		require.NoError(t, err)
		notUUID, _, err := f.tokens.IssueRefresh("not-a-uuid")
		require.NoError(t, err)

		tests := []struct {
			name  string
			token string
		}{
			{name: "garbage", token: "not.a.token"},
			{name: "access token", token: pair.AccessToken},
			{name: "unknown subject", token: orphan},
			{name: "subject is not an id", token: notUUID},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := f.svc.Refresh(context.Background(), tt.token)
				require.Error(t, err)
				assert.True(t, autherrors.IsCode(err, autherrors.ErrCodeTokenInvalid))
			})
		}

		t.Run("expired", func(t *testing.T) {
			f.clock.Advance(tokengenerator.DefaultRefreshTokenExpiry + time.Second)
			defer f.clock.Set(testStart)

			_, err := f.svc.Refresh(context.Background(), pair.RefreshToken)
			require.Error(t, err)
			assert.True(t, autherrors.IsCode(err, autherrors.ErrCodeTokenInvalid))
		})

		t.Run("disabled account", func(t *testing.T) {
			f.disable(t, acct.ID)

			_, err := f.svc.Refresh(context.Background(), pair.RefreshToken)
			require.Error(t, err)
			assert.True(t, autherrors.IsCode(err, autherrors.ErrCodeTokenInvalid))
		})
	})

	t.Run("password change revokes earlier tokens", func(t *testing.T) {
		f := newFixture(t)
		acct := f.register(t)

		old, err := f.svc.Login(context.Background(), testEmail, testPassword)
		require.NoError(t, err)

		require.NoError(t, f.svc.ChangePassword(context.Background(), ChangePasswordParams{
			AccountID:          acct.ID,
			CurrentPassword:    testPassword,
			NewPassword:        newPassword,
			ConfirmNewPassword: newPassword,
		}))

		_, err = f.svc.Refresh(context.Background(), old.RefreshToken)
		require.Error(t, err)
		assert.True(t, autherrors.IsCode(err, autherrors.ErrCodeTokenInvalid))

		fresh, err := f.svc.Login(context.Background(), testEmail, newPassword)
		require.NoError(t, err)
		_, err = f.svc.Refresh(context.Background(), fresh.RefreshToken)
		assert.NoError(t, err)
	})

	t.Run("signing key failure is internal", func(t *testing.T) {
		f := newFixture(t)
		f.svc.tokens = tokengenerator.NewTokenManager(tokengenerator.NewStaticSecretStore(""))

		_, err := f.svc.Refresh(context.Background(), "a.b.c")
		require.Error(t, err)
		assert.True(t, autherrors.IsCode(err, autherrors.ErrCodeInternal))
	})
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	acct := f.register(t)

	pair, err := f.svc.Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)

	got, err := f.svc.Authenticate(context.Background(), pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, acct.ID, got.ID)

	_, err = f.svc.Authenticate(context.Background(), pair.RefreshToken)
	assert.True(t, autherrors.IsCode(err, autherrors.ErrCodeTokenTypeMismatch))

	f.clock.Advance(tokengenerator.DefaultAccessTokenExpiry)
	_, err = f.svc.Authenticate(context.Background(), pair.AccessToken)
	assert.True(t, autherrors.IsCode(err, autherrors.ErrCodeTokenExpired))
	f.clock.Set(testStart)

	f.disable(t, acct.ID)
	_, err = f.svc.Authenticate(context.Background(), pair.AccessToken)
	assert.True(t, autherrors.IsCode(err, autherrors.ErrCodeUserDisabled))
}

func TestChangePassword(t *testing.T) {
	tests := []struct {
		name    string
		params  func(id uuid.UUID) ChangePasswordParams
		code    autherrors.ErrorCode
		checkFn func(t *testing.T, err error)
	}{
		{
			name: "wrong current password is checked first",
			params: func(id uuid.UUID) ChangePasswordParams {
				return ChangePasswordParams{AccountID: id, CurrentPassword: "WrongPass123", NewPassword: "weak", ConfirmNewPassword: "other"}
			},
			code: autherrors.ErrCodeCurrentPasswordIncorrect,
		},
		{
			name: "same password",
			params: func(id uuid.UUID) ChangePasswordParams {
				return ChangePasswordParams{AccountID: id, CurrentPassword: testPassword, NewPassword: testPassword, ConfirmNewPassword: testPassword}
			},
			code: autherrors.ErrCodeSamePassword,
		},
		{
			name: "confirmation mismatch",
			params: func(id uuid.UUID) ChangePasswordParams {
				return ChangePasswordParams{AccountID: id, CurrentPassword: testPassword, NewPassword: newPassword, ConfirmNewPassword: "NewValidPass457"}
			},
			code: autherrors.ErrCodePasswordConfirmationMismatch,
		},
		{
			name: "policy violation",
			params: func(id uuid.UUID) ChangePasswordParams {
				return ChangePasswordParams{AccountID: id, CurrentPassword: testPassword, NewPassword: "short", ConfirmNewPassword: "short"}
			},
			code: autherrors.ErrCodePasswordComplexity,
			checkFn: func(t *testing.T, err error) {
				assert.NotEmpty(t, autherrors.Violations(err))
			},
		},
		{
			name: "unknown account",
			params: func(uuid.UUID) ChangePasswordParams {
				return ChangePasswordParams{AccountID: uuid.New(), CurrentPassword: testPassword, NewPassword: newPassword, ConfirmNewPassword: newPassword}
			},
			code: autherrors.ErrCodeUserNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			acct := f.register(t)

			err := f.svc.ChangePassword(context.Background(), tt.params(acct.ID))
			require.Error(t, err)
			assert.True(t, autherrors.IsCode(err, tt.code), "got %v", err)
			if tt.checkFn != nil {
				tt.checkFn(t, err)
			}

			stored, err := f.repo.FindByID(context.Background(), acct.ID)
			require.NoError(t, err)
			assert.Equal(t, acct.PasswordHash, stored.PasswordHash)
			assert.Zero(t, stored.TokenVersion)
			assert.Nil(t, stored.PasswordChangedAt)
		})
	}

	t.Run("success", func(t *testing.T) {
		f := newFixture(t)
		acct := f.register(t)
		f.clock.Advance(time.Hour)

		err := f.svc.ChangePassword(context.Background(), ChangePasswordParams{
			AccountID:          acct.ID,
			CurrentPassword:    testPassword,
			NewPassword:        newPassword,
			ConfirmNewPassword: newPassword,
		})
		require.NoError(t, err)

		stored, err := f.repo.FindByID(context.Background(), acct.ID)
		require.NoError(t, err)
		assert.NotEqual(t, acct.PasswordHash, stored.PasswordHash)
		assert.Equal(t, 1, stored.TokenVersion)
		require.NotNil(t, stored.PasswordChangedAt)
		assert.True(t, testStart.Add(time.Hour).Equal(*stored.PasswordChangedAt))

		_, err = f.svc.Login(context.Background(), testEmail, testPassword)
		assert.True(t, autherrors.IsCode(err, autherrors.ErrCodeInvalidCredentials))

		_, err = f.svc.Login(context.Background(), testEmail, newPassword)
		assert.NoError(t, err)
	})
}

func TestProfile(t *testing.T) {
	f := newFixture(t)
	acct := f.register(t)
	ctx := context.Background()

	first, bio := "Grace", "  rear admiral  "
	updated, err := f.svc.UpdateProfile(ctx, acct.ID, ProfileUpdate{FirstName: &first, Bio: &bio})
	require.NoError(t, err)
	assert.Equal(t, "Grace", updated.Profile.FirstName)
	assert.Equal(t, "rear admiral", updated.Profile.Bio)
	assert.Empty(t, updated.Profile.LastName)

	got, err := f.svc.GetAccount(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, updated.Profile, got.Profile)

	bad := "Gr4ce"
	_, err = f.svc.UpdateProfile(ctx, acct.ID, ProfileUpdate{FirstName: &bad})
	assert.True(t, autherrors.IsCode(err, autherrors.ErrCodeInvalidInput))

	_, err = f.svc.UpdateProfile(ctx, uuid.New(), ProfileUpdate{FirstName: &first})
	assert.True(t, autherrors.IsCode(err, autherrors.ErrCodeUserNotFound))

	_, err = f.svc.GetAccount(ctx, uuid.New())
	assert.True(t, autherrors.IsCode(err, autherrors.ErrCodeUserNotFound))
}
