// Package auth coordinates registration, login, token refresh and password
// changes on top of the account, lockout, passwordpolicy and tokengenerator
// packages.
//
// # Overview
//
// The auth package provides:
//   - Registration with password policy and profile validation
//   - Login with account lockout and enumeration-safe errors
//   - Refresh token exchange
//   - Password changes that revoke previously issued tokens
//   - Pluggable password hashing (bcrypt, argon2id)
//   - Prometheus counters per operation and outcome
//
// # Basic Usage
//
//	import (
//		"github.com/alimurtadho/authcore/pkg/account"
//		"github.com/alimurtadho/authcore/pkg/auth"
//		"github.com/alimurtadho/authcore/pkg/lockout"
//		"github.com/alimurtadho/authcore/pkg/passwordpolicy"
//		"github.com/alimurtadho/authcore/pkg/tokengenerator"
//	)
//
//	repo := account.NewInMemoryRepository()
//	tokens := tokengenerator.NewTokenManager(tokengenerator.NewStaticSecretStore(secret))
//	guard, _ := lockout.NewGuard(lockout.DefaultPolicy())
//	engine, _ := passwordpolicy.NewEngine(passwordpolicy.DefaultPolicy())
//
//	svc := auth.NewService(repo, tokens, guard, engine,
//		auth.WithHasher(auth.NewBcryptHasher(12)),
//		auth.WithLogger(logger),
//	)
//
// # Registration
//
//	acct, err := svc.Register(ctx, auth.RegisterParams{
//		Email:           "user@example.com",
//		Password:        "ValidPass123",
//		ConfirmPassword: "ValidPass123",
//	})
//	if errors.IsCode(err, errors.ErrCodePasswordComplexity) {
//		for _, v := range errors.Violations(err) {
//			fmt.Println(v)
//		}
//	}
//
// # Login and Refresh
//
// Unknown emails and wrong passwords both return INVALID_CREDENTIALS. After
// the configured number of consecutive failures the account is locked and
// Login returns USER_LOCKED with a "locked_until" detail.
//
//	pair, err := svc.Login(ctx, "user@example.com", "ValidPass123")
//	if err != nil {
//		return err
//	}
//
//	// Later
//	pair, err = svc.Refresh(ctx, pair.RefreshToken)
//
// # Password Changes
//
// ChangePassword checks the current password, rejects reuse of the same
// password, checks the confirmation and then the policy. A successful change
// bumps the account's token version, so tokens issued earlier fail Refresh
// and Authenticate with TOKEN_INVALID.
//
//	err := svc.ChangePassword(ctx, auth.ChangePasswordParams{
//		AccountID:          acct.ID,
//		CurrentPassword:    "ValidPass123",
//		NewPassword:        "NewValidPass456",
//		ConfirmNewPassword: "NewValidPass456",
//	})
package auth
