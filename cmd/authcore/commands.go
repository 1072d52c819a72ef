package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/alimurtadho/authcore/pkg/account"
	"github.com/alimurtadho/authcore/pkg/auth"
	autherrors "github.com/alimurtadho/authcore/pkg/errors"
	"github.com/alimurtadho/authcore/pkg/tokengenerator"
)

type command func(ctx context.Context, a *app, args []string, stdout, stderr io.Writer) int

var commands = map[string]command{
	"register":        registerCmd,
	"login":           loginCmd,
	"refresh":         refreshCmd,
	"change-password": changePasswordCmd,
	"whoami":          whoamiCmd,
	"evaluate":        evaluateCmd,
	"peek":            peekCmd,
}

// accountView is an account without its password hash.
type accountView struct {
	ID                string          `json:"id"`
	Email             string          `json:"email"`
	IsActive          bool            `json:"is_active"`
	FailedAttempts    int             `json:"failed_attempts"`
	LockedUntil       *time.Time      `json:"locked_until,omitempty"`
	LastLoginAt       *time.Time      `json:"last_login_at,omitempty"`
	PasswordChangedAt *time.Time      `json:"password_changed_at,omitempty"`
	Profile           account.Profile `json:"profile"`
	CreatedAt         time.Time       `json:"created_at"`
}

func newAccountView(acct account.Account) accountView {
	return accountView{
		ID:                acct.ID.String(),
		Email:             acct.Email,
		IsActive:          acct.IsActive,
		FailedAttempts:    acct.FailedAttempts,
		LockedUntil:       acct.LockedUntil,
		LastLoginAt:       acct.LastLoginAt,
		PasswordChangedAt: acct.PasswordChangedAt,
		Profile:           acct.Profile,
		CreatedAt:         acct.CreatedAt,
	}
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func printJSON(w io.Writer, v interface{}) int {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 1
	}
	return 0
}

// fail prints err with its code and any violations.
func fail(stderr io.Writer, err error) int {
	fmt.Fprintf(stderr, "Error: %s (%s)\n", messageOf(err), autherrors.GetCode(err))
	for _, v := range autherrors.Violations(err) {
		fmt.Fprintf(stderr, "  - %s\n", v)
	}
	return 1
}

func messageOf(err error) string {
	var e *autherrors.Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

type requiredFlag struct {
	name, value string
}

// requireFlags reports the first empty flag in the order given.
func requireFlags(fs *flag.FlagSet, stderr io.Writer, flags ...requiredFlag) bool {
	for _, f := range flags {
		if f.value == "" {
			fmt.Fprintf(stderr, "Error: -%s is required\n", f.name)
			fs.Usage()
			return false
		}
	}
	return true
}

func registerCmd(ctx context.Context, a *app, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("register", stderr)
	email := fs.String("email", "", "Email for the new account (required)")
	password := fs.String("password", "", "Password for the new account (required)")
	confirm := fs.String("confirm", "", "Password confirmation, defaults to -password")
	firstName := fs.String("first-name", "", "First name")
	lastName := fs.String("last-name", "", "Last name")
	bio := fs.String("bio", "", "Short biography")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if !requireFlags(fs, stderr, requiredFlag{"email", *email}, requiredFlag{"password", *password}) {
		return 2
	}
	if *confirm == "" {
		*confirm = *password
	}

	acct, err := a.svc.Register(ctx, auth.RegisterParams{
		Email:           *email,
		Password:        *password,
		ConfirmPassword: *confirm,
		Profile:         account.Profile{FirstName: *firstName, LastName: *lastName, Bio: *bio},
	})
	if err != nil {
		return fail(stderr, err)
	}
	return printJSON(stdout, newAccountView(acct))
}

func loginCmd(ctx context.Context, a *app, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("login", stderr)
	email := fs.String("email", "", "Account email (required)")
	password := fs.String("password", "", "Account password (required)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if !requireFlags(fs, stderr, requiredFlag{"email", *email}, requiredFlag{"password", *password}) {
		return 2
	}

	pair, err := a.svc.Login(ctx, *email, *password)
	if err != nil {
		return fail(stderr, err)
	}
	return printJSON(stdout, pair)
}

func refreshCmd(ctx context.Context, a *app, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("refresh", stderr)
	token := fs.String("token", "", "Refresh token (required)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if !requireFlags(fs, stderr, requiredFlag{"token", *token}) {
		return 2
	}

	pair, err := a.svc.Refresh(ctx, *token)
	if err != nil {
		return fail(stderr, err)
	}
	return printJSON(stdout, pair)
}

func changePasswordCmd(ctx context.Context, a *app, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("change-password", stderr)
	token := fs.String("token", "", "Access token of the account (required)")
	current := fs.String("current", "", "Current password (required)")
	next := fs.String("new", "", "New password (required)")
	confirm := fs.String("confirm", "", "New password confirmation, defaults to -new")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if !requireFlags(fs, stderr, requiredFlag{"token", *token}, requiredFlag{"current", *current}, requiredFlag{"new", *next}) {
		return 2
	}
	if *confirm == "" {
		*confirm = *next
	}

	acct, err := a.svc.Authenticate(ctx, *token)
	if err != nil {
		return fail(stderr, err)
	}

	err = a.svc.ChangePassword(ctx, auth.ChangePasswordParams{
		AccountID:          acct.ID,
		CurrentPassword:    *current,
		NewPassword:        *next,
		ConfirmNewPassword: *confirm,
	})
	if err != nil {
		return fail(stderr, err)
	}
	fmt.Fprintln(stdout, "Password changed. Existing tokens are no longer valid.")
	return 0
}

func whoamiCmd(ctx context.Context, a *app, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("whoami", stderr)
	token := fs.String("token", "", "Access token (required)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if !requireFlags(fs, stderr, requiredFlag{"token", *token}) {
		return 2
	}

	acct, err := a.svc.Authenticate(ctx, *token)
	if err != nil {
		return fail(stderr, err)
	}
	return printJSON(stdout, newAccountView(acct))
}

func evaluateCmd(_ context.Context, a *app, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("evaluate", stderr)
	password := fs.String("password", "", "Password to evaluate")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	return printJSON(stdout, a.engine.Evaluate(*password))
}

func peekCmd(_ context.Context, a *app, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("peek", stderr)
	token := fs.String("token", "", "Token to decode (required)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if !requireFlags(fs, stderr, requiredFlag{"token", *token}) {
		return 2
	}

	claims, ok := tokengenerator.Peek(*token)
	if !ok {
		fmt.Fprintln(stderr, "Error: token cannot be decoded")
		return 1
	}

	out := struct {
		Claims  *tokengenerator.Claims `json:"claims"`
		Expired bool                   `json:"expired"`
	}{
		Claims:  claims,
		Expired: a.tokens.IsExpired(*token),
	}
	return printJSON(stdout, out)
}
