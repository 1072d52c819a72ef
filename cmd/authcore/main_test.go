package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alimurtadho/authcore/pkg/auth"
	"github.com/alimurtadho/authcore/pkg/passwordpolicy"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("JWT_SECRET", "cli-test-secret-0123456789")
	t.Setenv("PERSISTENCE_TYPE", "file")
	t.Setenv("PERSISTENCE_DATA_DIR", dir)
	t.Setenv("LOGIN_BCRYPT_COST", "4")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("METRICS_TEXTFILE", filepath.Join(dir, "authcore.prom"))
	return dir
}

func runCmd(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestCLIAccountLifecycle(t *testing.T) {
	dir := setupEnv(t)

	code, out, errOut := runCmd(t, "register", "-email", "Cli@Example.com", "-password", "ValidPass123", "-first-name", "Ada")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, `"email": "cli@example.com"`)
	assert.NotContains(t, out, "password_hash")

	code, out, errOut = runCmd(t, "login", "-email", "cli@example.com", "-password", "ValidPass123")
	require.Equal(t, 0, code, errOut)

	var pair auth.TokenPair
	require.NoError(t, json.Unmarshal([]byte(out), &pair))
	assert.Equal(t, "bearer", pair.TokenType)
	assert.Equal(t, int64(1800), pair.ExpiresIn)

	code, out, errOut = runCmd(t, "whoami", "-token", pair.AccessToken)
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, `"first_name": "Ada"`)

	code, out, errOut = runCmd(t, "peek", "-token", pair.RefreshToken)
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, `"kind": "refresh"`)

	code, _, errOut = runCmd(t, "change-password", "-token", pair.AccessToken, "-current", "ValidPass123", "-new", "ValidPass123")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "SAME_PASSWORD")

	code, _, errOut = runCmd(t, "change-password", "-token", pair.AccessToken, "-current", "ValidPass123", "-new", "NewValidPass456")
	require.Equal(t, 0, code, errOut)

	code, _, errOut = runCmd(t, "refresh", "-token", pair.RefreshToken)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "TOKEN_INVALID")

	metrics, err := os.ReadFile(filepath.Join(dir, "authcore.prom"))
	require.NoError(t, err)
	assert.Contains(t, string(metrics), `authcore_auth_operations_total{operation="refresh",outcome="token_invalid"} 1`)
}

func TestCLIRegisterReportsViolations(t *testing.T) {
	setupEnv(t)

	code, _, errOut := runCmd(t, "register", "-email", "weak@example.com", "-password", "abc")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "PASSWORD_COMPLEXITY")
	assert.Contains(t, errOut, "Password must be at least 8 characters long")
}

func TestCLIEvaluate(t *testing.T) {
	setupEnv(t)

	code, out, errOut := runCmd(t, "evaluate", "-password", "ValidPass123")
	require.Equal(t, 0, code, errOut)

	var assessment passwordpolicy.Assessment
	require.NoError(t, json.Unmarshal([]byte(out), &assessment))
	assert.True(t, assessment.IsValid)
	assert.Equal(t, passwordpolicy.Medium, assessment.StrengthLevel)
}

func TestCLIUsage(t *testing.T) {
	setupEnv(t)

	code, _, errOut := runCmd(t)
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "Usage: authcore")

	code, _, errOut = runCmd(t, "launch")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, `unknown command "launch"`)

	code, out, _ := runCmd(t, "env")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "JWT_SECRET")

	t.Setenv("JWT_SECRET", "")
	code, _, errOut = runCmd(t, "login", "-email", "a@example.com", "-password", "x")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "JWT_SECRET")
}

func TestCLIReportsFirstMissingFlag(t *testing.T) {
	setupEnv(t)

	for i := 0; i < 5; i++ {
		code, _, errOut := runCmd(t, "change-password", "-new", "NewValidPass456")
		assert.Equal(t, 2, code)
		assert.Contains(t, errOut, "Error: -token is required")
		assert.NotContains(t, errOut, "Error: -current is required")
	}
}
