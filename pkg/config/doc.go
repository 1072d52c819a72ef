// Package config loads authcore settings with cleanenv.
//
// Every setting has an environment variable and a default. A YAML, JSON or
// TOML file can be passed to Load; environment variables win over the file.
//
// # Environment Variables
//
//	JWT_SECRET                  signing secret, required (at least 16 bytes)
//	JWT_ISSUER                  token issuer (default "authcore")
//	ACCESS_TOKEN_EXPIRY         ISO 8601 or Go duration (default "PT30M")
//	REFRESH_TOKEN_EXPIRY        ISO 8601 or Go duration (default "P7D")
//	LOGIN_MAX_FAILED_ATTEMPTS   failures before lockout, 0 disables (default 5)
//	LOGIN_LOCKOUT_DURATION      lock length (default "PT15M")
//	LOGIN_PASSWORD_HASH         "bcrypt" or "argon2id" (default "bcrypt")
//	LOGIN_BCRYPT_COST           bcrypt cost (default 10)
//	LOGIN_RATE_LIMIT_ATTEMPTS   logins per email per window, 0 disables (default 5)
//	LOGIN_RATE_LIMIT_WINDOW     rate limit window (default "PT15M")
//	PASSWORD_MIN_LENGTH         (default 8)
//	PASSWORD_MAX_LENGTH         (default 128)
//	PASSWORD_REQUIRE_UPPERCASE  (default true)
//	PASSWORD_REQUIRE_LOWERCASE  (default true)
//	PASSWORD_REQUIRE_DIGIT      (default true)
//	PASSWORD_REQUIRE_SPECIAL    (default false)
//	PASSWORD_MIN_GUESS_SCORE    zxcvbn score 0-4, 0 disables (default 0)
//	PERSISTENCE_TYPE            "memory", "file" or "postgres" (default "file")
//	PERSISTENCE_DATA_DIR        directory for the file backend (default "./data")
//	AUTHCORE_PG_HOST, AUTHCORE_PG_PORT, AUTHCORE_PG_DATABASE,
//	AUTHCORE_PG_USER, AUTHCORE_PG_PASSWORD
//	METRICS_TEXTFILE            write Prometheus counters here after each command
//	LOG_LEVEL                   "debug", "info", "warn" or "error" (default "info")
//
// # Usage
//
//	cfg, err := config.Load("")
//	if err != nil {
//		// err is a ValidationErrors listing every invalid field
//		return err
//	}
//
//	policy, err := cfg.PasswordPolicy.ToPasswordPolicy()
//	lockoutPolicy, err := cfg.Login.ToLockoutPolicy()
//	accessTTL, err := cfg.JWT.ParseAccessTokenExpiry()
//
// Durations accept ISO 8601 ("PT15M", "P7D") first and fall back to Go
// syntax ("15m", "168h").
package config
