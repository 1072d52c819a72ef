package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	dbutils "github.com/tendant/db-utils/db"

	"github.com/alimurtadho/authcore/pkg/account"
	"github.com/alimurtadho/authcore/pkg/auth"
	"github.com/alimurtadho/authcore/pkg/config"
	"github.com/alimurtadho/authcore/pkg/lockout"
	"github.com/alimurtadho/authcore/pkg/passwordpolicy"
	"github.com/alimurtadho/authcore/pkg/ratelimit"
	"github.com/alimurtadho/authcore/pkg/tokengenerator"
)

const usage = `Usage: authcore [-config file] <command> [flags]

Commands:
  register         create an account
  login            exchange credentials for a token pair
  refresh          exchange a refresh token for a new pair
  change-password  change the password of the token's account
  whoami           show the account behind an access token
  evaluate         score a password against the configured policy
  peek             decode a token without verifying it
  env              list the environment variables read
`

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// app holds the services built from configuration.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	engine   *passwordpolicy.Engine
	tokens   *tokengenerator.TokenManager
	svc      *auth.Service
	registry *prometheus.Registry
	close    func()
}

func newApp(ctx context.Context, cfg config.Config, stderr io.Writer) (*app, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	policy, err := cfg.PasswordPolicy.ToPasswordPolicy()
	if err != nil {
		return nil, fmt.Errorf("password policy: %w", err)
	}
	engine, err := passwordpolicy.NewEngine(policy)
	if err != nil {
		return nil, fmt.Errorf("password policy: %w", err)
	}

	lockoutPolicy, err := cfg.Login.ToLockoutPolicy()
	if err != nil {
		return nil, fmt.Errorf("lockout policy: %w", err)
	}
	guard, err := lockout.NewGuard(lockoutPolicy)
	if err != nil {
		return nil, fmt.Errorf("lockout policy: %w", err)
	}

	ratePolicy, err := cfg.Login.ToRateLimitPolicy()
	if err != nil {
		return nil, fmt.Errorf("rate limit policy: %w", err)
	}
	limiter, err := ratelimit.NewRateLimiter(ratePolicy, nil)
	if err != nil {
		return nil, fmt.Errorf("rate limit policy: %w", err)
	}

	accessExpiry, err := cfg.JWT.ParseAccessTokenExpiry()
	if err != nil {
		return nil, fmt.Errorf("access token expiry: %w", err)
	}
	refreshExpiry, err := cfg.JWT.ParseRefreshTokenExpiry()
	if err != nil {
		return nil, fmt.Errorf("refresh token expiry: %w", err)
	}
	tokens := tokengenerator.NewTokenManager(
		tokengenerator.NewStaticSecretStore(cfg.JWT.Secret),
		tokengenerator.WithIssuer(cfg.JWT.Issuer),
		tokengenerator.WithAccessTokenExpiry(accessExpiry),
		tokengenerator.WithRefreshTokenExpiry(refreshExpiry),
		tokengenerator.WithLogger(logger),
	)

	hasher, err := auth.NewHasher(cfg.Login.PasswordHash, cfg.Login.BcryptCost)
	if err != nil {
		return nil, err
	}

	closeFn := func() {}
	var db account.DBTX
	if cfg.Persistence.Type == account.PersistencePostgres {
		dbConfig := cfg.Database.ToDbConfig()
		pool, err := dbutils.NewDbPool(ctx, dbConfig)
		if err != nil {
			logger.Error("Failed creating dbpool", "db", dbConfig.Database, "host", dbConfig.Host, "port", dbConfig.Port, "user", dbConfig.User)
			return nil, err
		}
		db = pool
		closeFn = pool.Close
	}

	repo, err := account.NewRepository(cfg.Persistence.Type, cfg.Persistence.DataDir, db)
	if err != nil {
		closeFn()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	metrics, err := auth.NewMetrics(auth.MetricsOptions{Registerer: registry})
	if err != nil {
		closeFn()
		return nil, err
	}

	svc := auth.NewService(repo, tokens, guard, engine,
		auth.WithHasher(hasher),
		auth.WithRateLimiter(limiter),
		auth.WithMetrics(metrics),
		auth.WithLogger(logger),
	)

	return &app{
		cfg:      cfg,
		logger:   logger,
		engine:   engine,
		tokens:   tokens,
		svc:      svc,
		registry: registry,
		close:    closeFn,
	}, nil
}

// flushMetrics writes the counters in the node exporter textfile format.
func (a *app) flushMetrics() {
	path := a.cfg.Metrics.TextfilePath
	if path == "" {
		return
	}
	if err := prometheus.WriteToTextfile(path, a.registry); err != nil {
		a.logger.Error("Failed to write metrics textfile", "path", path, "err", err)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var configPath string
	if len(args) >= 2 && args[0] == "-config" {
		configPath, args = args[1], args[2:]
	}

	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	name, rest := args[0], args[1:]

	if name == "env" {
		text, err := config.Usage()
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Fprintln(stdout, text)
		return 0
	}

	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "Error: unknown command %q\n\n%s", name, usage)
		return 2
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	a, err := newApp(ctx, cfg, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer a.close()
	defer a.flushMetrics()

	return cmd(ctx, a, rest, stdout, stderr)
}
