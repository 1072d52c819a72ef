package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

// PersistenceConfig selects the account repository backend.
type PersistenceConfig struct {
	Type    string `yaml:"type" env:"PERSISTENCE_TYPE" env-default:"file"`
	DataDir string `yaml:"data_dir" env:"PERSISTENCE_DATA_DIR" env-default:"./data"`
}

func (p PersistenceConfig) validate() ValidationErrors {
	errs := CollectErrors(
		RequireOneOf("PERSISTENCE_TYPE", p.Type, []string{"memory", "file", "postgres"}),
	)
	if p.Type == "file" {
		errs = append(errs, CollectErrors(RequireNonEmpty("PERSISTENCE_DATA_DIR", p.DataDir))...)
	}
	return errs
}

// MetricsConfig controls where counters are written after each command.
// An empty TextfilePath disables the export.
type MetricsConfig struct {
	TextfilePath string `yaml:"textfile_path" env:"METRICS_TEXTFILE"`
}

// Config is the complete authcore configuration.
type Config struct {
	JWT            JWTConfig            `yaml:"jwt"`
	Login          LoginConfig          `yaml:"login"`
	PasswordPolicy PasswordPolicyConfig `yaml:"password_policy"`
	Database       DatabaseConfig       `yaml:"database"`
	Persistence    PersistenceConfig    `yaml:"persistence"`
	Metrics        MetricsConfig        `yaml:"metrics"`
	LogLevel       string               `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
}

// Load reads configuration from path, when given, and then from the
// environment. Environment variables override file values.
func Load(path string) (Config, error) {
	var cfg Config

	var err error
	if path != "" {
		err = cleanenv.ReadConfig(path, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every section and reports all problems at once.
func (c Config) Validate() error {
	validators := []Validator{
		c.JWT.validate,
		c.Login.validate,
		c.PasswordPolicy.validate,
		c.Persistence.validate,
		func() ValidationErrors {
			if _, err := c.SlogLevel(); err != nil {
				return ValidationErrors{{Field: "LOG_LEVEL", Message: err.Error()}}
			}
			return nil
		},
	}
	if c.Persistence.Type == "postgres" {
		validators = append(validators, c.Database.validate)
	}
	return Validate(validators...)
}

// SlogLevel parses LogLevel ("debug", "info", "warn", "error").
func (c Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	return level, nil
}

// Usage describes every environment variable Config reads.
func Usage() (string, error) {
	var cfg Config
	return cleanenv.GetDescription(&cfg, nil)
}
