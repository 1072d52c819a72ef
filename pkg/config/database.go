package config

import (
	dbutils "github.com/tendant/db-utils/db"
)

// DatabaseConfig holds PostgreSQL database configuration
type DatabaseConfig struct {
	Host     string `yaml:"host" env:"AUTHCORE_PG_HOST" env-default:"localhost"`
	Port     uint16 `yaml:"port" env:"AUTHCORE_PG_PORT" env-default:"5432"`
	Database string `yaml:"database" env:"AUTHCORE_PG_DATABASE" env-default:"authcore"`
	User     string `yaml:"user" env:"AUTHCORE_PG_USER" env-default:"authcore"`
	Password string `yaml:"password" env:"AUTHCORE_PG_PASSWORD" env-default:"pwd"`
}

// ToDbConfig converts the config to a db-utils DbConfig
func (d DatabaseConfig) ToDbConfig() dbutils.DbConfig {
	return dbutils.DbConfig{
		Host:     d.Host,
		Port:     d.Port,
		Database: d.Database,
		User:     d.User,
		Password: d.Password,
	}
}

func (d DatabaseConfig) validate() ValidationErrors {
	return CollectErrors(
		RequireNonEmpty("AUTHCORE_PG_HOST", d.Host),
		RequireValidPort("AUTHCORE_PG_PORT", d.Port),
		RequireNonEmpty("AUTHCORE_PG_DATABASE", d.Database),
		RequireNonEmpty("AUTHCORE_PG_USER", d.User),
	)
}
