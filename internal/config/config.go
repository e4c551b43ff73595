package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/ledgerpay/invoicer/internal/account"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Invoice  InvoiceConfig  `mapstructure:"invoice"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// LedgerConfig holds ledger connection configuration. The service principal
// owns every derived subaccount on the ledger side.
type LedgerConfig struct {
	Mode             string `mapstructure:"mode"`
	ServicePrincipal string `mapstructure:"service_principal"`
	ICPFee           uint64 `mapstructure:"icp_fee"`
}

// InvoiceConfig holds invoice lifecycle configuration
type InvoiceConfig struct {
	Expiration time.Duration `mapstructure:"expiration"`
	Admins     []string      `mapstructure:"admins"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	viper.SetDefault("database.path", "data/invoicer.db")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	viper.SetDefault("ledger.mode", "sim")
	viper.SetDefault("ledger.icp_fee", 10_000)

	viper.SetDefault("invoice.expiration", 7*24*time.Hour)

	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars() {
	viper.BindEnv("ledger.service_principal", "LEDGER_SERVICE_PRINCIPAL")
	viper.BindEnv("database.path", "DATABASE_PATH")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Ledger.Mode != "sim" {
		return fmt.Errorf("ledger.mode %q is not supported (only \"sim\")", c.Ledger.Mode)
	}
	if c.Ledger.ServicePrincipal == "" {
		return fmt.Errorf("ledger.service_principal is required")
	}
	if _, err := account.PrincipalFromText(c.Ledger.ServicePrincipal); err != nil {
		return fmt.Errorf("ledger.service_principal: %w", err)
	}
	if len(c.Invoice.Admins) == 0 {
		return fmt.Errorf("invoice.admins requires at least one admin principal")
	}
	for _, admin := range c.Invoice.Admins {
		if _, err := account.PrincipalFromText(admin); err != nil {
			return fmt.Errorf("invoice.admins entry %q: %w", admin, err)
		}
	}
	if c.Invoice.Expiration <= 0 {
		return fmt.Errorf("invoice.expiration must be positive")
	}
	return nil
}

// ServicePrincipal returns the parsed service principal. Call after Validate.
func (c *Config) ServicePrincipal() account.Principal {
	return account.MustPrincipal(c.Ledger.ServicePrincipal)
}

// AdminPrincipals returns the parsed admin principals. Call after Validate.
func (c *Config) AdminPrincipals() []account.Principal {
	admins := make([]account.Principal, len(c.Invoice.Admins))
	for i, text := range c.Invoice.Admins {
		admins[i] = account.MustPrincipal(text)
	}
	return admins
}
