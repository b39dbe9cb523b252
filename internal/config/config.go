package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the viper-backed configuration surface for the economy
// service. Values resolve from an optional economy.yaml, ECONOMY_*
// environment variables, and defaults, in that order of precedence.
type Config struct {
	v *viper.Viper
}

// Load reads configuration from ./economy.yaml or ./configs/economy.yaml
// if present, then from the environment. A missing config file is not an
// error; everything has a default.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("closed_economy.enabled", false)
	v.SetDefault("currency.unit", "credits")
	v.SetDefault("log.level", "info")
	v.SetDefault("database.dsn", "file:economy.db")
	v.SetDefault("server.metrics_addr", ":9102")

	v.SetEnvPrefix("ECONOMY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("economy")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return &Config{v: v}, nil
}

// ClosedEconomyEnabled reports whether closed economy mode is on. The
// value is read from viper on every call, never cached, so the flag can
// be flipped on a live process.
func (c *Config) ClosedEconomyEnabled() bool {
	return c.v.GetBool("closed_economy.enabled")
}

// SetClosedEconomy toggles closed economy mode at runtime.
func (c *Config) SetClosedEconomy(enabled bool) {
	c.v.Set("closed_economy.enabled", enabled)
}

// LogLevel returns the configured log level.
func (c *Config) LogLevel() string {
	return c.v.GetString("log.level")
}

// DatabaseDSN returns the balance-storage DSN. A postgres:// DSN selects
// the postgres driver; anything else is treated as a sqlite path.
func (c *Config) DatabaseDSN() string {
	return c.v.GetString("database.dsn")
}

// CurrencyUnit returns the unit suffix used when formatting balances.
func (c *Config) CurrencyUnit() string {
	return c.v.GetString("currency.unit")
}

// MetricsAddr returns the listen address for the metrics endpoint.
func (c *Config) MetricsAddr() string {
	return c.v.GetString("server.metrics_addr")
}
