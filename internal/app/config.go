package app

import (
	"os"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/merchant-billing/internal/domain/payment"
)

// GatewayModeTest is the only mode the bundled bogus gateway runs in.
const GatewayModeTest = "test"

// Config holds the complete application configuration, loadable from
// environment variables (BILLING_ prefix), flags, or YAML config files.
type Config struct {
	DatabaseURL      string `usage:"PostgreSQL connection URL (BILLING_DATABASE_URL or DATABASE_URL); empty keeps orders in memory" flag:"database-url"`
	DatabaseMaxConns int32  `default:"10" usage:"Maximum PostgreSQL connections" flag:"database-max-conns"`
	DefaultCurrency  string `default:"USD" usage:"Currency of line items without a price" flag:"default-currency"`
	TaxRate          string `default:"0" usage:"Flat tax rate in percent applied to taxable sellables" flag:"tax-rate"`
	Gateway          GatewayConfig
}

// GatewayConfig selects the payment gateway and the instrument types it
// serves.
type GatewayConfig struct {
	Mode        string   `default:"test" usage:"Gateway mode"`
	Instruments []string `default:"credit_card,account" usage:"Instrument types routed to the gateway"`
}

// LoadConfig loads configuration from environment variables and YAML config
// files.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "BILLING",
		Files:     []string{"config.yaml", "/etc/billing/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps the standard DATABASE_URL variable to the
// BILLING_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
}

// Validate checks values the loader cannot.
func (c *Config) Validate() error {
	if _, err := c.Rate(); err != nil {
		return err
	}
	if c.DatabaseMaxConns < 0 {
		return errors.Errorf("negative database max conns %d", c.DatabaseMaxConns)
	}
	if c.Gateway.Mode != GatewayModeTest {
		return errors.Errorf("unsupported gateway mode %q", c.Gateway.Mode)
	}
	if len(c.Gateway.Instruments) == 0 {
		return errors.New("at least one gateway instrument type is required")
	}
	for _, typ := range c.Gateway.Instruments {
		if typ != payment.TypeCreditCard && typ != payment.TypeAccount {
			return errors.Errorf("unknown instrument type %q", typ)
		}
	}
	return nil
}

// Rate parses TaxRate.
func (c *Config) Rate() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(c.TaxRate)
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "parse tax rate %q", c.TaxRate)
	}
	if rate.IsNegative() {
		return decimal.Decimal{}, errors.Errorf("negative tax rate %s", rate)
	}
	return rate, nil
}
