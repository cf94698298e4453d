// Package config loads the relay and ledger configuration from HCL.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// Config is the complete relay configuration.
type Config struct {
	Relay  RelaySettings  `hcl:"relay,block"`
	Ledger LedgerSettings `hcl:"ledger,block"`
	Store  StoreSettings  `hcl:"store,block"`
}

// RelaySettings contains the websocket listener configuration.
type RelaySettings struct {
	Address  string `hcl:"address,optional"`
	Port     int    `hcl:"port,optional"`
	LogLevel string `hcl:"log_level,optional"`
	LogFile  string `hcl:"log_file,optional"`
}

// LedgerSettings contains the settlement timing parameters. Windows are
// expressed as Go duration strings ("10m", "1h30m").
type LedgerSettings struct {
	DisputeWindow string `hcl:"dispute_window,optional"`
	RevealWindow  string `hcl:"reveal_window,optional"`
}

// StoreSettings selects the channel store backend.
type StoreSettings struct {
	Backend string `hcl:"backend,optional"` // "memory" or "postgres"
	DSN     string `hcl:"dsn,optional"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Relay: RelaySettings{
			Address:  "localhost",
			Port:     8080,
			LogLevel: "info",
		},
		Ledger: LedgerSettings{
			DisputeWindow: "10m",
			RevealWindow:  "5m",
		},
		Store: StoreSettings{
			Backend: "memory",
		},
	}
}

// Load reads configuration from an HCL file, falling back to defaults
// when the file does not exist.
func Load(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return Default(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var cfg Config
	diags = gohcl.DecodeBody(file.Body, nil, &cfg)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	// Apply defaults for missing values
	def := Default()
	if cfg.Relay.Address == "" {
		cfg.Relay.Address = def.Relay.Address
	}
	if cfg.Relay.Port == 0 {
		cfg.Relay.Port = def.Relay.Port
	}
	if cfg.Relay.LogLevel == "" {
		cfg.Relay.LogLevel = def.Relay.LogLevel
	}
	if cfg.Ledger.DisputeWindow == "" {
		cfg.Ledger.DisputeWindow = def.Ledger.DisputeWindow
	}
	if cfg.Ledger.RevealWindow == "" {
		cfg.Ledger.RevealWindow = def.Ledger.RevealWindow
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = def.Store.Backend
	}

	return &cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Relay.Port < 1 || c.Relay.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Relay.Port)
	}
	if _, err := c.DisputeWindow(); err != nil {
		return err
	}
	if _, err := c.RevealWindow(); err != nil {
		return err
	}
	switch c.Store.Backend {
	case "memory":
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("postgres store requires a dsn")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	return nil
}

// DisputeWindow parses the configured dispute window.
func (c *Config) DisputeWindow() (time.Duration, error) {
	return window("dispute_window", c.Ledger.DisputeWindow)
}

// RevealWindow parses the configured reveal window.
func (c *Config) RevealWindow() (time.Duration, error) {
	return window("reveal_window", c.Ledger.RevealWindow)
}

func window(name, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", name, d)
	}
	return d, nil
}

// RelayAddress returns the full listen address.
func (c *Config) RelayAddress() string {
	return fmt.Sprintf("%s:%d", c.Relay.Address, c.Relay.Port)
}
