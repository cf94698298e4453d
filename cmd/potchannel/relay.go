package main

import (
	"os"

	"github.com/charmbracelet/log"

	"github.com/potchannel/potchannel/cmd/potchannel/shared"
	"github.com/potchannel/potchannel/internal/config"
	"github.com/potchannel/potchannel/internal/relay"
)

// RelayCmd runs the websocket rendezvous server.
type RelayCmd struct {
	Config string `kong:"default='relay.hcl',help='Path to HCL configuration file'"`
	Addr   string `kong:"help='Listen address (overrides config)'"`
	Debug  bool   `kong:"help='Enable debug logging'"`
	JSON   bool   `kong:"help='Structured JSON log output'"`
}

func (c *RelayCmd) Run() error {
	logger := shared.SetupLogger(c.Debug, c.JSON)

	cfg, err := config.Load(c.Config)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	addr := cfg.RelayAddress()
	if c.Addr != "" {
		addr = c.Addr
	}

	hubLevel := log.InfoLevel
	if c.Debug || cfg.Relay.LogLevel == "debug" {
		hubLevel = log.DebugLevel
	}
	hubLogger := log.NewWithOptions(os.Stderr, log.Options{Level: hubLevel})

	r := relay.New(addr, hubLogger)

	logger.Info().
		Str("address", addr).
		Msg("Starting potchannel relay")

	ctx := shared.SignalContext(logger)

	relayErr := make(chan error, 1)
	go func() {
		relayErr <- r.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("Shutting down relay...")
		r.Stop()
		return nil
	case err := <-relayErr:
		return err
	}
}
