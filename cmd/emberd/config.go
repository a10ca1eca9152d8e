package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btclog/v2"
	flags "github.com/jessevdk/go-flags"

	"github.com/embernode/ember/chainfee"
	"github.com/embernode/ember/funding"
)

const (
	defaultLogLevel       = "info"
	defaultNetwork        = "mainnet"
	defaultPeerDBFilename = "peers.db"
)

var (
	defaultDataDir = btcutil.AppDataDir("emberd", false)
)

// Config defines the configuration options for the daemon.
//
// See LoadConfig for further details regarding the configuration
// loading+parsing process.
type Config struct {
	DataDir string `long:"datadir" description:"The directory to store the peer database and other state within"`

	Network string `long:"network" description:"The bitcoin network to run on" choice:"mainnet" choice:"testnet" choice:"regtest" choice:"simnet"`

	LogLevel string `long:"loglevel" description:"Logging level {trace, debug, info, warn, error, critical}"`

	FeeRate uint64 `long:"feerate" description:"Static fee rate in sat/kw for funding transactions"`

	FundingTimeout time.Duration `long:"fundingtimeout" description:"Total time a batch waits for funding negotiation events"`

	PollInterval time.Duration `long:"pollinterval" description:"Pause between event drains while waiting for funding events"`
}

// DefaultConfig returns all default values for the Config struct.
func DefaultConfig() Config {
	return Config{
		DataDir:        defaultDataDir,
		Network:        defaultNetwork,
		LogLevel:       defaultLogLevel,
		FeeRate:        uint64(chainfee.FeePerKwFloor),
		FundingTimeout: funding.DefaultFundingTimeout,
		PollInterval:   funding.DefaultPollInterval,
	}
}

// LoadConfig initializes and parses the config using command line options,
// then validates and cleans the result.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()
	if _, err := flags.Parse(&cfg); err != nil {
		return nil, err
	}

	// As soon as we're done parsing configuration options, ensure all
	// paths to directories and files are cleaned and expanded before
	// attempting to use them later on.
	cfg.DataDir = filepath.Clean(cfg.DataDir)
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("unable to create data dir: %w", err)
	}

	if _, ok := btclog.LevelFromString(cfg.LogLevel); !ok {
		return nil, fmt.Errorf("invalid log level: %v", cfg.LogLevel)
	}

	if cfg.FeeRate < uint64(chainfee.FeePerKwFloor) {
		return nil, fmt.Errorf("fee rate %d sat/kw is below the relay "+
			"floor of %d sat/kw", cfg.FeeRate, chainfee.FeePerKwFloor)
	}

	if cfg.FundingTimeout <= 0 || cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("funding timeout and poll interval " +
			"must be positive")
	}
	if cfg.PollInterval > cfg.FundingTimeout {
		return nil, fmt.Errorf("poll interval %v exceeds funding "+
			"timeout %v", cfg.PollInterval, cfg.FundingTimeout)
	}

	return &cfg, nil
}
