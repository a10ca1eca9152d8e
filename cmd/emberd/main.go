package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/btcsuite/btclog/v2"
	flags "github.com/jessevdk/go-flags"

	"github.com/embernode/ember/broadcast"
	"github.com/embernode/ember/build"
	"github.com/embernode/ember/chanfunding"
	"github.com/embernode/ember/events"
	"github.com/embernode/ember/funding"
	"github.com/embernode/ember/peerdb"
)

// log is the logger of the daemon shell itself. It is wired together with
// all subsystem loggers in run.
var log btclog.Logger

func main() {
	if err := run(); err != nil {
		// Help requests are printed by the flag parser already.
		var flagErr *flags.Error
		if errors.As(err, &flagErr) && flagErr.Type == flags.ErrHelp {
			os.Exit(0)
		}

		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}

	// One shared handler backs every subsystem logger, so formatting
	// stays consistent across packages. The configured level is applied
	// to every subsystem alike.
	level, _ := btclog.LevelFromString(cfg.LogLevel)
	genLogger := build.GenSubLoggers(build.NewDefaultLogHandler())
	newLogger := func(subsystem string) btclog.Logger {
		logger := build.NewSubLogger(subsystem, genLogger)
		logger.SetLevel(level)

		return logger
	}

	log = newLogger("EMBR")
	funding.UseLogger(newLogger("FNDG"))
	broadcast.UseLogger(newLogger("BRDC"))
	chanfunding.UseLogger(newLogger("CHFD"))

	log.Infof("Starting emberd on %v", cfg.Network)

	db, err := peerdb.Open(filepath.Join(cfg.DataDir, defaultPeerDBFilename))
	if err != nil {
		return fmt.Errorf("unable to open peer database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Errorf("Unable to close peer database: %v", err)
		}
	}()

	knownPeers, err := db.ListPeers()
	if err != nil {
		return fmt.Errorf("unable to list peers: %w", err)
	}
	log.Infof("Peer database holds %d known peer(s)", len(knownPeers))

	eventServer := events.NewServer()
	if err := eventServer.Start(); err != nil {
		return fmt.Errorf("unable to start event bus: %w", err)
	}
	defer func() {
		if err := eventServer.Stop(); err != nil {
			log.Errorf("Unable to stop event bus: %v", err)
		}
	}()

	// The channel engine and chain backend are hosted by the embedding
	// node, so the shell stops at the subsystems it owns. It stays up
	// until it is told to shut down.
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	log.Info("emberd is ready")
	<-interrupt

	log.Info("Received shutdown signal, stopping")

	return nil
}
