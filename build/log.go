package build

import (
	"os"

	"github.com/btcsuite/btclog/v2"
)

// NewDefaultLogHandler returns a handler that writes human readable log
// lines to stdout. The daemon installs it as the root of all subsystem
// loggers.
func NewDefaultLogHandler(opts ...btclog.HandlerOption) btclog.Handler {
	return btclog.NewDefaultHandler(os.Stdout, opts...)
}

// NewSubLogger constructs a new subsystem logger using the passed generator.
// If no generator is provided, logging for the subsystem is disabled. This
// is what every package level init uses, so importing a package never
// produces output on its own.
func NewSubLogger(subsystem string,
	genSubLogger func(string) btclog.Logger) btclog.Logger {

	if genSubLogger != nil {
		return genSubLogger(subsystem)
	}

	return btclog.Disabled
}

// GenSubLoggers returns a generator producing subsystem loggers that all
// share the given handler.
func GenSubLoggers(handler btclog.Handler) func(string) btclog.Logger {
	root := btclog.NewSLogger(handler)
	return func(subsystem string) btclog.Logger {
		return root.SubSystem(subsystem)
	}
}
