// Package logger configures the process-wide zerolog logger and bridges
// engine log records to the host-registered log callback.
package logger

import (
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger is the global logger instance.
var Logger zerolog.Logger

// Forwarder receives every engine log record at info level or above, in
// addition to the normal log output. The reporter wires this to the
// registered log callback so the host sees the same stream the log does.
type Forwarder func(level zerolog.Level, message string)

var forwarder atomic.Value // Forwarder

func init() {
	Logger = zerolog.New(os.Stderr).
		With().
		Timestamp().
		Logger().
		Hook(forwardHook{})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = Logger
}

// Init reconfigures the global logger with the given level and output style.
func Init(level string, pretty bool) {
	var zlLevel zerolog.Level
	switch strings.ToLower(level) {
	case "debug":
		zlLevel = zerolog.DebugLevel
	case "info":
		zlLevel = zerolog.InfoLevel
	case "warn", "warning":
		zlLevel = zerolog.WarnLevel
	case "error":
		zlLevel = zerolog.ErrorLevel
	default:
		zlLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(zlLevel)

	var output io.Writer = os.Stderr
	if pretty {
		output = zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		}
	}

	Logger = zerolog.New(output).
		With().
		Timestamp().
		Logger().
		Hook(forwardHook{})
	log.Logger = Logger
}

// SetForwarder installs the record forwarder. Passing nil disables
// forwarding. Safe to call concurrently with logging.
func SetForwarder(f Forwarder) {
	forwarder.Store(f)
}

type forwardHook struct{}

func (forwardHook) Run(_ *zerolog.Event, level zerolog.Level, message string) {
	if level < zerolog.InfoLevel || message == "" {
		return
	}
	f, _ := forwarder.Load().(Forwarder)
	if f != nil {
		f(level, message)
	}
}

// WithComponent returns a logger with a component field set.
func WithComponent(component string) *zerolog.Logger {
	l := Logger.With().Str("component", component).Logger()
	return &l
}
