// Package reporter owns the process-wide reporter engine: the capture loop,
// the transport connection, and the lifecycle state machine coordinating
// them. At most one engine is live per process; Start and Stop perform an
// atomic check-and-set on a single guarded slot.
package reporter

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/shikenmatrix/reporter/internal/config"
	"github.com/shikenmatrix/reporter/internal/dispatch"
	"github.com/shikenmatrix/reporter/internal/event"
	"github.com/shikenmatrix/reporter/internal/logger"
	"github.com/shikenmatrix/reporter/internal/permission"
	"github.com/shikenmatrix/reporter/internal/source"
	"github.com/shikenmatrix/reporter/internal/transport"
)

// stopGracePeriod bounds how long Stop waits for the capture loop and
// transport to wind down before releasing the slot anyway.
const stopGracePeriod = 5 * time.Second

// Handle is the opaque token returned by Start. Only the handle handed out
// by the Start that created the running instance can stop it.
type Handle struct {
	inst *engine
}

// EngineStatus is a point-in-time snapshot of the reporter.
type EngineStatus struct {
	IsRunning   bool
	IsConnected bool
	LastError   string
}

type engine struct {
	cfg       config.ReporterConfig
	gate      *permission.Gatekeeper
	backend   source.Backend
	transport *transport.Manager

	cancel context.CancelFunc
	done   chan struct{}

	errMu   sync.Mutex
	lastErr string
}

var (
	mu        sync.Mutex
	current   *engine
	curHandle *Handle

	callbacks = dispatch.NewRegistry()
)

func init() {
	// Engine log records double as LogEvents for the host.
	logger.SetForwarder(func(level zerolog.Level, message string) {
		callbacks.EmitLog(mapLevel(level), message)
	})
}

func mapLevel(level zerolog.Level) event.LogLevel {
	switch {
	case level >= zerolog.ErrorLevel:
		return event.LevelError
	case level >= zerolog.WarnLevel:
		return event.LevelWarning
	default:
		return event.LevelInfo
	}
}

// SetLogCallback registers the host log callback. May be called before or
// after Start; registration survives Stop.
func SetLogCallback(fn dispatch.LogFunc, user uintptr) {
	callbacks.SetLog(fn, user)
}

// SetWindowCallback registers the host window callback.
func SetWindowCallback(fn dispatch.WindowFunc, user uintptr) {
	callbacks.SetWindow(fn, user)
}

// SetMediaCallback registers the host media callback.
func SetMediaCallback(fn dispatch.MediaFunc, user uintptr) {
	callbacks.SetMedia(fn, user)
}

// Start brings up the reporter with a snapshot of cfg. Returns nil when cfg
// is nil, invalid, disabled, or a reporter is already running.
//
// The log hook runs the host log callback synchronously on the logging
// goroutine, and that callback may re-enter the engine. mu must never be
// held across a log call.
func Start(cfg *config.ReporterConfig) *Handle {
	log := logger.WithComponent("reporter")

	if cfg == nil {
		log.Error().Msg("Start called with nil config")
		return nil
	}
	if !cfg.Enabled {
		log.Error().Msg("Start called with disabled config")
		return nil
	}
	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("Start called with invalid config")
		return nil
	}

	mu.Lock()
	if current != nil {
		mu.Unlock()
		log.Error().Msg("Reporter already running")
		return nil
	}

	e := &engine{
		cfg:  *cfg,
		gate: permission.Default,
		done: make(chan struct{}),
	}

	backend, backendErr := source.New()
	if backendErr != nil {
		// The engine still starts; window/media sampling degrades to
		// warnings until the backend becomes available after a restart.
		e.recordError(backendErr.Error())
		backend = source.Unavailable(backendErr)
	}
	e.backend = backend

	e.transport = transport.New(cfg.NormalizedEndpoint(), cfg.AuthToken)
	e.transport.Start()

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	s := newSampler(e.cfg, e.gate, e.backend, callbacks.EmitWindow, callbacks.EmitMedia, e.transport, e.recordError)
	go func() {
		defer close(e.done)
		s.run(ctx)
	}()

	current = e
	h := &Handle{inst: e}
	curHandle = h
	mu.Unlock()

	if backendErr != nil {
		log.Warn().Err(backendErr).Msg("OS query backend unavailable")
	}
	log.Info().
		Str("endpoint", cfg.Endpoint).
		Bool("media_reporting", cfg.EnableMediaReporting).
		Msg("Reporter started")
	return h
}

// Stop shuts the running reporter down. Returns false when no reporter is
// running or the handle does not match the live instance. Safe to call from
// any goroutine, including one other than the starter's.
//
// The slot is released before teardown begins, so Status and IsRunning
// report not-running immediately and never block behind the grace period.
func Stop(h *Handle) bool {
	log := logger.WithComponent("reporter")

	mu.Lock()
	if current == nil {
		mu.Unlock()
		log.Error().Msg("Stop called but no reporter running")
		return false
	}
	if h == nil || h.inst != current {
		mu.Unlock()
		log.Error().Msg("Stop called with mismatched handle")
		return false
	}

	e := current
	current = nil
	curHandle = nil
	mu.Unlock()

	e.cancel()
	select {
	case <-e.done:
	case <-time.After(stopGracePeriod):
		log.Warn().Msg("Capture loop did not stop within grace period")
	}
	e.transport.Stop()
	if err := e.backend.Close(); err != nil {
		log.Warn().Err(err).Msg("Backend close failed")
	}

	log.Info().Msg("Reporter stopped")
	return true
}

// Status reports the current lifecycle and connection state. Always
// succeeds; with no running instance the zero EngineStatus is returned with
// any error recorded by the last instance omitted.
func Status() EngineStatus {
	mu.Lock()
	e := current
	mu.Unlock()

	if e == nil {
		return EngineStatus{}
	}

	st := EngineStatus{
		IsRunning:   true,
		IsConnected: e.transport.IsConnected(),
	}
	if terr := e.transport.LastError(); terr != "" {
		st.LastError = terr
	} else {
		st.LastError = e.lastError()
	}
	return st
}

// IsRunning reports whether a reporter instance is live.
func IsRunning() bool {
	mu.Lock()
	defer mu.Unlock()
	return current != nil
}

func (e *engine) recordError(msg string) {
	e.errMu.Lock()
	e.lastErr = msg
	e.errMu.Unlock()
}

func (e *engine) lastError() string {
	e.errMu.Lock()
	defer e.errMu.Unlock()
	return e.lastErr
}
