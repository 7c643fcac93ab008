// Package dispatch holds the consumer-supplied event callbacks and delivers
// capture-loop events to them.
//
// Each event kind has at most one registered callback paired with an opaque
// context value that is threaded back unmodified on every invocation.
// Registration is last-writer-wins and atomic: an event is delivered either
// to the old pair or the new pair, never a mix. Callbacks run synchronously
// on the emitting goroutine and are invoked without holding the registry
// lock, so a callback may re-register without deadlocking.
package dispatch

import (
	"sync"

	"github.com/shikenmatrix/reporter/internal/event"
)

// LogFunc receives engine log events.
type LogFunc func(level event.LogLevel, message string, user uintptr)

// WindowFunc receives focused-window change events.
type WindowFunc func(info *event.WindowInfo, user uintptr)

// MediaFunc receives media playback change events.
type MediaFunc func(info *event.MediaInfo, user uintptr)

type logSlot struct {
	fn   LogFunc
	user uintptr
}

type windowSlot struct {
	fn   WindowFunc
	user uintptr
}

type mediaSlot struct {
	fn   MediaFunc
	user uintptr
}

// Registry is the callback table. The zero value is usable.
type Registry struct {
	mu     sync.RWMutex
	log    logSlot
	window windowSlot
	media  mediaSlot
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// SetLog registers the log callback, replacing any previous one. A nil fn
// unregisters.
func (r *Registry) SetLog(fn LogFunc, user uintptr) {
	r.mu.Lock()
	r.log = logSlot{fn: fn, user: user}
	r.mu.Unlock()
}

// SetWindow registers the window callback, replacing any previous one.
func (r *Registry) SetWindow(fn WindowFunc, user uintptr) {
	r.mu.Lock()
	r.window = windowSlot{fn: fn, user: user}
	r.mu.Unlock()
}

// SetMedia registers the media callback, replacing any previous one.
func (r *Registry) SetMedia(fn MediaFunc, user uintptr) {
	r.mu.Lock()
	r.media = mediaSlot{fn: fn, user: user}
	r.mu.Unlock()
}

// EmitLog delivers a log event to the registered callback, if any.
func (r *Registry) EmitLog(level event.LogLevel, message string) {
	r.mu.RLock()
	slot := r.log
	r.mu.RUnlock()
	if slot.fn != nil {
		slot.fn(level, message, slot.user)
	}
}

// EmitWindow delivers a window event to the registered callback, if any.
// Unregistered kinds drop the event; nothing is queued.
func (r *Registry) EmitWindow(info *event.WindowInfo) {
	r.mu.RLock()
	slot := r.window
	r.mu.RUnlock()
	if slot.fn != nil {
		slot.fn(info, slot.user)
	}
}

// EmitMedia delivers a media event to the registered callback, if any.
func (r *Registry) EmitMedia(info *event.MediaInfo) {
	r.mu.RLock()
	slot := r.media
	r.mu.RUnlock()
	if slot.fn != nil {
		slot.fn(info, slot.user)
	}
}
