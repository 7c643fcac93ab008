// Package source queries the operating system for the focused window and
// the current media playback state. It is the capture loop's only window to
// the outside world; everything else in the engine treats its results as
// opaque structured data.
package source

import (
	"errors"

	"github.com/shikenmatrix/reporter/internal/event"
)

// ErrUnavailable is returned when the queried state does not exist, e.g. no
// window is focused, nothing is playing, or the platform has no backend.
var ErrUnavailable = errors.New("source: unavailable")

// Backend answers the two OS queries the capture loop performs each cycle.
type Backend interface {
	// FocusedWindow returns the currently focused window, or ErrUnavailable
	// when focus cannot be determined.
	FocusedWindow() (*event.WindowInfo, error)
	// NowPlaying returns the current media state, or ErrUnavailable when no
	// player is active.
	NowPlaying() (*event.MediaInfo, error)
	// Close releases any OS resources held by the backend.
	Close() error
}

// New returns the platform backend for the current OS.
func New() (Backend, error) {
	return newPlatformBackend()
}

// Unavailable returns a backend whose queries always fail with the given
// error. Used when the platform backend could not be constructed, so the
// capture loop degrades to warnings instead of refusing to start.
func Unavailable(err error) Backend {
	return unavailableBackend{err: err}
}

type unavailableBackend struct {
	err error
}

func (b unavailableBackend) FocusedWindow() (*event.WindowInfo, error) { return nil, b.err }
func (b unavailableBackend) NowPlaying() (*event.MediaInfo, error)     { return nil, b.err }
func (b unavailableBackend) Close() error                              { return nil }
