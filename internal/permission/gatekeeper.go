// Package permission gates the capture loop on OS capability grants.
//
// The accessibility check is prompt-free and returns immediately, so it is
// queried fresh every time. The media probe is different: when the hosting
// library has been quarantined by OS gatekeeping the underlying call hangs
// indefinitely instead of failing, so CheckMedia races the probe against a
// deadline and caches a sticky Blocked verdict on timeout.
package permission

import (
	"sync"
	"time"

	"github.com/shikenmatrix/reporter/internal/logger"
)

// Verdict is the cached outcome of a capability probe.
type Verdict int

const (
	// VerdictGranted means the capability is available.
	VerdictGranted Verdict = iota
	// VerdictDenied means the probe completed and reported no access.
	VerdictDenied
	// VerdictBlocked means the probe did not complete in bounded time.
	// Unlike Denied it is sticky: no re-probe happens until ResetMediaCheck.
	VerdictBlocked
)

func (v Verdict) String() string {
	switch v {
	case VerdictGranted:
		return "granted"
	case VerdictDenied:
		return "denied"
	case VerdictBlocked:
		return "blocked"
	}
	return "unknown"
}

// Prober performs the underlying OS capability queries.
type Prober interface {
	// AccessibilityTrusted reports whether the process holds accessibility
	// permission. Never blocks.
	AccessibilityTrusted() bool
	// RequestAccessibility triggers the OS permission prompt when needed and
	// reports the final state. May block on user interaction.
	RequestAccessibility() bool
	// MediaProbe exercises the now-playing API once. May hang indefinitely
	// when the library is gatekeeping-blocked.
	MediaProbe() bool
}

// DefaultMediaTimeout bounds the media probe. A blocked call shows no
// progress at all, so a few hundred milliseconds is enough to tell the two
// cases apart.
const DefaultMediaTimeout = 300 * time.Millisecond

// Gatekeeper caches the media verdict and answers permission queries.
type Gatekeeper struct {
	prober  Prober
	timeout time.Duration

	mu           sync.Mutex
	mediaBlocked bool
	lastMedia    Verdict
}

// NewGatekeeper builds a Gatekeeper over the given prober.
func NewGatekeeper(p Prober) *Gatekeeper {
	return &Gatekeeper{
		prober:    p,
		timeout:   DefaultMediaTimeout,
		lastMedia: VerdictDenied,
	}
}

// NewGatekeeperWithTimeout is NewGatekeeper with a custom probe deadline.
func NewGatekeeperWithTimeout(p Prober, timeout time.Duration) *Gatekeeper {
	g := NewGatekeeper(p)
	g.timeout = timeout
	return g
}

// CheckAccessibility queries the OS trust state directly.
func (g *Gatekeeper) CheckAccessibility() bool {
	return g.prober.AccessibilityTrusted()
}

// RequestAccessibility triggers the permission prompt flow. Blocks the
// calling goroutine only.
func (g *Gatekeeper) RequestAccessibility() bool {
	return g.prober.RequestAccessibility()
}

// CheckMedia reports whether the media API is usable. The probe runs on its
// own goroutine and is abandoned, not killed, when the deadline passes; the
// prober must be safe to outlive this call.
func (g *Gatekeeper) CheckMedia() bool {
	g.mu.Lock()
	if g.mediaBlocked {
		g.mu.Unlock()
		return false
	}
	g.mu.Unlock()

	done := make(chan bool, 1)
	go func() {
		done <- g.prober.MediaProbe()
	}()

	timer := time.NewTimer(g.timeout)
	defer timer.Stop()

	select {
	case ok := <-done:
		g.mu.Lock()
		if ok {
			g.lastMedia = VerdictGranted
		} else {
			g.lastMedia = VerdictDenied
		}
		g.mu.Unlock()
		return ok
	case <-timer.C:
		logger.WithComponent("permission").Warn().
			Dur("timeout", g.timeout).
			Msg("Media probe did not complete, marking media API as blocked")
		g.mu.Lock()
		g.mediaBlocked = true
		g.lastMedia = VerdictBlocked
		g.mu.Unlock()
		return false
	}
}

// ResetMediaCheck clears the sticky blocked verdict so the next CheckMedia
// re-probes. Called after the user re-authorizes the library.
func (g *Gatekeeper) ResetMediaCheck() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.mediaBlocked {
		logger.WithComponent("permission").Info().Msg("Media permission check reset")
	}
	g.mediaBlocked = false
	g.lastMedia = VerdictDenied
}

// MediaVerdict returns the most recent media probe outcome.
func (g *Gatekeeper) MediaVerdict() Verdict {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastMedia
}
