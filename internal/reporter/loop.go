package reporter

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/shikenmatrix/reporter/internal/config"
	"github.com/shikenmatrix/reporter/internal/event"
	"github.com/shikenmatrix/reporter/internal/logger"
	"github.com/shikenmatrix/reporter/internal/source"
)

const (
	// pollInterval is the capture loop sampling cadence.
	pollInterval = 500 * time.Millisecond
	// elapsedThrottle caps how often pure playback-position ticks are
	// emitted while a track is playing.
	elapsedThrottle = time.Second
)

// permissionGate is the subset of the gatekeeper the loop consults each
// cycle.
type permissionGate interface {
	CheckAccessibility() bool
	CheckMedia() bool
}

// remoteSink receives emitted events for the transport path.
type remoteSink interface {
	SendWindow(*event.WindowInfo)
	SendMedia(*event.MediaInfo)
}

// sampler runs the periodic capture cycle: permission gating, OS queries,
// change detection, and fan-out to the callback and transport paths.
type sampler struct {
	cfg     config.ReporterConfig
	gate    permissionGate
	backend source.Backend

	onWindow  func(*event.WindowInfo)
	onMedia   func(*event.MediaInfo)
	remote    remoteSink
	recordErr func(string)

	interval time.Duration
	throttle time.Duration
	now      func() time.Time
	log      *zerolog.Logger

	hasWindow      bool
	lastWindowHash uint64

	hasMedia      bool
	lastMetaHash  uint64
	lastMediaHash uint64
	lastMediaEmit time.Time

	windowWarned bool
	mediaWarned  bool
}

func newSampler(
	cfg config.ReporterConfig,
	gate permissionGate,
	backend source.Backend,
	onWindow func(*event.WindowInfo),
	onMedia func(*event.MediaInfo),
	remote remoteSink,
	recordErr func(string),
) *sampler {
	return &sampler{
		cfg:       cfg,
		gate:      gate,
		backend:   backend,
		onWindow:  onWindow,
		onMedia:   onMedia,
		remote:    remote,
		recordErr: recordErr,
		interval:  pollInterval,
		throttle:  elapsedThrottle,
		now:       time.Now,
		log:       logger.WithComponent("capture"),
	}
}

func (s *sampler) run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// tick performs one sampling cycle.
func (s *sampler) tick() {
	s.sampleWindow()
	s.sampleMedia()
}

func (s *sampler) sampleWindow() {
	if !s.gate.CheckAccessibility() {
		return
	}

	info, err := s.backend.FocusedWindow()
	if err != nil {
		if !errors.Is(err, source.ErrUnavailable) && !s.windowWarned {
			// Warn once per failure streak, not once per tick.
			s.log.Warn().Err(err).Msg("Failed to query focused window")
			s.recordErr(err.Error())
			s.windowWarned = true
		}
		return
	}
	s.windowWarned = false

	h := info.IdentityHash()
	if s.hasWindow && h == s.lastWindowHash {
		return
	}
	s.hasWindow = true
	s.lastWindowHash = h

	s.onWindow(info)
	s.remote.SendWindow(info)
}

func (s *sampler) sampleMedia() {
	if !s.cfg.EnableMediaReporting {
		return
	}
	if !s.gate.CheckMedia() {
		return
	}

	info, err := s.backend.NowPlaying()
	if err != nil {
		if !errors.Is(err, source.ErrUnavailable) && !s.mediaWarned {
			s.log.Warn().Err(err).Msg("Failed to query media state")
			s.recordErr(err.Error())
			s.mediaWarned = true
		}
		return
	}
	s.mediaWarned = false

	metaHash := info.MetadataHash()
	fullHash := info.IdentityHash()
	now := s.now()

	metaChanged := !s.hasMedia || metaHash != s.lastMetaHash
	elapsedTicked := fullHash != s.lastMediaHash

	switch {
	case metaChanged:
		// Track/state change: emit immediately.
	case elapsedTicked && now.Sub(s.lastMediaEmit) >= s.throttle:
		// Pure position tick: emit at the throttled cadence.
	default:
		return
	}

	s.hasMedia = true
	s.lastMetaHash = metaHash
	s.lastMediaHash = fullHash
	s.lastMediaEmit = now

	s.onMedia(info)
	s.remote.SendMedia(info)
}
