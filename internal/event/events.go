// Package event defines the event types produced by the capture loop and
// the identity hashing used for change detection.
package event

import (
	"encoding/binary"
	"hash/fnv"
	"math"
)

// LogLevel mirrors the levels exposed at the C boundary.
type LogLevel uint8

const (
	LevelInfo LogLevel = iota
	LevelWarning
	LevelError
)

func (l LogLevel) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	}
	return "unknown"
}

// WindowInfo describes the currently focused window.
type WindowInfo struct {
	Title       string `json:"title"`
	ProcessName string `json:"process_name"`
	PID         uint32 `json:"pid"`
	AppID       string `json:"app_id,omitempty"`
	IconData    []byte `json:"-"`
}

// MediaInfo describes the current now-playing state of the system media
// player. Optional string fields are empty when the player does not report
// them.
type MediaInfo struct {
	BundleIdentifier      string  `json:"bundle_identifier,omitempty"`
	Title                 string  `json:"title,omitempty"`
	Artist                string  `json:"artist,omitempty"`
	Album                 string  `json:"album,omitempty"`
	Duration              float64 `json:"duration"`
	ElapsedTime           float64 `json:"elapsed_time"`
	PlaybackRate          float64 `json:"playback_rate"`
	Playing               bool    `json:"playing"`
	ArtworkData           []byte  `json:"-"`
	ArtworkMIMEType       string  `json:"-"`
	ContentItemIdentifier string  `json:"content_item_identifier,omitempty"`
}

// IdentityHash returns the value used to decide whether a window sample
// differs from the previously emitted one. Icon bytes are excluded: the icon
// follows the window identity, it does not define it.
func (w *WindowInfo) IdentityHash() uint64 {
	h := fnv.New64a()
	writeString(h, w.Title)
	writeString(h, w.ProcessName)
	writeUint64(h, uint64(w.PID))
	writeString(h, w.AppID)
	return h.Sum64()
}

// MetadataHash covers every field except elapsed time, so that playback
// position ticks alone do not count as a metadata change.
func (m *MediaInfo) MetadataHash() uint64 {
	h := fnv.New64a()
	writeString(h, m.BundleIdentifier)
	writeString(h, m.Title)
	writeString(h, m.Artist)
	writeString(h, m.Album)
	writeUint64(h, uint64(int64(m.Duration*1000)))
	writeUint64(h, uint64(int64(m.PlaybackRate*100)))
	if m.Playing {
		writeUint64(h, 1)
	} else {
		writeUint64(h, 0)
	}
	writeString(h, m.ContentItemIdentifier)
	return h.Sum64()
}

// IdentityHash extends MetadataHash with elapsed time truncated to whole
// seconds, matching the granularity at which position updates are reported.
func (m *MediaInfo) IdentityHash() uint64 {
	h := fnv.New64a()
	writeUint64(h, m.MetadataHash())
	writeUint64(h, uint64(int64(math.Floor(m.ElapsedTime))))
	return h.Sum64()
}

func writeString(h interface{ Write([]byte) (int, error) }, s string) {
	h.Write([]byte(s))
	// Separator keeps ("ab","c") distinct from ("a","bc").
	h.Write([]byte{0xff})
}

func writeUint64(h interface{ Write([]byte) (int, error) }, v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	h.Write(buf[:])
}
