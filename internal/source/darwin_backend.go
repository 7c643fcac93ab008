//go:build darwin

package source

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"net/http"
	"os/exec"
	"strconv"
	"strings"

	"github.com/shikenmatrix/reporter/internal/event"
)

// darwinBackend queries System Events for the frontmost window and the
// Music app for playback state. Both are best-effort: they fail when
// accessibility permission is missing, which the gatekeeper reports ahead
// of time.
type darwinBackend struct {
	// Artwork cache keyed by track identity; the artwork script is far
	// heavier than the metadata one, so it runs once per track.
	artKey  string
	artData []byte
	artMIME string
}

func newPlatformBackend() (Backend, error) {
	return &darwinBackend{}, nil
}

func (b *darwinBackend) Close() error { return nil }

func (b *darwinBackend) FocusedWindow() (*event.WindowInfo, error) {
	const script = `tell application "System Events"
	set frontApp to first application process whose frontmost is true
	set appName to name of frontApp
	set appPid to unix id of frontApp
	set winTitle to ""
	try
		set winTitle to name of front window of frontApp
	end try
	return appName & linefeed & appPid & linefeed & winTitle
end tell`

	out, err := runOSAScript(script)
	if err != nil {
		return nil, fmt.Errorf("failed to query frontmost window: %w", err)
	}

	lines := strings.SplitN(strings.TrimRight(out, "\n"), "\n", 3)
	if len(lines) < 2 || lines[0] == "" {
		return nil, ErrUnavailable
	}

	info := &event.WindowInfo{ProcessName: lines[0]}
	if pid, err := strconv.ParseUint(strings.TrimSpace(lines[1]), 10, 32); err == nil {
		info.PID = uint32(pid)
	}
	if len(lines) == 3 {
		info.Title = lines[2]
	}
	return info, nil
}

func (b *darwinBackend) NowPlaying() (*event.MediaInfo, error) {
	const script = `if application "Music" is not running then return ""
tell application "Music"
	if player state is stopped then return ""
	set t to name of current track
	set ar to artist of current track
	set al to album of current track
	set d to duration of current track
	set p to player position
	set s to (player state is playing)
	return t & linefeed & ar & linefeed & al & linefeed & d & linefeed & p & linefeed & s
end tell`

	out, err := runOSAScript(script)
	if err != nil {
		return nil, fmt.Errorf("failed to query now playing: %w", err)
	}
	out = strings.TrimRight(out, "\n")
	if out == "" {
		return nil, ErrUnavailable
	}

	lines := strings.SplitN(out, "\n", 6)
	if len(lines) < 6 {
		return nil, ErrUnavailable
	}

	info := &event.MediaInfo{
		BundleIdentifier: "com.apple.Music",
		Title:            lines[0],
		Artist:           lines[1],
		Album:            lines[2],
		Playing:          lines[5] == "true",
	}
	if d, err := strconv.ParseFloat(strings.Replace(lines[3], ",", ".", 1), 64); err == nil {
		info.Duration = d
	}
	if p, err := strconv.ParseFloat(strings.Replace(lines[4], ",", ".", 1), 64); err == nil {
		info.ElapsedTime = p
	}
	if info.Playing {
		info.PlaybackRate = 1.0
	}
	info.ContentItemIdentifier = fmt.Sprintf("%s:%s:%s", info.BundleIdentifier, info.Title, info.Album)
	info.ArtworkData, info.ArtworkMIMEType = b.artwork(info.ContentItemIdentifier)
	return info, nil
}

func (b *darwinBackend) artwork(key string) ([]byte, string) {
	if key == b.artKey {
		return b.artData, b.artMIME
	}
	b.artKey = key
	b.artData, b.artMIME = nil, ""

	const script = `if application "Music" is not running then return ""
tell application "Music"
	if player state is stopped then return ""
	try
		return data of artwork 1 of current track
	on error
		return ""
	end try
end tell`

	out, err := runOSAScript(script)
	if err != nil {
		return nil, ""
	}
	data, err := decodeOSAData(out)
	if err != nil || len(data) == 0 || len(data) > maxArtworkBytes {
		return nil, ""
	}
	b.artData, b.artMIME = data, http.DetectContentType(data)
	return b.artData, b.artMIME
}

// decodeOSAData parses osascript's raw-data rendering, a guillemet-wrapped
// four-character type code followed by hex, e.g. «data PNGf89504E47...».
func decodeOSAData(out string) ([]byte, error) {
	i := strings.Index(out, "«data ")
	if i < 0 {
		return nil, fmt.Errorf("no raw data in osascript output")
	}
	rest := out[i+len("«data "):]
	if j := strings.Index(rest, "»"); j >= 0 {
		rest = rest[:j]
	}
	rest = strings.TrimSpace(rest)
	if len(rest) <= 4 {
		return nil, fmt.Errorf("raw data too short: %q", rest)
	}
	return hex.DecodeString(rest[4:])
}

func runOSAScript(script string) (string, error) {
	cmd := exec.Command("osascript", "-e", script)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(errb.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("osascript: %s", msg)
	}
	return out.String(), nil
}
