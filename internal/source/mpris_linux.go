//go:build linux

package source

import (
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"

	"github.com/shikenmatrix/reporter/internal/event"
	"github.com/shikenmatrix/reporter/internal/logger"
)

const (
	mprisPrefix     = "org.mpris.MediaPlayer2."
	mprisObjectPath = "/org/mpris/MediaPlayer2"
	mprisPlayerIntf = "org.mpris.MediaPlayer2.Player"
)

// mprisClient reads now-playing state from whichever MPRIS player is
// currently playing, falling back to the first player on the bus.
type mprisClient struct {
	conn *dbus.Conn

	// Artwork cache keyed by art URL; players repeat the same URL on every
	// poll, so the bytes are fetched once per track.
	artURL  string
	artData []byte
	artMIME string
}

func newMPRISClient() *mprisClient {
	return &mprisClient{}
}

func (c *mprisClient) bus() (*dbus.Conn, error) {
	if c.conn != nil {
		return c.conn, nil
	}
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	c.conn = conn
	return conn, nil
}

func (c *mprisClient) nowPlaying() (*event.MediaInfo, error) {
	conn, err := c.bus()
	if err != nil {
		return nil, err
	}

	var names []string
	if err := conn.BusObject().Call("org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		return nil, fmt.Errorf("failed to list bus names: %w", err)
	}

	var fallback *event.MediaInfo
	for _, name := range names {
		if !strings.HasPrefix(name, mprisPrefix) {
			continue
		}
		info, err := c.readPlayer(conn, name)
		if err != nil {
			continue
		}
		if info.Playing {
			return info, nil
		}
		if fallback == nil {
			fallback = info
		}
	}
	if fallback != nil {
		return fallback, nil
	}
	return nil, ErrUnavailable
}

func (c *mprisClient) readPlayer(conn *dbus.Conn, busName string) (*event.MediaInfo, error) {
	obj := conn.Object(busName, mprisObjectPath)

	metaVar, err := obj.GetProperty(mprisPlayerIntf + ".Metadata")
	if err != nil {
		return nil, err
	}
	meta, ok := metaVar.Value().(map[string]dbus.Variant)
	if !ok {
		return nil, ErrUnavailable
	}

	info := &event.MediaInfo{
		BundleIdentifier: strings.TrimPrefix(busName, mprisPrefix),
		Title:            variantString(meta["xesam:title"]),
		Album:            variantString(meta["xesam:album"]),
		PlaybackRate:     1.0,
	}

	if artists, ok := meta["xesam:artist"].Value().([]string); ok && len(artists) > 0 {
		info.Artist = strings.Join(artists, ", ")
	}
	if length, ok := variantInt64(meta["mpris:length"]); ok {
		info.Duration = float64(length) / 1e6
	}
	if trackID := variantString(meta["mpris:trackid"]); trackID != "" {
		info.ContentItemIdentifier = trackID
	}
	if artURL := variantString(meta["mpris:artUrl"]); artURL != "" {
		info.ArtworkData, info.ArtworkMIMEType = c.artwork(artURL)
	}

	if statusVar, err := obj.GetProperty(mprisPlayerIntf + ".PlaybackStatus"); err == nil {
		info.Playing = variantString(statusVar) == "Playing"
	}
	if posVar, err := obj.GetProperty(mprisPlayerIntf + ".Position"); err == nil {
		if pos, ok := variantInt64(posVar); ok {
			info.ElapsedTime = float64(pos) / 1e6
		}
	}
	if rateVar, err := obj.GetProperty(mprisPlayerIntf + ".Rate"); err == nil {
		if rate, ok := rateVar.Value().(float64); ok {
			info.PlaybackRate = rate
		}
	}
	if !info.Playing {
		info.PlaybackRate = 0
	}

	return info, nil
}

func (c *mprisClient) artwork(artURL string) ([]byte, string) {
	if artURL == c.artURL {
		return c.artData, c.artMIME
	}
	c.artURL = artURL
	c.artData, c.artMIME = nil, ""

	data, mime, err := fetchArtwork(artURL)
	if err != nil {
		logger.WithComponent("source").Debug().Err(err).Str("url", artURL).Msg("Failed to load artwork")
		return nil, ""
	}
	c.artData, c.artMIME = data, mime
	return data, mime
}

func variantString(v dbus.Variant) string {
	s, _ := v.Value().(string)
	return s
}

func variantInt64(v dbus.Variant) (int64, bool) {
	switch n := v.Value().(type) {
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	case int32:
		return int64(n), true
	case uint32:
		return int64(n), true
	}
	return 0, false
}
