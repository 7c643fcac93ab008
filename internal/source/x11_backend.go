//go:build linux

package source

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"

	"github.com/shikenmatrix/reporter/internal/event"
	"github.com/shikenmatrix/reporter/internal/logger"
)

// x11Backend reads the focused window through the X server and media state
// through MPRIS.
type x11Backend struct {
	conn  *xgb.Conn
	mpris *mprisClient
}

func newPlatformBackend() (Backend, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}
	return &x11Backend{
		conn:  conn,
		mpris: newMPRISClient(),
	}, nil
}

func (b *x11Backend) Close() error {
	b.conn.Close()
	return nil
}

func (b *x11Backend) FocusedWindow() (*event.WindowInfo, error) {
	focusReply, err := xproto.GetInputFocus(b.conn).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to query input focus: %w", err)
	}

	win := focusReply.Focus
	if win == xproto.WindowNone {
		return nil, ErrUnavailable
	}

	info := &event.WindowInfo{}

	if title, err := b.getStringProperty(win, "_NET_WM_NAME"); err == nil {
		info.Title = title
	}
	if info.Title == "" {
		if title, err := b.getStringProperty(win, "WM_NAME"); err == nil {
			info.Title = title
		}
	}

	// WM_CLASS is two null-separated strings: instance, then class.
	if class, err := b.getStringProperty(win, "WM_CLASS"); err == nil {
		parts := strings.Split(class, "\x00")
		info.ProcessName = parts[0]
		if len(parts) > 1 && parts[1] != "" {
			info.AppID = parts[1]
		}
	}

	if pid, err := b.getCardinalProperty(win, "_NET_WM_PID"); err == nil {
		info.PID = pid
	}

	if icon, err := b.getIcon(win); err == nil {
		info.IconData = icon
	}

	if info.Title == "" && info.ProcessName == "" {
		return nil, ErrUnavailable
	}
	return info, nil
}

func (b *x11Backend) NowPlaying() (*event.MediaInfo, error) {
	return b.mpris.nowPlaying()
}

func (b *x11Backend) getAtom(name string) (xproto.Atom, error) {
	reply, err := xproto.InternAtom(b.conn, false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, err
	}
	return reply.Atom, nil
}

func (b *x11Backend) getStringProperty(win xproto.Window, name string) (string, error) {
	atom, err := b.getAtom(name)
	if err != nil {
		return "", err
	}

	reply, err := xproto.GetProperty(
		b.conn,
		false,
		win,
		atom,
		xproto.GetPropertyTypeAny,
		0,
		(1<<32)-1,
	).Reply()
	if err != nil {
		return "", err
	}
	if reply.ValueLen == 0 {
		return "", fmt.Errorf("empty property %s", name)
	}
	return string(reply.Value), nil
}

func (b *x11Backend) getCardinalProperty(win xproto.Window, name string) (uint32, error) {
	atom, err := b.getAtom(name)
	if err != nil {
		return 0, err
	}

	reply, err := xproto.GetProperty(
		b.conn,
		false,
		win,
		atom,
		xproto.AtomCardinal,
		0,
		1,
	).Reply()
	if err != nil {
		return 0, err
	}
	if len(reply.Value) < 4 {
		return 0, fmt.Errorf("property %s too short", name)
	}
	return binary.LittleEndian.Uint32(reply.Value), nil
}

// getIcon reads _NET_WM_ICON, which is a CARDINAL array of one or more
// (width, height, pixels...) entries, and encodes the first entry as PNG.
func (b *x11Backend) getIcon(win xproto.Window) ([]byte, error) {
	atom, err := b.getAtom("_NET_WM_ICON")
	if err != nil {
		return nil, err
	}

	reply, err := xproto.GetProperty(
		b.conn,
		false,
		win,
		atom,
		xproto.AtomCardinal,
		0,
		(1<<22)-1,
	).Reply()
	if err != nil {
		return nil, err
	}
	if reply.Format != 32 || reply.ValueLen < 2 {
		return nil, ErrUnavailable
	}

	// xgb sets the connection up little-endian, so 32-bit format
	// properties arrive as little-endian words.
	words := make([]uint32, reply.ValueLen)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(reply.Value[i*4 : i*4+4])
	}

	width := int(words[0])
	height := int(words[1])
	if width <= 0 || height <= 0 || len(words) < 2+width*height {
		return nil, ErrUnavailable
	}

	icon, err := encodeIcon(words[2:2+width*height], width, height)
	if err != nil {
		logger.WithComponent("source").Debug().Err(err).Msg("Failed to encode window icon")
		return nil, err
	}
	return icon, nil
}
