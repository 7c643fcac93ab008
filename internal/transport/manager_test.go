package transport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shikenmatrix/reporter/internal/event"
)

var testUpgrader = websocket.Upgrader{}

type wsFrame struct {
	messageType int
	data        []byte
}

// echoServer upgrades connections, verifies the auth token, and records
// every received frame.
type echoServer struct {
	srv      *httptest.Server
	frames   chan wsFrame
	connects atomic.Int32

	mu    sync.Mutex
	conns []*websocket.Conn

	// dropAfter closes each connection after that many received frames
	// (0 = keep open).
	dropAfter atomic.Int32
}

func newEchoServer(t *testing.T, token string) *echoServer {
	t.Helper()
	es := &echoServer{frames: make(chan wsFrame, 64)}
	es.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer "+token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		es.connects.Add(1)
		es.mu.Lock()
		es.conns = append(es.conns, conn)
		es.mu.Unlock()

		received := int32(0)
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			es.frames <- wsFrame{messageType: mt, data: data}
			received++
			if limit := es.dropAfter.Load(); limit > 0 && received >= limit {
				conn.Close()
				return
			}
		}
	}))
	t.Cleanup(es.srv.Close)
	return es
}

func (es *echoServer) wsURL() string {
	return "ws" + strings.TrimPrefix(es.srv.URL, "http")
}

func (es *echoServer) reply(t *testing.T, v any) {
	t.Helper()
	es.mu.Lock()
	defer es.mu.Unlock()
	require.NotEmpty(t, es.conns)
	conn := es.conns[len(es.conns)-1]
	require.NoError(t, conn.WriteJSON(v))
}

func (es *echoServer) nextFrame(t *testing.T) wsFrame {
	t.Helper()
	select {
	case f := <-es.frames:
		return f
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for frame")
		return wsFrame{}
	}
}

func fastOpts() []Option {
	return []Option{
		WithBackoff(10*time.Millisecond, 50*time.Millisecond),
		WithDialTimeout(2 * time.Second),
	}
}

func TestConnectAndSendWindow(t *testing.T) {
	es := newEchoServer(t, "secret")
	m := New(es.wsURL(), "secret", fastOpts()...)
	m.Start()
	defer m.Stop()

	m.SendWindow(&event.WindowInfo{Title: "editor", ProcessName: "code", PID: 42})

	f := es.nextFrame(t)
	assert.Equal(t, websocket.TextMessage, f.messageType)

	var msg windowMessage
	require.NoError(t, json.Unmarshal(f.data, &msg))
	assert.Equal(t, msgTypeWindowInfo, msg.Type)
	assert.Equal(t, "editor", msg.Data.Title)
	assert.Equal(t, "code", msg.Data.ProcessName)
	assert.Equal(t, uint32(42), msg.Data.PID)
	assert.NotZero(t, msg.Timestamp)

	require.Eventually(t, m.IsConnected, 2*time.Second, 10*time.Millisecond)
}

func TestReconnectAfterServerDrop(t *testing.T) {
	es := newEchoServer(t, "secret")
	es.dropAfter.Store(1)

	m := New(es.wsURL(), "secret", fastOpts()...)
	m.Start()
	defer m.Stop()

	m.SendWindow(&event.WindowInfo{Title: "first", ProcessName: "a", PID: 1})
	es.nextFrame(t)

	// The server dropped the connection; the manager must dial again and
	// deliver subsequent events on the new connection.
	require.Eventually(t, func() bool {
		return es.connects.Load() >= 2 && m.IsConnected()
	}, 5*time.Second, 10*time.Millisecond)

	es.dropAfter.Store(0)
	m.SendWindow(&event.WindowInfo{Title: "second", ProcessName: "b", PID: 2})
	f := es.nextFrame(t)
	var msg windowMessage
	require.NoError(t, json.Unmarshal(f.data, &msg))
	assert.Equal(t, "second", msg.Data.Title)
}

func TestAuthRejectionRecordedAndRetried(t *testing.T) {
	es := newEchoServer(t, "secret")

	m := New(es.wsURL(), "wrong-token", fastOpts()...)
	m.Start()
	defer m.Stop()

	require.Eventually(t, func() bool {
		return strings.Contains(m.LastError(), "authentication rejected")
	}, 5*time.Second, 10*time.Millisecond)
	assert.False(t, m.IsConnected())
}

func TestBufferedEventsFlushInOrderOnConnect(t *testing.T) {
	es := newEchoServer(t, "secret")

	const capacity = 5
	m := New(es.wsURL(), "secret", append(fastOpts(), WithQueueCapacity(capacity))...)

	// Not started yet: everything buffers. capacity+1 events means the very
	// first one is dropped, the rest survive in order.
	for i := 1; i <= capacity+1; i++ {
		m.SendWindow(&event.WindowInfo{Title: fmt.Sprintf("event-%d", i), ProcessName: "p", PID: uint32(i)})
	}
	assert.Equal(t, uint64(1), m.Dropped())

	m.Start()
	defer m.Stop()

	var titles []string
	for i := 0; i < capacity; i++ {
		f := es.nextFrame(t)
		var msg windowMessage
		require.NoError(t, json.Unmarshal(f.data, &msg))
		titles = append(titles, msg.Data.Title)
	}
	assert.Equal(t, []string{"event-2", "event-3", "event-4", "event-5", "event-6"}, titles)
}

func TestBufferedEventsFlushWithoutReadySignal(t *testing.T) {
	es := newEchoServer(t, "secret")
	m := New(es.wsURL(), "secret", fastOpts()...)

	// A drain interrupted by a write failure leaves frames queued with the
	// ready signal already consumed. Reproduce that state and verify the
	// next session still delivers them.
	m.SendWindow(&event.WindowInfo{Title: "first", ProcessName: "a", PID: 1})
	m.SendWindow(&event.WindowInfo{Title: "second", ProcessName: "b", PID: 2})
	<-m.queue.ready()

	m.Start()
	defer m.Stop()

	var titles []string
	for i := 0; i < 2; i++ {
		f := es.nextFrame(t)
		var msg windowMessage
		require.NoError(t, json.Unmarshal(f.data, &msg))
		titles = append(titles, msg.Data.Title)
	}
	assert.Equal(t, []string{"first", "second"}, titles)
}

func TestArtworkUploadAndAck(t *testing.T) {
	es := newEchoServer(t, "secret")
	m := New(es.wsURL(), "secret", fastOpts()...)
	m.Start()
	defer m.Stop()

	artwork := []byte{0x89, 0x50, 0x4e, 0x47}
	media := &event.MediaInfo{
		Title:                 "song",
		Artist:                "artist",
		Playing:               true,
		ArtworkData:           artwork,
		ArtworkMIMEType:       "image/png",
		ContentItemIdentifier: "app:song:album",
	}
	m.SendMedia(media)

	// media_playback, then upload_artwork_meta, then the binary frame.
	f := es.nextFrame(t)
	var mediaMsg mediaMessage
	require.NoError(t, json.Unmarshal(f.data, &mediaMsg))
	assert.Equal(t, msgTypeMediaPlayback, mediaMsg.Type)
	assert.Empty(t, mediaMsg.Metadata.ArtworkURL)

	f = es.nextFrame(t)
	var meta artworkMetaMessage
	require.NoError(t, json.Unmarshal(f.data, &meta))
	assert.Equal(t, msgTypeUploadArtwork, meta.Type)
	assert.Equal(t, "app:song:album", meta.ContentItemIdentifier)
	assert.Equal(t, "image/png", meta.MimeType)

	f = es.nextFrame(t)
	assert.Equal(t, websocket.BinaryMessage, f.messageType)
	assert.Equal(t, artwork, f.data)

	// Server acks; subsequent media messages carry the artwork URL and no
	// second upload happens.
	es.reply(t, serverMessage{
		Type:                  msgTypeArtworkUploaded,
		ContentItemIdentifier: "app:song:album",
		ArtworkURL:            "https://cdn.example/art/1.png",
	})

	require.Eventually(t, func() bool {
		m.SendMedia(media)
		f := es.nextFrame(t)
		var msg mediaMessage
		if err := json.Unmarshal(f.data, &msg); err != nil {
			return false
		}
		return msg.Metadata.ArtworkURL == "https://cdn.example/art/1.png"
	}, 5*time.Second, 50*time.Millisecond)
}

func TestStopIsTerminal(t *testing.T) {
	es := newEchoServer(t, "secret")
	m := New(es.wsURL(), "secret", fastOpts()...)
	m.Start()
	require.Eventually(t, m.IsConnected, 2*time.Second, 10*time.Millisecond)

	m.Stop()
	assert.Equal(t, StateClosed, m.State())
	assert.Equal(t, 0, m.QueueLen())
}
