// Package transport maintains the persistent WebSocket connection to the
// configured endpoint and ships capture-loop events over it.
//
// The connection is driven as an explicit state machine (Disconnected ->
// Connecting -> Connected -> Disconnected | Closing -> Closed) so that Stop
// can interrupt it at any transition. Connect failures feed a capped
// exponential backoff; a successful connect resets it. Outbound events are
// buffered in a bounded oldest-dropped queue while disconnected.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/shikenmatrix/reporter/internal/event"
	"github.com/shikenmatrix/reporter/internal/logger"
)

// State is the connection state machine position.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

const (
	defaultQueueCapacity  = 256
	defaultInitialBackoff = time.Second
	defaultMaxBackoff     = 30 * time.Second
	defaultDialTimeout    = 15 * time.Second
	defaultCloseTimeout   = 3 * time.Second
	writeTimeout          = 10 * time.Second
)

// Option customizes a Manager.
type Option func(*Manager)

// WithBackoff overrides the reconnect backoff bounds.
func WithBackoff(initial, max time.Duration) Option {
	return func(m *Manager) {
		m.initialBackoff = initial
		m.maxBackoff = max
	}
}

// WithQueueCapacity overrides the send buffer capacity.
func WithQueueCapacity(n int) Option {
	return func(m *Manager) {
		m.queue = newSendQueue(n)
	}
}

// WithDialTimeout overrides the per-attempt connect timeout.
func WithDialTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.dialTimeout = d
	}
}

// Manager owns the single logical connection to the endpoint.
type Manager struct {
	endpoint string
	token    string

	queue          *sendQueue
	dialer         *websocket.Dialer
	initialBackoff time.Duration
	maxBackoff     time.Duration
	dialTimeout    time.Duration
	closeTimeout   time.Duration

	state   atomic.Int32
	errMu   sync.Mutex
	lastErr string

	artMu       sync.Mutex
	artworkURLs map[string]string
	artworkSent map[string]bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
	log    *zerolog.Logger
}

// New builds a Manager for the given endpoint. The token is attached at
// connection establishment, as a query pair and an Authorization header.
func New(endpoint, token string, opts ...Option) *Manager {
	m := &Manager{
		endpoint:       endpoint,
		token:          token,
		queue:          newSendQueue(defaultQueueCapacity),
		dialer:         websocket.DefaultDialer,
		initialBackoff: defaultInitialBackoff,
		maxBackoff:     defaultMaxBackoff,
		dialTimeout:    defaultDialTimeout,
		closeTimeout:   defaultCloseTimeout,
		artworkURLs:    make(map[string]string),
		artworkSent:    make(map[string]bool),
		log:            logger.WithComponent("transport"),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.state.Store(int32(StateDisconnected))
	return m
}

// Start launches the connection loop. It returns immediately.
func (m *Manager) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.run(ctx)
	}()
}

// Stop closes the connection gracefully, discards the queue, and waits for
// the loop to exit. Terminal: the Manager cannot be restarted.
func (m *Manager) Stop() {
	m.setState(StateClosing)
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	m.queue.discard()
	m.setState(StateClosed)
	m.log.Info().Msg("Transport stopped")
}

// State returns the current state machine position.
func (m *Manager) State() State {
	return State(m.state.Load())
}

// IsConnected reports whether the connection is live.
func (m *Manager) IsConnected() bool {
	return m.State() == StateConnected
}

// LastError returns the most recent transport error, empty if none.
func (m *Manager) LastError() string {
	m.errMu.Lock()
	defer m.errMu.Unlock()
	return m.lastErr
}

// QueueLen reports the number of buffered frames.
func (m *Manager) QueueLen() int {
	return m.queue.len()
}

// Dropped reports how many frames were evicted by buffer overflow.
func (m *Manager) Dropped() uint64 {
	return m.queue.droppedCount()
}

// SendWindow enqueues a window event. Never blocks; under sustained
// disconnection the oldest buffered event is dropped instead.
func (m *Manager) SendWindow(info *event.WindowInfo) {
	msg := windowMessage{
		Type:      msgTypeWindowInfo,
		Timestamp: time.Now().UnixMilli(),
		Data: windowData{
			Title:       info.Title,
			ProcessName: info.ProcessName,
			AppID:       info.AppID,
			PID:         info.PID,
		},
	}
	data, err := json.Marshal(msg)
	if err != nil {
		m.recordError(fmt.Errorf("failed to encode window message: %w", err))
		return
	}
	m.queue.push(frame{text: data})
}

// SendMedia enqueues a media event, attaching the cached artwork URL when
// the server has acknowledged an upload for this content item, and queuing
// an artwork upload the first time a new item carries artwork bytes.
func (m *Manager) SendMedia(info *event.MediaInfo) {
	m.artMu.Lock()
	artworkURL := m.artworkURLs[info.ContentItemIdentifier]
	needUpload := len(info.ArtworkData) > 0 &&
		info.ContentItemIdentifier != "" &&
		!m.artworkSent[info.ContentItemIdentifier]
	if needUpload {
		m.artworkSent[info.ContentItemIdentifier] = true
	}
	m.artMu.Unlock()

	msg := mediaMessage{
		Type:      msgTypeMediaPlayback,
		Timestamp: time.Now().UnixMilli(),
		Metadata: mediaMetadata{
			BundleIdentifier:      info.BundleIdentifier,
			Title:                 info.Title,
			Artist:                info.Artist,
			Album:                 info.Album,
			Duration:              info.Duration,
			ArtworkURL:            artworkURL,
			ContentItemIdentifier: info.ContentItemIdentifier,
		},
		PlaybackState: playbackState{
			Playing:      info.Playing,
			PlaybackRate: info.PlaybackRate,
			ElapsedTime:  info.ElapsedTime,
		},
	}
	data, err := json.Marshal(msg)
	if err != nil {
		m.recordError(fmt.Errorf("failed to encode media message: %w", err))
		return
	}
	m.queue.push(frame{text: data})

	if needUpload {
		m.enqueueArtwork(info)
	}
}

func (m *Manager) enqueueArtwork(info *event.MediaInfo) {
	meta := artworkMetaMessage{
		Type:                  msgTypeUploadArtwork,
		Timestamp:             time.Now().UnixMilli(),
		ContentItemIdentifier: info.ContentItemIdentifier,
		MimeType:              info.ArtworkMIMEType,
	}
	data, err := json.Marshal(meta)
	if err != nil {
		m.recordError(fmt.Errorf("failed to encode artwork meta: %w", err))
		return
	}
	m.queue.push(frame{text: data, binary: info.ArtworkData})
}

func (m *Manager) setState(s State) {
	m.state.Store(int32(s))
}

func (m *Manager) recordError(err error) {
	m.errMu.Lock()
	m.lastErr = err.Error()
	m.errMu.Unlock()
}

func (m *Manager) dialURL() (string, error) {
	u, err := url.Parse(m.endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint %q: %w", m.endpoint, err)
	}
	q := u.Query()
	q.Set("token", m.token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (m *Manager) run(ctx context.Context) {
	backoff := m.initialBackoff

	for ctx.Err() == nil {
		m.setState(StateConnecting)

		dialURL, err := m.dialURL()
		if err != nil {
			m.recordError(err)
			m.log.Error().Err(err).Msg("Invalid endpoint, transport giving up")
			m.setState(StateDisconnected)
			return
		}

		header := http.Header{}
		if m.token != "" {
			header.Set("Authorization", "Bearer "+m.token)
		}

		dialCtx, cancelDial := context.WithTimeout(ctx, m.dialTimeout)
		conn, resp, err := m.dialer.DialContext(dialCtx, dialURL, header)
		cancelDial()

		if err != nil {
			if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
				err = fmt.Errorf("authentication rejected by endpoint (%d)", resp.StatusCode)
			} else {
				err = fmt.Errorf("connect failed: %w", err)
			}
			m.recordError(err)
			m.log.Error().Err(err).Dur("backoff", backoff).Msg("WebSocket connection failed")
			m.setState(StateDisconnected)
			if !sleepCtx(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff, m.maxBackoff)
			continue
		}

		m.log.Info().Str("endpoint", m.endpoint).Msg("WebSocket connected")
		m.setState(StateConnected)
		backoff = m.initialBackoff

		err = m.session(ctx, conn)
		conn.Close()

		if ctx.Err() != nil {
			return
		}

		m.recordError(err)
		m.log.Warn().Err(err).Msg("WebSocket session ended, reconnecting")
		m.setState(StateDisconnected)
		if !sleepCtx(ctx, backoff) {
			return
		}
		backoff = nextBackoff(backoff, m.maxBackoff)
	}
}

// session pumps the send queue into conn and handles server replies until
// the connection fails or ctx is cancelled.
func (m *Manager) session(ctx context.Context, conn *websocket.Conn) error {
	readErr := make(chan error, 1)
	go m.readLoop(conn, readErr)

	// Frames buffered across a reconnect may carry no pending ready signal;
	// flush them before waiting on one.
	if err := m.flushQueue(conn); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			deadline := time.Now().Add(m.closeTimeout)
			_ = conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				deadline,
			)
			return ctx.Err()
		case err := <-readErr:
			return err
		case <-m.queue.ready():
			if err := m.flushQueue(conn); err != nil {
				return err
			}
		}
	}
}

func (m *Manager) flushQueue(conn *websocket.Conn) error {
	for {
		f, ok := m.queue.pop()
		if !ok {
			return nil
		}
		if err := m.writeFrame(conn, f); err != nil {
			return err
		}
	}
}

func (m *Manager) writeFrame(conn *websocket.Conn, f frame) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, f.text); err != nil {
		return fmt.Errorf("send failed: %w", err)
	}
	if f.binary != nil {
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.BinaryMessage, f.binary); err != nil {
			return fmt.Errorf("binary send failed: %w", err)
		}
	}
	return nil
}

func (m *Manager) readLoop(conn *websocket.Conn, readErr chan<- error) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			readErr <- fmt.Errorf("read failed: %w", err)
			return
		}
		m.handleServerMessage(data)
	}
}

func (m *Manager) handleServerMessage(data []byte) {
	var msg serverMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		m.log.Debug().Err(err).Msg("Ignoring unparseable server message")
		return
	}
	if msg.Type == msgTypeArtworkUploaded && msg.ContentItemIdentifier != "" && msg.ArtworkURL != "" {
		m.artMu.Lock()
		m.artworkURLs[msg.ContentItemIdentifier] = msg.ArtworkURL
		m.artMu.Unlock()
		m.log.Info().Str("content_item", msg.ContentItemIdentifier).Msg("Artwork upload acknowledged")
	}
}

func nextBackoff(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max {
		return max
	}
	return next
}

// sleepCtx waits d, returning false if ctx finishes first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
