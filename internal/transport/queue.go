package transport

import "sync"

// frame is one outbound unit: a text payload, optionally followed by a
// binary payload that must go out immediately after it (artwork uploads).
type frame struct {
	text   []byte
	binary []byte
}

// sendQueue buffers outbound frames while the connection is down. It is
// bounded: past capacity the oldest frame is dropped, never the newest, so
// a prolonged outage keeps the freshest state without unbounded growth.
type sendQueue struct {
	mu       sync.Mutex
	items    []frame
	capacity int
	dropped  uint64
	notify   chan struct{}
}

func newSendQueue(capacity int) *sendQueue {
	return &sendQueue{
		capacity: capacity,
		notify:   make(chan struct{}, 1),
	}
}

// push enqueues a frame, evicting the oldest when full.
func (q *sendQueue) push(f frame) {
	q.mu.Lock()
	if len(q.items) >= q.capacity {
		q.items = q.items[1:]
		q.dropped++
	}
	q.items = append(q.items, f)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// pop dequeues the oldest frame. The second return is false when empty.
// While frames remain the ready signal is re-armed, so a consumer that
// stops draining early (write failure) finds a pending signal on return.
func (q *sendQueue) pop() (frame, bool) {
	q.mu.Lock()
	if len(q.items) == 0 {
		q.mu.Unlock()
		return frame{}, false
	}
	f := q.items[0]
	q.items = q.items[1:]
	remaining := len(q.items)
	q.mu.Unlock()

	if remaining > 0 {
		select {
		case q.notify <- struct{}{}:
		default:
		}
	}
	return f, true
}

// ready signals when at least one frame may be pending.
func (q *sendQueue) ready() <-chan struct{} {
	return q.notify
}

func (q *sendQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// discard drops all buffered frames.
func (q *sendQueue) discard() {
	q.mu.Lock()
	q.items = nil
	q.mu.Unlock()
}

// droppedCount reports how many frames were evicted by overflow.
func (q *sendQueue) droppedCount() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
