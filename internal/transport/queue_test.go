package transport

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueOrderPreserved(t *testing.T) {
	q := newSendQueue(8)
	for i := 0; i < 5; i++ {
		q.push(frame{text: []byte(fmt.Sprintf("msg-%d", i))})
	}
	for i := 0; i < 5; i++ {
		f, ok := q.pop()
		require.True(t, ok)
		assert.Equal(t, fmt.Sprintf("msg-%d", i), string(f.text))
	}
	_, ok := q.pop()
	assert.False(t, ok)
}

func TestQueueDropsOldestOnOverflow(t *testing.T) {
	const capacity = 5
	q := newSendQueue(capacity)

	// capacity+1 pushes: the very first frame must be evicted.
	for i := 1; i <= capacity+1; i++ {
		q.push(frame{text: []byte(fmt.Sprintf("event-%d", i))})
	}

	assert.Equal(t, capacity, q.len())
	assert.Equal(t, uint64(1), q.droppedCount())

	var got []string
	for {
		f, ok := q.pop()
		if !ok {
			break
		}
		got = append(got, string(f.text))
	}
	assert.Equal(t, []string{"event-2", "event-3", "event-4", "event-5", "event-6"}, got)
}

func TestQueueDiscard(t *testing.T) {
	q := newSendQueue(4)
	q.push(frame{text: []byte("a")})
	q.push(frame{text: []byte("b")})
	q.discard()
	assert.Equal(t, 0, q.len())
}

func TestQueueReadySignal(t *testing.T) {
	q := newSendQueue(4)
	select {
	case <-q.ready():
		t.Fatal("ready fired on empty queue")
	default:
	}
	q.push(frame{text: []byte("a")})
	select {
	case <-q.ready():
	default:
		t.Fatal("ready did not fire after push")
	}
}

func TestQueueReadyRearmedWhileFramesRemain(t *testing.T) {
	q := newSendQueue(4)
	q.push(frame{text: []byte("a")})
	q.push(frame{text: []byte("b")})
	<-q.ready()

	// An interrupted drain leaves a frame behind; the next wait on ready
	// must still fire for it.
	_, ok := q.pop()
	require.True(t, ok)
	select {
	case <-q.ready():
	default:
		t.Fatal("ready signal lost with a frame still queued")
	}

	_, ok = q.pop()
	require.True(t, ok)
	select {
	case <-q.ready():
		t.Fatal("ready fired on empty queue")
	default:
	}
}
