package dispatch

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shikenmatrix/reporter/internal/event"
)

func TestEmitWithoutRegistrationDrops(t *testing.T) {
	r := NewRegistry()
	// Must not panic or block.
	r.EmitLog(event.LevelInfo, "hello")
	r.EmitWindow(&event.WindowInfo{Title: "a"})
	r.EmitMedia(&event.MediaInfo{Title: "b"})
}

func TestContextThreadedBackUnmodified(t *testing.T) {
	r := NewRegistry()
	var gotUser uintptr
	var gotTitle string
	r.SetWindow(func(info *event.WindowInfo, user uintptr) {
		gotUser = user
		gotTitle = info.Title
	}, 0xdeadbeef)

	r.EmitWindow(&event.WindowInfo{Title: "editor"})
	assert.Equal(t, uintptr(0xdeadbeef), gotUser)
	assert.Equal(t, "editor", gotTitle)
}

func TestReplacementIsAtomic(t *testing.T) {
	r := NewRegistry()

	// Old and new callbacks record which context they were paired with; a
	// torn registration would show a mismatch between callback and context.
	var mu sync.Mutex
	deliveries := make(map[string]uintptr)

	r.SetLog(func(_ event.LogLevel, _ string, user uintptr) {
		mu.Lock()
		deliveries["old"] = user
		mu.Unlock()
	}, 1)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				r.EmitLog(event.LevelInfo, "tick")
			}
		}
	}()

	r.SetLog(func(_ event.LogLevel, _ string, user uintptr) {
		mu.Lock()
		deliveries["new"] = user
		mu.Unlock()
	}, 2)
	r.EmitLog(event.LevelInfo, "after replace")
	close(stop)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if u, ok := deliveries["old"]; ok {
		assert.Equal(t, uintptr(1), u)
	}
	assert.Equal(t, uintptr(2), deliveries["new"])
}

func TestUnregisterStopsDelivery(t *testing.T) {
	r := NewRegistry()
	calls := 0
	r.SetMedia(func(*event.MediaInfo, uintptr) { calls++ }, 0)
	r.EmitMedia(&event.MediaInfo{})
	r.SetMedia(nil, 0)
	r.EmitMedia(&event.MediaInfo{})
	assert.Equal(t, 1, calls)
}

func TestReentrantRegistrationDoesNotDeadlock(t *testing.T) {
	r := NewRegistry()
	reentered := false
	r.SetWindow(func(*event.WindowInfo, uintptr) {
		// Re-registering from inside a callback must not deadlock.
		r.SetWindow(func(*event.WindowInfo, uintptr) { reentered = true }, 0)
	}, 0)

	r.EmitWindow(&event.WindowInfo{})
	r.EmitWindow(&event.WindowInfo{})
	assert.True(t, reentered)
}
