package prefs

import (
	"context"
	"io"
	"log"
	"sync"
	"time"
)

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// manualScheduler runs scheduled callbacks only when Fire is called, so
// debounce behavior is deterministic.
type manualScheduler struct {
	mu      sync.Mutex
	pending []*scheduledCall
}

type scheduledCall struct {
	fn        func()
	cancelled bool
}

func (m *manualScheduler) Schedule(_ time.Duration, fn func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	call := &scheduledCall{fn: fn}
	m.pending = append(m.pending, call)
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		call.cancelled = true
	}
}

// Fire runs every pending callback that was not cancelled.
func (m *manualScheduler) Fire() {
	m.mu.Lock()
	calls := m.pending
	m.pending = nil
	m.mu.Unlock()
	for _, call := range calls {
		m.mu.Lock()
		cancelled := call.cancelled
		m.mu.Unlock()
		if !cancelled {
			call.fn()
		}
	}
}

func (m *manualScheduler) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, call := range m.pending {
		if !call.cancelled {
			count++
		}
	}
	return count
}

// fakeRemote records pushes synchronously.
type fakeRemote struct {
	fetchFn  func(ctx context.Context) (*Blob, error)
	activeFn func(ctx context.Context) bool

	mu     sync.Mutex
	pushes []Blob
	probes int
}

func (f *fakeRemote) Fetch(ctx context.Context) (*Blob, error) {
	if f.fetchFn == nil {
		return nil, nil
	}
	return f.fetchFn(ctx)
}

func (f *fakeRemote) SessionActive(ctx context.Context) bool {
	f.mu.Lock()
	f.probes++
	f.mu.Unlock()
	if f.activeFn == nil {
		return false
	}
	return f.activeFn(ctx)
}

func (f *fakeRemote) Push(blob Blob) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushes = append(f.pushes, blob)
}

func (f *fakeRemote) Pushes() []Blob {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Blob(nil), f.pushes...)
}

func (f *fakeRemote) Probes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.probes
}
