package prefs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// DebounceWindow is how long a preference push can be superseded before
// it goes on the wire.
const DebounceWindow = time.Second

// Remote is the preference sync boundary. Push is fire-and-forget: it
// never blocks the mutation that triggered it and never surfaces
// failures to it.
type Remote interface {
	Fetch(ctx context.Context) (*Blob, error)
	SessionActive(ctx context.Context) bool
	Push(blob Blob)
}

// HTTPRemote talks to the preferences API. Pushes collapse through a
// single-slot debouncer and then drain through one background goroutine.
type HTTPRemote struct {
	baseURL  string
	client   *http.Client
	logger   *log.Logger
	debounce *Debouncer

	queue    chan Blob
	done     sync.WaitGroup
	failures atomic.Int64

	mu     sync.Mutex
	closed bool
}

func NewHTTPRemote(baseURL string, client *http.Client, sched Scheduler, logger *log.Logger) *HTTPRemote {
	if client == nil {
		client = http.DefaultClient
	}
	r := &HTTPRemote{
		baseURL:  baseURL,
		client:   client,
		logger:   logger,
		debounce: NewDebouncer(DebounceWindow, sched),
		queue:    make(chan Blob, 16),
	}
	r.done.Add(1)
	go r.drain()
	return r
}

func (r *HTTPRemote) Fetch(ctx context.Context) (*Blob, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/api/user/preferences", nil)
	if err != nil {
		return nil, fmt.Errorf("build preferences request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch preferences: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("preferences returned status %d", resp.StatusCode)
	}

	var payload struct {
		Preferences Blob `json:"preferences"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode preferences: %w", err)
	}
	return &payload.Preferences, nil
}

func (r *HTTPRemote) SessionActive(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/api/auth/session", nil)
	if err != nil {
		return false
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}

	var payload struct {
		User *struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return false
	}
	return payload.User != nil
}

// Push schedules blob for delivery. Pushes inside the debounce window
// replace each other; only the latest payload is sent.
func (r *HTTPRemote) Push(blob Blob) {
	r.debounce.Trigger(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.closed {
			return
		}
		select {
		case r.queue <- blob:
		default:
			r.failures.Add(1)
			r.logger.Printf("prefs: push queue full, dropping payload")
		}
	})
}

// Failures reports how many pushes were dropped or rejected. Pushes are
// never retried.
func (r *HTTPRemote) Failures() int64 {
	return r.failures.Load()
}

// Close drops any pending debounced push and waits for in-flight sends.
func (r *HTTPRemote) Close() {
	r.debounce.Stop()
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()
	r.done.Wait()
}

func (r *HTTPRemote) drain() {
	defer r.done.Done()
	for blob := range r.queue {
		if err := r.send(blob); err != nil {
			r.failures.Add(1)
			r.logger.Printf("prefs: push failed: %v", err)
		}
	}
}

func (r *HTTPRemote) send(blob Blob) error {
	body, err := json.Marshal(map[string]Blob{"preferences": blob})
	if err != nil {
		return fmt.Errorf("marshal preferences: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/api/user/preferences", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("post preferences: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("push returned status %d", resp.StatusCode)
	}
	return nil
}
