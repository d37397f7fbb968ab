package prefs

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"
)

const probeTimeout = 5 * time.Second

// asyncMirror runs the session probe and remote push off the mutating
// caller's goroutine. Mutations return as soon as the local write
// lands; payloads drain in call order through a single worker.
type asyncMirror struct {
	remote Remote
	jobs   chan Blob
	wg     sync.WaitGroup
	once   sync.Once
}

func newAsyncMirror(remote Remote) *asyncMirror {
	m := &asyncMirror{remote: remote, jobs: make(chan Blob, 64)}
	if remote != nil {
		go m.drain()
	}
	return m
}

func (m *asyncMirror) drain() {
	for payload := range m.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
		active := m.remote.SessionActive(ctx)
		cancel()
		if active {
			m.remote.Push(payload)
		}
		m.wg.Done()
	}
}

func (m *asyncMirror) push(payload Blob) {
	if m.remote == nil {
		return
	}
	m.wg.Add(1)
	m.jobs <- payload
}

// flush blocks until every queued payload has been probed and, when a
// session was active, handed to the remote.
func (m *asyncMirror) flush() {
	m.wg.Wait()
}

func (m *asyncMirror) close() {
	if m.remote == nil {
		return
	}
	m.once.Do(func() {
		m.wg.Wait()
		close(m.jobs)
	})
}

// VisitorStore is the durable anonymous layer. It seeds once at
// construction: the stored value when present and parseable, else
// defaults written back.
type VisitorStore struct {
	local  LocalStore
	mirror *asyncMirror
	logger *log.Logger

	mu      sync.Mutex
	current VisitorConfig
}

func NewVisitorStore(local LocalStore, remote Remote, logger *log.Logger) *VisitorStore {
	s := &VisitorStore{local: local, mirror: newAsyncMirror(remote), logger: logger}
	s.current = seedVisitor(local, logger)
	return s
}

func seedVisitor(local LocalStore, logger *log.Logger) VisitorConfig {
	defaults := DefaultVisitorConfig()
	raw := local.Load(ScopeDurable, KeyVisitorConfig)
	if raw == nil {
		saveJSON(local, ScopeDurable, KeyVisitorConfig, defaults, logger)
		return defaults
	}
	var stored VisitorConfig
	if err := json.Unmarshal(raw, &stored); err != nil {
		logger.Printf("prefs: visitor config unreadable, using defaults: %v", err)
		saveJSON(local, ScopeDurable, KeyVisitorConfig, defaults, logger)
		return defaults
	}
	if !stored.Theme.Valid() {
		stored.Theme = defaults.Theme
	}
	if stored.PanelSizes == nil {
		stored.PanelSizes = map[Panel]int{}
	}
	if stored.DefaultWorkspace == "" {
		stored.DefaultWorkspace = defaults.DefaultWorkspace
	}
	return stored
}

// Read returns a complete shape; callers may mutate the copy freely.
func (s *VisitorStore) Read() VisitorConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.clone()
}

// Update applies transform under the store lock and persists locally,
// then returns; the caller proceeds on the optimistic local state. A
// fresh session probe runs in the background for every update, and
// when someone is signed in the theme field (only the theme) mirrors
// remotely, always after the local write.
func (s *VisitorStore) Update(transform func(VisitorConfig) VisitorConfig) {
	s.mu.Lock()
	prev := s.current
	next := transform(s.current.clone())
	if !next.Theme.Valid() {
		next.Theme = prev.Theme
	}
	if next.PanelSizes == nil {
		next.PanelSizes = map[Panel]int{}
	}
	s.current = next
	saveJSON(s.local, ScopeDurable, KeyVisitorConfig, next, s.logger)
	s.mu.Unlock()

	theme := next.Theme
	s.mirror.push(Blob{Theme: &theme})
}

// SessionStore lives in the session scope: a fresh process starts empty.
type SessionStore struct {
	local  LocalStore
	logger *log.Logger

	mu      sync.Mutex
	current SessionConfig
}

func NewSessionStore(local LocalStore, logger *log.Logger) *SessionStore {
	s := &SessionStore{local: local, logger: logger}
	s.current = DefaultSessionConfig()
	if raw := local.Load(ScopeSession, KeySessionConfig); raw != nil {
		var stored SessionConfig
		if err := json.Unmarshal(raw, &stored); err != nil {
			logger.Printf("prefs: session config unreadable, using defaults: %v", err)
		} else {
			s.current = stored
		}
	} else {
		saveJSON(local, ScopeSession, KeySessionConfig, s.current, logger)
	}
	return s
}

func (s *SessionStore) Read() SessionConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *SessionStore) Update(transform func(SessionConfig) SessionConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = transform(s.current)
	saveJSON(s.local, ScopeSession, KeySessionConfig, s.current, s.logger)
}

// UserStore holds the authenticated override layer. It starts empty and
// fills from the remote adapter when a session exists.
type UserStore struct {
	remote Remote
	mirror *asyncMirror
	logger *log.Logger

	mu      sync.Mutex
	current *UserConfig
}

func NewUserStore(remote Remote, logger *log.Logger) *UserStore {
	return &UserStore{remote: remote, mirror: newAsyncMirror(remote), logger: logger}
}

// Hydrate fetches the server-side blob. Anonymous visitors clear the
// layer rather than erroring.
func (s *UserStore) Hydrate(ctx context.Context) error {
	if s.remote == nil {
		return nil
	}
	blob, err := s.remote.Fetch(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if blob == nil {
		s.current = nil
		return nil
	}
	config := UserConfigFromBlob(*blob)
	s.current = &config
	return nil
}

// Read returns nil for anonymous visitors.
func (s *UserStore) Read() *UserConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	copied := s.current.clone()
	return &copied
}

func (s *UserStore) Update(transform func(UserConfig) UserConfig) {
	s.mu.Lock()
	base := DefaultVisitorConfig()
	if s.current != nil {
		base = s.current.clone()
	}
	next := transform(base)
	if !next.Theme.Valid() {
		next.Theme = base.Theme
	}
	s.current = &next
	theme := next.Theme
	s.mu.Unlock()

	s.mirror.push(Blob{Theme: &theme})
}

// Clear drops the override layer, e.g. on sign-out.
func (s *UserStore) Clear() {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
}

func saveJSON(local LocalStore, scope Scope, key string, value any, logger *log.Logger) {
	raw, err := json.Marshal(value)
	if err != nil {
		logger.Printf("prefs: marshal %s: %v", key, err)
		return
	}
	local.Save(scope, key, raw)
}
