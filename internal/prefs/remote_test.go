package prefs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

type capturedPush struct {
	mu      sync.Mutex
	bodies  []Blob
	session bool
}

func (c *capturedPush) handler(t *testing.T) http.Handler {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/session", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		c.mu.Lock()
		active := c.session
		c.mu.Unlock()
		if active {
			_, _ = w.Write([]byte(`{"user":{"id":"u1","name":"dec","role":"admin"}}`))
			return
		}
		_, _ = w.Write([]byte(`{}`))
	})
	mux.HandleFunc("/api/user/preferences", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"preferences":{"theme":"orange"}}`))
			return
		}
		var payload struct {
			Preferences Blob `json:"preferences"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode push body: %v", err)
		}
		c.mu.Lock()
		c.bodies = append(c.bodies, payload.Preferences)
		c.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true}`))
	})
	return mux
}

func (c *capturedPush) pushed() []Blob {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Blob(nil), c.bodies...)
}

func TestDebounceCollapsesBurstsToLastPayload(t *testing.T) {
	captured := &capturedPush{session: true}
	srv := httptest.NewServer(captured.handler(t))
	defer srv.Close()

	sched := &manualScheduler{}
	remote := NewHTTPRemote(srv.URL, srv.Client(), sched, testLogger())

	// Three pushes inside the window: each re-arms the single slot.
	cyan, purple, orange := ThemeCyan, ThemePurple, ThemeOrange
	remote.Push(Blob{Theme: &cyan})
	remote.Push(Blob{Theme: &purple})
	remote.Push(Blob{Theme: &orange})

	if got := sched.PendingCount(); got != 1 {
		t.Fatalf("pending slots = %d, want the latest only", got)
	}

	sched.Fire()
	remote.Close()

	pushes := captured.pushed()
	if len(pushes) != 1 {
		t.Fatalf("server saw %d pushes, want exactly 1", len(pushes))
	}
	if pushes[0].Theme == nil || *pushes[0].Theme != ThemeOrange {
		t.Fatalf("delivered payload = %+v, want the last call's", pushes[0])
	}
}

func TestVisitorBurstTriggersOnePush(t *testing.T) {
	captured := &capturedPush{session: true}
	srv := httptest.NewServer(captured.handler(t))
	defer srv.Close()

	sched := &manualScheduler{}
	remote := NewHTTPRemote(srv.URL, srv.Client(), sched, testLogger())
	store := NewVisitorStore(NewFileStore(t.TempDir(), testLogger()), remote, testLogger())

	store.Update(func(c VisitorConfig) VisitorConfig { c.Theme = ThemeCyan; return c })
	store.Update(func(c VisitorConfig) VisitorConfig { c.Theme = ThemePurple; return c })
	store.Update(func(c VisitorConfig) VisitorConfig { c.Theme = ThemeDark; return c })
	store.mirror.flush()

	sched.Fire()
	remote.Close()

	pushes := captured.pushed()
	if len(pushes) != 1 {
		t.Fatalf("server saw %d pushes, want 1", len(pushes))
	}
	if pushes[0].Theme == nil || *pushes[0].Theme != ThemeDark {
		t.Fatalf("delivered payload = %+v", pushes[0])
	}
}

func TestFetchReturnsNilWhenUnauthenticated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	remote := NewHTTPRemote(srv.URL, srv.Client(), &manualScheduler{}, testLogger())
	defer remote.Close()

	blob, err := remote.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v, want nil for 401", err)
	}
	if blob != nil {
		t.Fatalf("Fetch() = %+v, want nil", blob)
	}
}

func TestFetchDecodesPreferences(t *testing.T) {
	captured := &capturedPush{session: true}
	srv := httptest.NewServer(captured.handler(t))
	defer srv.Close()

	remote := NewHTTPRemote(srv.URL, srv.Client(), &manualScheduler{}, testLogger())
	defer remote.Close()

	blob, err := remote.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if blob == nil || blob.Theme == nil || *blob.Theme != ThemeOrange {
		t.Fatalf("Fetch() = %+v", blob)
	}
}

func TestSessionActiveProbe(t *testing.T) {
	captured := &capturedPush{}
	srv := httptest.NewServer(captured.handler(t))
	defer srv.Close()

	remote := NewHTTPRemote(srv.URL, srv.Client(), &manualScheduler{}, testLogger())
	defer remote.Close()

	if remote.SessionActive(context.Background()) {
		t.Error("SessionActive() = true for empty session payload")
	}
	captured.mu.Lock()
	captured.session = true
	captured.mu.Unlock()
	if !remote.SessionActive(context.Background()) {
		t.Error("SessionActive() = false for signed-in payload")
	}
}

func TestPushFailureCountsAndNeverRetries(t *testing.T) {
	var posts int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		posts++
		mu.Unlock()
		http.Error(w, `{"error":"boom"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	sched := &manualScheduler{}
	remote := NewHTTPRemote(srv.URL, srv.Client(), sched, testLogger())

	theme := ThemeCyan
	remote.Push(Blob{Theme: &theme})
	sched.Fire()
	remote.Close()

	mu.Lock()
	defer mu.Unlock()
	if posts != 1 {
		t.Fatalf("posts = %d, failed pushes must not retry", posts)
	}
	if remote.Failures() != 1 {
		t.Fatalf("Failures() = %d", remote.Failures())
	}
}
