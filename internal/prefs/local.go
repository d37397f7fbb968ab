package prefs

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// Scope selects which of the two client-side stores a key lives in.
type Scope int

const (
	// ScopeDurable survives restarts: one JSON file per key under the
	// state directory.
	ScopeDurable Scope = iota
	// ScopeSession lives for the process lifetime only.
	ScopeSession
)

// Fixed storage keys. Changing one orphans previously written state, so
// they carry an explicit version suffix.
const (
	KeyVisitorConfig = "dec_visitor_config_v1"
	KeySessionConfig = "dec_session_config_v1"
	KeyPanelState    = "dec_panel_state_v1"
)

// LocalStore is the persistence boundary for the config stores. It never
// returns errors: corrupt or unreadable data reads as nil and failed
// writes log, so a bad disk can degrade preferences but not break them.
type LocalStore interface {
	Load(scope Scope, key string) []byte
	Save(scope Scope, key string, value []byte)
}

// FileStore keeps durable keys as files and session keys in memory.
type FileStore struct {
	dir    string
	logger *log.Logger

	mu      sync.Mutex
	session map[string][]byte
}

func NewFileStore(dir string, logger *log.Logger) *FileStore {
	return &FileStore{
		dir:     dir,
		logger:  logger,
		session: make(map[string][]byte),
	}
}

func (s *FileStore) Load(scope Scope, key string) []byte {
	if scope == ScopeSession {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.session[key]
	}

	raw, err := os.ReadFile(s.path(key))
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Printf("prefs: read %s: %v", key, err)
		}
		return nil
	}
	if !json.Valid(raw) {
		s.logger.Printf("prefs: discarding corrupt value for %s", key)
		return nil
	}
	return raw
}

func (s *FileStore) Save(scope Scope, key string, value []byte) {
	if scope == ScopeSession {
		s.mu.Lock()
		s.session[key] = append([]byte(nil), value...)
		s.mu.Unlock()
		return
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		s.logger.Printf("prefs: create state dir: %v", err)
		return
	}
	if err := os.WriteFile(s.path(key), value, 0o644); err != nil {
		s.logger.Printf("prefs: write %s: %v", key, err)
	}
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}
