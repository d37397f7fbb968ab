package prefs

import (
	"encoding/json"
	"log"
	"sync"
)

// PanelStore mirrors the three-tier pattern for the panel layer: every
// transition persists durably and mirrors the changed fields remotely
// behind the same fresh session probe as the visitor store.
type PanelStore struct {
	local  LocalStore
	mirror *asyncMirror
	logger *log.Logger

	mu      sync.Mutex
	current PanelState
}

func NewPanelStore(local LocalStore, remote Remote, logger *log.Logger) *PanelStore {
	s := &PanelStore{local: local, mirror: newAsyncMirror(remote), logger: logger}
	s.current = seedPanel(local, logger)
	return s
}

func seedPanel(local LocalStore, logger *log.Logger) PanelState {
	defaults := DefaultPanelState()
	raw := local.Load(ScopeDurable, KeyPanelState)
	if raw == nil {
		saveJSON(local, ScopeDurable, KeyPanelState, defaults, logger)
		return defaults
	}
	var stored PanelState
	if err := json.Unmarshal(raw, &stored); err != nil {
		logger.Printf("prefs: panel state unreadable, using defaults: %v", err)
		saveJSON(local, ScopeDurable, KeyPanelState, defaults, logger)
		return defaults
	}
	if stored.ActivePanel != "" && !stored.ActivePanel.Valid() {
		stored.ActivePanel = defaults.ActivePanel
	}
	if !stored.SidebarPosition.Valid() {
		stored.SidebarPosition = defaults.SidebarPosition
	}
	return stored
}

func (s *PanelStore) Read() PanelState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// SetActivePanel activates p unconditionally.
func (s *PanelStore) SetActivePanel(p Panel) {
	s.apply(func(state PanelState) PanelState {
		state.ActivePanel = p
		return state
	}, func(next PanelState) Blob {
		panel := next.ActivePanel
		return Blob{ActivePanel: &panel}
	})
}

// TogglePanel closes p when it is already active, otherwise activates
// it. At most one panel is ever active.
func (s *PanelStore) TogglePanel(p Panel) {
	s.apply(func(state PanelState) PanelState {
		if state.ActivePanel == p {
			state.ActivePanel = ""
		} else {
			state.ActivePanel = p
		}
		return state
	}, func(next PanelState) Blob {
		panel := next.ActivePanel
		return Blob{ActivePanel: &panel}
	})
}

func (s *PanelStore) SetSidebarPosition(side Side) {
	if !side.Valid() {
		return
	}
	s.apply(func(state PanelState) PanelState {
		state.SidebarPosition = side
		return state
	}, func(next PanelState) Blob {
		position := next.SidebarPosition
		return Blob{SidebarPosition: &position}
	})
}

func (s *PanelStore) apply(transform func(PanelState) PanelState, payload func(PanelState) Blob) {
	s.mu.Lock()
	next := transform(s.current)
	s.current = next
	saveJSON(s.local, ScopeDurable, KeyPanelState, next, s.logger)
	s.mu.Unlock()

	s.mirror.push(payload(next))
}
