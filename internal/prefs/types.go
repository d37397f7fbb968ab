// Package prefs implements the layered configuration model behind the
// site shell: an anonymous durable visitor layer, an ephemeral session
// layer, and an authenticated user override layer, reconciled into one
// effective view and mirrored to the preferences API with a debounce.
package prefs

type Theme string

const (
	ThemeCyan   Theme = "cyan"
	ThemePurple Theme = "purple"
	ThemeOrange Theme = "orange"
	ThemeWhite  Theme = "white"
	ThemeDark   Theme = "dark"
	// ThemeSystem defers to the platform preference at application time.
	// It is stored as-is and never rewritten to a concrete theme.
	ThemeSystem Theme = "system"
)

func (t Theme) Valid() bool {
	switch t {
	case ThemeCyan, ThemePurple, ThemeOrange, ThemeWhite, ThemeDark, ThemeSystem:
		return true
	}
	return false
}

type Panel string

const (
	PanelAbout      Panel = "about"
	PanelBlog       Panel = "blog"
	PanelEdit       Panel = "edit"
	PanelMedia      Panel = "media"
	PanelContact    Panel = "contact"
	PanelTerminal   Panel = "terminal"
	PanelProjects   Panel = "projects"
	PanelExcalidraw Panel = "excalidraw"
	PanelSettings   Panel = "settings"
)

func (p Panel) Valid() bool {
	switch p {
	case PanelAbout, PanelBlog, PanelEdit, PanelMedia, PanelContact,
		PanelTerminal, PanelProjects, PanelExcalidraw, PanelSettings:
		return true
	}
	return false
}

type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

func (s Side) Valid() bool {
	return s == SideLeft || s == SideRight
}

// VisitorConfig is the anonymous, durable configuration layer.
type VisitorConfig struct {
	Theme            Theme         `json:"theme"`
	SidebarExpanded  bool          `json:"sidebarExpanded"`
	PanelSizes       map[Panel]int `json:"panelSizes"`
	DefaultWorkspace string        `json:"defaultWorkspace"`
}

func DefaultVisitorConfig() VisitorConfig {
	return VisitorConfig{
		Theme:            ThemeSystem,
		SidebarExpanded:  true,
		PanelSizes:       map[Panel]int{},
		DefaultWorkspace: "dashboard",
	}
}

func (c VisitorConfig) clone() VisitorConfig {
	sizes := make(map[Panel]int, len(c.PanelSizes))
	for panel, px := range c.PanelSizes {
		sizes[panel] = px
	}
	c.PanelSizes = sizes
	return c
}

// UserConfig is the authenticated override layer. It shares the visitor
// shape; a nil value means anonymous.
type UserConfig = VisitorConfig

// SessionConfig lives for a single browsing session. An empty
// ActiveWorkspace means no override.
type SessionConfig struct {
	ActiveWorkspace string `json:"activeWorkspace"`
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{}
}

// EffectiveConfig is derived, never stored.
type EffectiveConfig struct {
	Theme            Theme
	SidebarExpanded  bool
	PanelSizes       map[Panel]int
	ActiveWorkspace  string
	DefaultWorkspace string
}

// PanelState tracks which panel is open and where the sidebar docks.
// An empty ActivePanel means no panel is open.
type PanelState struct {
	ActivePanel     Panel `json:"activePanel"`
	SidebarPosition Side  `json:"sidebarPosition"`
}

func DefaultPanelState() PanelState {
	return PanelState{ActivePanel: PanelAbout, SidebarPosition: SideLeft}
}

// Blob is the partial preference shape exchanged with the server. Nil
// fields are absent from the wire payload.
type Blob struct {
	Theme           *Theme `json:"theme,omitempty"`
	SidebarPosition *Side  `json:"sidebarPosition,omitempty"`
	ActivePanel     *Panel `json:"activePanel,omitempty"`
}

// UserConfigFromBlob lifts a fetched partial blob onto the full visitor
// shape so the reconciler can treat it as a complete override layer.
func UserConfigFromBlob(blob Blob) UserConfig {
	config := DefaultVisitorConfig()
	if blob.Theme != nil && blob.Theme.Valid() {
		config.Theme = *blob.Theme
	}
	return config
}
