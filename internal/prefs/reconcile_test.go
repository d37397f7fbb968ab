package prefs

import "testing"

func TestReconcileAnonymousUsesVisitorLayer(t *testing.T) {
	visitor := DefaultVisitorConfig()
	visitor.Theme = ThemeCyan
	visitor.DefaultWorkspace = "dashboard"

	effective := Reconcile(visitor, nil, SessionConfig{})
	if effective.Theme != ThemeCyan {
		t.Errorf("Theme = %q, want cyan", effective.Theme)
	}
	if effective.ActiveWorkspace != "dashboard" {
		t.Errorf("ActiveWorkspace = %q, want default workspace", effective.ActiveWorkspace)
	}
}

func TestReconcileSessionOverridesWorkspace(t *testing.T) {
	visitor := DefaultVisitorConfig()
	visitor.DefaultWorkspace = "dashboard"

	effective := Reconcile(visitor, nil, SessionConfig{ActiveWorkspace: "lab"})
	if effective.ActiveWorkspace != "lab" {
		t.Errorf("ActiveWorkspace = %q, want session override", effective.ActiveWorkspace)
	}
}

func TestReconcileUserLayerIsFullReplace(t *testing.T) {
	visitor := DefaultVisitorConfig()
	visitor.Theme = ThemeCyan
	visitor.SidebarExpanded = true
	visitor.PanelSizes = map[Panel]int{PanelBlog: 420}

	user := DefaultVisitorConfig()
	user.Theme = ThemeOrange
	user.SidebarExpanded = false

	effective := Reconcile(visitor, &user, SessionConfig{})
	if effective.Theme != ThemeOrange {
		t.Errorf("Theme = %q, want user layer theme", effective.Theme)
	}
	if effective.SidebarExpanded {
		t.Error("SidebarExpanded should come from the user layer, not the visitor")
	}
	if len(effective.PanelSizes) != 0 {
		t.Errorf("PanelSizes = %v, full replace must not merge visitor fields", effective.PanelSizes)
	}
}

func TestReconcileUserDefaultWorkspaceWins(t *testing.T) {
	visitor := DefaultVisitorConfig()
	visitor.DefaultWorkspace = "dashboard"
	user := DefaultVisitorConfig()
	user.DefaultWorkspace = "studio"

	effective := Reconcile(visitor, &user, SessionConfig{})
	if effective.ActiveWorkspace != "studio" {
		t.Errorf("ActiveWorkspace = %q, want user default", effective.ActiveWorkspace)
	}
}

func TestReconcileIsPure(t *testing.T) {
	visitor := DefaultVisitorConfig()
	visitor.PanelSizes = map[Panel]int{PanelBlog: 300}

	effective := Reconcile(visitor, nil, SessionConfig{})
	effective.PanelSizes[PanelBlog] = 999

	if visitor.PanelSizes[PanelBlog] != 300 {
		t.Error("mutating the result leaked into the input config")
	}
}
