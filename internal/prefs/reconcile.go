package prefs

// Reconcile computes the effective configuration. A non-nil user layer
// replaces the visitor layer wholesale, then the session's active
// workspace overrides the base default. Pure: no store access, no side
// effects.
func Reconcile(visitor VisitorConfig, user *UserConfig, session SessionConfig) EffectiveConfig {
	base := visitor
	if user != nil {
		base = *user
	}
	base = base.clone()

	active := session.ActiveWorkspace
	if active == "" {
		active = base.DefaultWorkspace
	}

	return EffectiveConfig{
		Theme:            base.Theme,
		SidebarExpanded:  base.SidebarExpanded,
		PanelSizes:       base.PanelSizes,
		ActiveWorkspace:  active,
		DefaultWorkspace: base.DefaultWorkspace,
	}
}
