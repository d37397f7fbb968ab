package prefs

// PlatformQuery reports whether the device-level preference is dark.
// Injected so theme resolution is testable without a real display.
type PlatformQuery func() bool

// ResolveTheme maps a stored theme to the concrete presentational theme.
// "system" resolves through the platform query at application time; the
// stored value is never rewritten. The result is always concrete.
func ResolveTheme(theme Theme, prefersDark PlatformQuery) Theme {
	if theme != ThemeSystem {
		return theme
	}
	if prefersDark != nil && prefersDark() {
		return ThemeDark
	}
	return ThemeWhite
}
