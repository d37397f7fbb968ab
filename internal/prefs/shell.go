package prefs

import (
	"context"
	"log"
	"net/http"
)

// Shell is the root context: it owns the store instances and the
// adapters. Nothing in this package lives at module level, so two
// Shells never share state.
type Shell struct {
	Visitor *VisitorStore
	Session *SessionStore
	User    *UserStore
	Panels  *PanelStore

	local       LocalStore
	remote      Remote
	prefersDark PlatformQuery
	closer      func()
}

// ShellOptions carries the explicit dependencies. Local and Remote may
// be injected directly; otherwise StateDir and BaseURL construct the
// production adapters.
type ShellOptions struct {
	StateDir string
	BaseURL  string

	Local       LocalStore
	Remote      Remote
	Client      *http.Client
	Scheduler   Scheduler
	PrefersDark PlatformQuery
	Logger      *log.Logger
}

func NewShell(opts ShellOptions) *Shell {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	local := opts.Local
	if local == nil {
		local = NewFileStore(opts.StateDir, logger)
	}

	remote := opts.Remote
	var closer func()
	if remote == nil && opts.BaseURL != "" {
		sched := opts.Scheduler
		if sched == nil {
			sched = TimerScheduler{}
		}
		httpRemote := NewHTTPRemote(opts.BaseURL, opts.Client, sched, logger)
		remote = httpRemote
		closer = httpRemote.Close
	}

	return &Shell{
		Visitor:     NewVisitorStore(local, remote, logger),
		Session:     NewSessionStore(local, logger),
		User:        NewUserStore(remote, logger),
		Panels:      NewPanelStore(local, remote, logger),
		local:       local,
		remote:      remote,
		prefersDark: opts.PrefersDark,
		closer:      closer,
	}
}

// Hydrate pulls the authenticated override layer once a session exists.
func (s *Shell) Hydrate(ctx context.Context) error {
	return s.User.Hydrate(ctx)
}

// Effective reconciles the three layers into the current view.
func (s *Shell) Effective() EffectiveConfig {
	return Reconcile(s.Visitor.Read(), s.User.Read(), s.Session.Read())
}

// AppliedTheme is the concrete presentational theme for the current
// effective config.
func (s *Shell) AppliedTheme() Theme {
	return ResolveTheme(s.Effective().Theme, s.prefersDark)
}

// Close drains the background mirrors, then releases the remote
// adapter when the shell constructed it.
func (s *Shell) Close() {
	s.Visitor.mirror.close()
	s.User.mirror.close()
	s.Panels.mirror.close()
	if s.closer != nil {
		s.closer()
	}
}
