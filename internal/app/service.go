package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"dec/api/internal/auth"
	"dec/api/internal/config"
	"dec/api/internal/email"
	"dec/api/internal/export"
	"dec/api/internal/gitstore"
	"dec/api/internal/media"
	"dec/api/internal/oauth"
	"dec/api/internal/prefs"
	"dec/api/internal/search"
	"dec/api/internal/secrets"
	"dec/api/internal/session"
	"dec/api/internal/store"
	"dec/api/internal/util"
)

// Session is the authenticated caller attached to a request.
type Session struct {
	Token     string
	UserID    string
	Handle    string
	Role      string
	ExpiresAt time.Time
}

type dataStore interface {
	EnsureUserByLinkedAccount(context.Context, store.LinkedAccount, string) (store.User, error)
	GetUserByID(context.Context, string) (store.User, error)
	GetLinkedAccount(context.Context, string, string) (*store.LinkedAccount, error)
	ListLinkedAccounts(context.Context, string) ([]store.LinkedAccount, error)
	GetPreferences(context.Context, string) (string, error)
	SavePreferences(context.Context, string, string) error
	ResetPreferences(context.Context, string) error
	ListBlogPosts(context.Context, bool) ([]store.BlogPost, error)
	GetBlogPostBySlug(context.Context, string) (store.BlogPost, error)
	UpsertBlogPost(context.Context, store.BlogPost) error
	DeleteBlogPost(context.Context, string) (bool, error)
	ListNotes(context.Context) ([]store.Note, error)
	GetNote(context.Context, string) (store.Note, error)
	UpsertNote(context.Context, store.Note) error
	DeleteNote(context.Context, string) (bool, error)
	InsertAuditEvent(context.Context, store.AuditEvent) error
	ListAuditEvents(context.Context, int) ([]store.AuditEvent, error)
	Ping(context.Context) error
}

// sessionStore is satisfied by the Redis store and by the Postgres
// fallback adapter below.
type sessionStore interface {
	Save(ctx context.Context, tokenHash string, sess store.WebSession) error
	Lookup(ctx context.Context, tokenHash string) (store.WebSession, error)
	Revoke(ctx context.Context, tokenHash string) error
}

type contentRepo interface {
	SavePost(slug, markdown, author, message string) (gitstore.CommitInfo, error)
	SaveNote(noteID, markdown, author, message string) (gitstore.CommitInfo, error)
	RemovePost(slug, author string) (gitstore.CommitInfo, error)
	RemoveNote(noteID, author string) (gitstore.CommitInfo, error)
	PostHistory(slug string, limit int) ([]gitstore.CommitInfo, error)
	PostAt(slug, hash string) (string, error)
}

type searchService interface {
	Search(q search.Query) search.Response
	IndexPost(record search.PostRecord)
	IndexNote(record search.NoteRecord)
	DeletePost(id string)
	DeleteNote(id string)
}

type mediaProxy interface {
	Following(ctx context.Context, account *store.LinkedAccount) ([]media.TwitchChannel, error)
	Recommendations(ctx context.Context, account *store.LinkedAccount) ([]media.YouTubeItem, error)
}

type exporter interface {
	ExportPost(post export.Post) (*export.Result, error)
}

type Service struct {
	cfg       config.Config
	store     dataStore
	sessions  sessionStore
	providers *oauth.Registry
	box       *secrets.Box
	content   contentRepo
	search    searchService
	exporter  exporter
	mailer    *email.Service
	media     mediaProxy
	logger    *log.Logger
}

type Deps struct {
	Store     dataStore
	Sessions  sessionStore
	Providers *oauth.Registry
	Box       *secrets.Box
	Content   contentRepo
	Search    searchService
	Exporter  exporter
	Mailer    *email.Service
	Media     mediaProxy
	Logger    *log.Logger
}

func New(cfg config.Config, deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		cfg:       cfg,
		store:     deps.Store,
		sessions:  deps.Sessions,
		providers: deps.Providers,
		box:       deps.Box,
		content:   deps.Content,
		search:    deps.Search,
		exporter:  deps.Exporter,
		mailer:    deps.Mailer,
		media:     deps.Media,
		logger:    logger,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) SMTPConfigured() bool {
	return s.mailer != nil && s.mailer.IsConfigured()
}

// --- OAuth sign-in ---

const stateTTL = 10 * time.Minute

// LoginURL returns the provider consent URL carrying a signed state.
func (s *Service) LoginURL(providerName, redirect string) (string, error) {
	provider, err := s.providers.Get(providerName)
	if err != nil {
		return "", domainError(http.StatusNotFound, "UNKNOWN_PROVIDER", "Unknown provider", nil)
	}
	state, err := auth.IssueState([]byte(s.cfg.SessionSecret), auth.StateClaims{
		Provider: providerName,
		Nonce:    util.NewID(""),
		Redirect: sanitizeRedirect(redirect),
		Exp:      time.Now().Add(stateTTL).Unix(),
	})
	if err != nil {
		return "", fmt.Errorf("issue oauth state: %w", err)
	}
	return provider.AuthCodeURL(state), nil
}

// CompleteOAuth exchanges the callback code, links or creates the user,
// and opens a web session. The returned string is the post-login redirect.
func (s *Service) CompleteOAuth(ctx context.Context, providerName, state, code string) (Session, string, error) {
	claims, err := auth.ParseState([]byte(s.cfg.SessionSecret), state)
	if err != nil || claims.Provider != providerName {
		return Session{}, "", domainError(http.StatusUnauthorized, "INVALID_STATE", "OAuth state invalid or expired", nil)
	}

	provider, err := s.providers.Get(providerName)
	if err != nil {
		return Session{}, "", domainError(http.StatusNotFound, "UNKNOWN_PROVIDER", "Unknown provider", nil)
	}

	token, err := provider.Exchange(ctx, code)
	if err != nil {
		return Session{}, "", domainError(http.StatusUnauthorized, "EXCHANGE_FAILED", "Code exchange failed", nil)
	}
	profile, err := provider.FetchProfile(ctx, token)
	if err != nil {
		return Session{}, "", fmt.Errorf("fetch %s profile: %w", providerName, err)
	}

	accessSealed, err := s.box.Seal(token.AccessToken)
	if err != nil {
		return Session{}, "", fmt.Errorf("seal access token: %w", err)
	}
	var refreshSealed []byte
	if token.RefreshToken != "" {
		refreshSealed, err = s.box.Seal(token.RefreshToken)
		if err != nil {
			return Session{}, "", fmt.Errorf("seal refresh token: %w", err)
		}
	}

	metadata, _ := json.Marshal(map[string]string{
		"handle":     profile.Handle,
		"name":       profile.Name,
		"email":      profile.Email,
		"avatar_url": profile.AvatarURL,
	})

	user, err := s.store.EnsureUserByLinkedAccount(ctx, store.LinkedAccount{
		Provider:           providerName,
		ProviderUserID:     profile.ProviderUserID,
		AccessTokenSealed:  accessSealed,
		RefreshTokenSealed: refreshSealed,
		MetadataJSON:       string(metadata),
	}, profile.Handle)
	if err != nil {
		return Session{}, "", fmt.Errorf("ensure user: %w", err)
	}

	sess, err := s.openSession(ctx, user)
	if err != nil {
		return Session{}, "", err
	}

	s.recordAudit(ctx, &user.ID, "auth.login", map[string]any{"provider": providerName})

	redirect := claims.Redirect
	if redirect == "" {
		redirect = "/"
	}
	return sess, redirect, nil
}

func (s *Service) openSession(ctx context.Context, user store.User) (Session, error) {
	token := util.NewID("sess")
	expiresAt := time.Now().Add(s.cfg.SessionTTL)
	record := store.WebSession{
		UserID:    user.ID,
		Handle:    user.Handle,
		Role:      user.Role,
		CreatedAt: time.Now(),
		ExpiresAt: expiresAt,
	}
	if err := s.sessions.Save(ctx, auth.HashToken(token), record); err != nil {
		return Session{}, fmt.Errorf("save session: %w", err)
	}
	return Session{
		Token:     token,
		UserID:    user.ID,
		Handle:    user.Handle,
		Role:      user.Role,
		ExpiresAt: expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	record, err := s.sessions.Lookup(ctx, auth.HashToken(token))
	if err != nil {
		return Session{}, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
	}
	return Session{
		Token:     token,
		UserID:    record.UserID,
		Handle:    record.Handle,
		Role:      record.Role,
		ExpiresAt: record.ExpiresAt,
	}, nil
}

func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.sessions.Revoke(ctx, auth.HashToken(token)); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// UserImage returns the avatar URL from the first linked account that
// carries one, or "" for users without one.
func (s *Service) UserImage(ctx context.Context, userID string) string {
	accounts, err := s.store.ListLinkedAccounts(ctx, userID)
	if err != nil {
		return ""
	}
	for _, account := range accounts {
		var meta struct {
			AvatarURL string `json:"avatar_url"`
		}
		if json.Unmarshal([]byte(account.MetadataJSON), &meta) == nil && meta.AvatarURL != "" {
			return meta.AvatarURL
		}
	}
	return ""
}

// sanitizeRedirect keeps post-login redirects on this origin.
func sanitizeRedirect(redirect string) string {
	if redirect == "" || !strings.HasPrefix(redirect, "/") || strings.HasPrefix(redirect, "//") {
		return "/"
	}
	return redirect
}

// --- Preferences ---

// PreferencePatch carries the partial preference payload clients push.
// Absent fields leave the stored value untouched.
type PreferencePatch struct {
	Theme           *string `json:"theme"`
	SidebarPosition *string `json:"sidebarPosition"`
	ActivePanel     *string `json:"activePanel"`
}

func (p PreferencePatch) validate() error {
	var invalid []string
	if p.Theme != nil && !prefs.Theme(*p.Theme).Valid() {
		invalid = append(invalid, "theme")
	}
	if p.SidebarPosition != nil && !prefs.Side(*p.SidebarPosition).Valid() {
		invalid = append(invalid, "sidebarPosition")
	}
	if p.ActivePanel != nil && *p.ActivePanel != "" && !prefs.Panel(*p.ActivePanel).Valid() {
		invalid = append(invalid, "activePanel")
	}
	if len(invalid) > 0 {
		return domainError(http.StatusUnprocessableEntity, "INVALID_PREFERENCE", "Invalid preference value", map[string]any{"fields": invalid})
	}
	return nil
}

func (s *Service) Preferences(ctx context.Context, userID string) (json.RawMessage, error) {
	blob, err := s.store.GetPreferences(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load preferences: %w", err)
	}
	return json.RawMessage(blob), nil
}

// UpdatePreferences merges the patch into the stored blob and returns the
// merged result.
func (s *Service) UpdatePreferences(ctx context.Context, userID string, patch PreferencePatch) (json.RawMessage, error) {
	if err := patch.validate(); err != nil {
		return nil, err
	}

	stored, err := s.store.GetPreferences(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load preferences: %w", err)
	}
	merged := map[string]any{}
	if err := json.Unmarshal([]byte(stored), &merged); err != nil {
		merged = map[string]any{}
	}
	if patch.Theme != nil {
		merged["theme"] = *patch.Theme
	}
	if patch.SidebarPosition != nil {
		merged["sidebarPosition"] = *patch.SidebarPosition
	}
	if patch.ActivePanel != nil {
		if *patch.ActivePanel == "" {
			delete(merged, "activePanel")
		} else {
			merged["activePanel"] = *patch.ActivePanel
		}
	}

	encoded, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("encode preferences: %w", err)
	}
	if err := s.store.SavePreferences(ctx, userID, string(encoded)); err != nil {
		return nil, err
	}
	return json.RawMessage(encoded), nil
}

func (s *Service) ResetPreferences(ctx context.Context, userID string) error {
	if err := s.store.ResetPreferences(ctx, userID); err != nil {
		return err
	}
	s.recordAudit(ctx, &userID, "preferences.reset", nil)
	return nil
}

// --- Media proxies ---

func (s *Service) TwitchFollowing(ctx context.Context, userID string) ([]media.TwitchChannel, error) {
	account, err := s.linkedAccount(ctx, userID, "twitch")
	if err != nil {
		return nil, err
	}
	channels, err := s.media.Following(ctx, account)
	if err != nil {
		return nil, mapUpstreamError(err)
	}
	return channels, nil
}

func (s *Service) YouTubeRecommendations(ctx context.Context, userID string) ([]media.YouTubeItem, error) {
	account, err := s.linkedAccount(ctx, userID, "google")
	if err != nil {
		return nil, err
	}
	items, err := s.media.Recommendations(ctx, account)
	if err != nil {
		return nil, mapUpstreamError(err)
	}
	return items, nil
}

func (s *Service) linkedAccount(ctx context.Context, userID, provider string) (*store.LinkedAccount, error) {
	account, err := s.store.GetLinkedAccount(ctx, userID, provider)
	if err != nil {
		return nil, fmt.Errorf("load linked account: %w", err)
	}
	if account == nil {
		return nil, domainError(http.StatusNotFound, "NOT_LINKED", "No linked "+provider+" account", nil)
	}
	return account, nil
}

func mapUpstreamError(err error) error {
	if errors.Is(err, media.ErrUpstreamAuth) {
		return domainError(http.StatusBadGateway, "UPSTREAM_AUTH", "Provider rejected the stored token, relink the account", nil)
	}
	return err
}

// --- Contact ---

func (s *Service) Contact(ctx context.Context, data email.ContactData) error {
	if !s.SMTPConfigured() || s.cfg.ContactTo == "" {
		return domainError(http.StatusServiceUnavailable, "CONTACT_UNAVAILABLE", "Contact form is not configured", nil)
	}
	data.Name = strings.TrimSpace(data.Name)
	data.Email = strings.TrimSpace(data.Email)
	data.Message = strings.TrimSpace(data.Message)
	if data.Name == "" || data.Message == "" {
		return domainError(http.StatusBadRequest, "INVALID_BODY", "Name and message are required", nil)
	}
	if err := s.mailer.SendContactMessage(s.cfg.ContactTo, data); err != nil {
		return fmt.Errorf("send contact message: %w", err)
	}
	s.recordAudit(ctx, nil, "contact.sent", map[string]any{"from": data.Email})
	return nil
}

// --- Audit ---

func (s *Service) AuditEvents(ctx context.Context, limit int) ([]store.AuditEvent, error) {
	return s.store.ListAuditEvents(ctx, limit)
}

func (s *Service) recordAudit(ctx context.Context, userID *string, eventType string, details map[string]any) {
	encoded := "{}"
	if len(details) > 0 {
		if raw, err := json.Marshal(details); err == nil {
			encoded = string(raw)
		}
	}
	event := store.AuditEvent{
		ID:          util.NewUUID(),
		UserID:      userID,
		EventType:   eventType,
		DetailsJSON: encoded,
	}
	if err := s.store.InsertAuditEvent(ctx, event); err != nil {
		s.logger.Printf("audit insert failed for %s: %v", eventType, err)
	}
}

// --- Postgres session fallback ---

// PostgresSessions adapts the relational store to the session interface
// for deployments without Redis.
type PostgresSessions struct {
	store *store.PostgresStore
}

func NewPostgresSessions(st *store.PostgresStore) *PostgresSessions {
	return &PostgresSessions{store: st}
}

func (p *PostgresSessions) Save(ctx context.Context, tokenHash string, sess store.WebSession) error {
	return p.store.SaveSession(ctx, tokenHash, sess.UserID, sess.ExpiresAt)
}

func (p *PostgresSessions) Lookup(ctx context.Context, tokenHash string) (store.WebSession, error) {
	sess, err := p.store.LookupSession(ctx, tokenHash)
	if errors.Is(err, sql.ErrNoRows) {
		return store.WebSession{}, session.ErrNotFound
	}
	if err != nil {
		return store.WebSession{}, err
	}
	return sess, nil
}

func (p *PostgresSessions) Revoke(ctx context.Context, tokenHash string) error {
	return p.store.DeleteSession(ctx, tokenHash)
}
