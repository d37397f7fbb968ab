package app

import (
	"context"
	"database/sql"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"dec/api/internal/auth"
	"dec/api/internal/config"
	"dec/api/internal/email"
	"dec/api/internal/export"
	"dec/api/internal/gitstore"
	"dec/api/internal/media"
	"dec/api/internal/oauth"
	"dec/api/internal/search"
	"dec/api/internal/secrets"
	"dec/api/internal/session"
	"dec/api/internal/store"
	"dec/api/internal/util"
)

// fakeStore is an in-memory dataStore for handler tests.
type fakeStore struct {
	mu      sync.Mutex
	users   map[string]store.User
	prefs   map[string]string
	linked  map[string]*store.LinkedAccount
	posts   map[string]store.BlogPost
	notes   map[string]store.Note
	audits  []store.AuditEvent
	pingErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:  map[string]store.User{},
		prefs:  map[string]string{},
		linked: map[string]*store.LinkedAccount{},
		posts:  map[string]store.BlogPost{},
		notes:  map[string]store.Note{},
	}
}

func (f *fakeStore) addUser(handle, role string) store.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	user := store.User{ID: util.NewUUID(), Handle: handle, Role: role, CreatedAt: time.Now()}
	f.users[user.ID] = user
	f.prefs[user.ID] = "{}"
	return user
}

func (f *fakeStore) EnsureUserByLinkedAccount(_ context.Context, account store.LinkedAccount, handle string) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.linked {
		if existing.Provider == account.Provider && existing.ProviderUserID == account.ProviderUserID {
			return f.users[existing.UserID], nil
		}
	}
	user := store.User{ID: util.NewUUID(), Handle: handle, Role: "user", CreatedAt: time.Now()}
	f.users[user.ID] = user
	f.prefs[user.ID] = "{}"
	account.UserID = user.ID
	f.linked[user.ID+"/"+account.Provider] = &account
	return user, nil
}

func (f *fakeStore) GetUserByID(_ context.Context, userID string) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return user, nil
}

func (f *fakeStore) GetLinkedAccount(_ context.Context, userID, provider string) (*store.LinkedAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.linked[userID+"/"+provider], nil
}

func (f *fakeStore) ListLinkedAccounts(_ context.Context, userID string) ([]store.LinkedAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var accounts []store.LinkedAccount
	for _, account := range f.linked {
		if account.UserID == userID {
			accounts = append(accounts, *account)
		}
	}
	return accounts, nil
}

func (f *fakeStore) GetPreferences(_ context.Context, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	blob, ok := f.prefs[userID]
	if !ok || blob == "" {
		return "{}", nil
	}
	return blob, nil
}

func (f *fakeStore) SavePreferences(_ context.Context, userID, settingsJSON string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[userID]; !ok {
		return sql.ErrNoRows
	}
	f.prefs[userID] = settingsJSON
	return nil
}

func (f *fakeStore) ResetPreferences(_ context.Context, userID string) error {
	return f.SavePreferences(context.Background(), userID, "{}")
}

func (f *fakeStore) ListBlogPosts(_ context.Context, includeDrafts bool) ([]store.BlogPost, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var posts []store.BlogPost
	for _, post := range f.posts {
		if post.Published || includeDrafts {
			posts = append(posts, post)
		}
	}
	return posts, nil
}

func (f *fakeStore) GetBlogPostBySlug(_ context.Context, slug string) (store.BlogPost, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	post, ok := f.posts[slug]
	if !ok {
		return store.BlogPost{}, sql.ErrNoRows
	}
	return post, nil
}

func (f *fakeStore) UpsertBlogPost(_ context.Context, post store.BlogPost) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.posts[post.Slug]; ok {
		post.CreatedAt = existing.CreatedAt
	} else {
		post.CreatedAt = time.Now()
	}
	post.UpdatedAt = time.Now()
	if user, ok := f.users[post.AuthorUserID]; ok {
		post.AuthorHandle = user.Handle
	}
	f.posts[post.Slug] = post
	return nil
}

func (f *fakeStore) DeleteBlogPost(_ context.Context, slug string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.posts[slug]; !ok {
		return false, nil
	}
	delete(f.posts, slug)
	return true, nil
}

func (f *fakeStore) ListNotes(_ context.Context) ([]store.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var notes []store.Note
	for _, note := range f.notes {
		notes = append(notes, note)
	}
	return notes, nil
}

func (f *fakeStore) GetNote(_ context.Context, noteID string) (store.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	note, ok := f.notes[noteID]
	if !ok {
		return store.Note{}, sql.ErrNoRows
	}
	return note, nil
}

func (f *fakeStore) UpsertNote(_ context.Context, note store.Note) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	note.UpdatedAt = time.Now()
	f.notes[note.ID] = note
	return nil
}

func (f *fakeStore) DeleteNote(_ context.Context, noteID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.notes[noteID]; !ok {
		return false, nil
	}
	delete(f.notes, noteID)
	return true, nil
}

func (f *fakeStore) InsertAuditEvent(_ context.Context, event store.AuditEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audits = append(f.audits, event)
	return nil
}

func (f *fakeStore) ListAuditEvents(_ context.Context, limit int) ([]store.AuditEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if limit <= 0 || limit > len(f.audits) {
		limit = len(f.audits)
	}
	return f.audits[:limit], nil
}

func (f *fakeStore) Ping(context.Context) error {
	return f.pingErr
}

type fakeSessions struct {
	mu       sync.Mutex
	sessions map[string]store.WebSession
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{sessions: map[string]store.WebSession{}}
}

func (f *fakeSessions) Save(_ context.Context, tokenHash string, sess store.WebSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[tokenHash] = sess
	return nil
}

func (f *fakeSessions) Lookup(_ context.Context, tokenHash string) (store.WebSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sess, ok := f.sessions[tokenHash]
	if !ok || time.Now().After(sess.ExpiresAt) {
		return store.WebSession{}, session.ErrNotFound
	}
	return sess, nil
}

func (f *fakeSessions) Revoke(_ context.Context, tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, tokenHash)
	return nil
}

type fakeSearch struct {
	mu       sync.Mutex
	indexed  []search.PostRecord
	notes    []search.NoteRecord
	deleted  []string
	response search.Response
	lastQ    search.Query
}

func (f *fakeSearch) Search(q search.Query) search.Response {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastQ = q
	resp := f.response
	resp.Query = q.Text
	if resp.Results == nil {
		resp.Results = []search.Result{}
	}
	return resp
}

func (f *fakeSearch) IndexPost(record search.PostRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed = append(f.indexed, record)
}

func (f *fakeSearch) IndexNote(record search.NoteRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes = append(f.notes, record)
}

func (f *fakeSearch) DeletePost(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
}

func (f *fakeSearch) DeleteNote(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
}

type fakeContent struct {
	mu      sync.Mutex
	saved   []string
	removed []string
	history []gitstore.CommitInfo
}

func (f *fakeContent) SavePost(slug, markdown, author, message string) (gitstore.CommitInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, "posts/"+slug)
	return gitstore.CommitInfo{Hash: "abc1234", Message: message, Author: author}, nil
}

func (f *fakeContent) SaveNote(noteID, markdown, author, message string) (gitstore.CommitInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, "notes/"+noteID)
	return gitstore.CommitInfo{Hash: "abc1234", Message: message, Author: author}, nil
}

func (f *fakeContent) RemovePost(slug, author string) (gitstore.CommitInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, "posts/"+slug)
	return gitstore.CommitInfo{Hash: "def5678"}, nil
}

func (f *fakeContent) RemoveNote(noteID, author string) (gitstore.CommitInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, "notes/"+noteID)
	return gitstore.CommitInfo{Hash: "def5678"}, nil
}

func (f *fakeContent) PostHistory(slug string, limit int) ([]gitstore.CommitInfo, error) {
	return f.history, nil
}

func (f *fakeContent) PostAt(slug, hash string) (string, error) {
	return "# old content", nil
}

type fakeExporter struct {
	lastPost export.Post
}

func (f *fakeExporter) ExportPost(post export.Post) (*export.Result, error) {
	f.lastPost = post
	return &export.Result{Data: []byte("%PDF-1.4 test"), Filename: "post.pdf", MimeType: "application/pdf"}, nil
}

type fakeMedia struct {
	followingFn func(ctx context.Context, account *store.LinkedAccount) ([]media.TwitchChannel, error)
	recsFn      func(ctx context.Context, account *store.LinkedAccount) ([]media.YouTubeItem, error)
}

func (f *fakeMedia) Following(ctx context.Context, account *store.LinkedAccount) ([]media.TwitchChannel, error) {
	if f.followingFn == nil {
		return nil, nil
	}
	return f.followingFn(ctx, account)
}

func (f *fakeMedia) Recommendations(ctx context.Context, account *store.LinkedAccount) ([]media.YouTubeItem, error) {
	if f.recsFn == nil {
		return nil, nil
	}
	return f.recsFn(ctx, account)
}

type fixture struct {
	store    *fakeStore
	sessions *fakeSessions
	search   *fakeSearch
	content  *fakeContent
	exporter *fakeExporter
	media    *fakeMedia
	mailer   *email.Service
	service  *Service
	server   *HTTPServer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	box, err := secrets.NewBox(secrets.NewHexKey())
	if err != nil {
		t.Fatalf("new box: %v", err)
	}

	f := &fixture{
		store:    newFakeStore(),
		sessions: newFakeSessions(),
		search:   &fakeSearch{},
		content:  &fakeContent{},
		exporter: &fakeExporter{},
		media:    &fakeMedia{},
		mailer:   email.NewService(email.Config{}),
	}
	cfg := config.Config{
		SessionSecret: "test-secret",
		SessionTTL:    time.Hour,
		ContactTo:     "owner@example.com",
	}
	f.service = New(cfg, Deps{
		Store:     f.store,
		Sessions:  f.sessions,
		Providers: oauth.NewRegistry(),
		Box:       box,
		Content:   f.content,
		Search:    f.search,
		Exporter:  f.exporter,
		Mailer:    f.mailer,
		Media:     f.media,
		Logger:    log.New(io.Discard, "", 0),
	})
	f.server = NewHTTPServer(f.service, "*")
	return f
}

// signIn opens a session for a user directly against the session store
// and returns the raw cookie token.
func (f *fixture) signIn(t *testing.T, handle, role string) (store.User, string) {
	t.Helper()
	user := f.store.addUser(handle, role)
	token := util.NewID("sess")
	err := f.sessions.Save(context.Background(), auth.HashToken(token), store.WebSession{
		UserID:    user.ID,
		Handle:    user.Handle,
		Role:      user.Role,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("save session: %v", err)
	}
	return user, token
}

func (f *fixture) request(t *testing.T, method, path, token string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookie, Value: token})
	}
	recorder := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(recorder, req)
	return recorder
}
