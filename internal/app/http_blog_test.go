package app

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"dec/api/internal/store"
	"dec/api/internal/util"
)

func seedPost(f *fixture, slug, title string, published bool) store.BlogPost {
	author := f.store.addUser("owner-"+slug, "admin")
	post := store.BlogPost{
		ID:              util.NewUUID(),
		Slug:            slug,
		Title:           title,
		ContentMarkdown: "# " + title,
		Published:       published,
		AuthorUserID:    author.ID,
	}
	_ = f.store.UpsertBlogPost(context.Background(), post)
	return f.store.posts[slug]
}

func TestBlogListHidesDraftsFromAnonymous(t *testing.T) {
	f := newFixture(t)
	seedPost(f, "hello", "Hello", true)
	seedPost(f, "wip", "Work in progress", false)

	rec := f.request(t, http.MethodGet, "/api/blog", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Posts []PostView `json:"posts"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Posts) != 1 || body.Posts[0].Slug != "hello" {
		t.Fatalf("unexpected posts: %+v", body.Posts)
	}
	if body.Posts[0].Markdown != "" {
		t.Fatal("list view should not include markdown source")
	}
	if !strings.Contains(body.Posts[0].HTML, "<h1") {
		t.Fatalf("html = %q", body.Posts[0].HTML)
	}
}

func TestBlogListIncludesDraftsForAdmin(t *testing.T) {
	f := newFixture(t)
	seedPost(f, "hello", "Hello", true)
	seedPost(f, "wip", "Work in progress", false)
	_, token := f.signIn(t, "avery", "admin")

	rec := f.request(t, http.MethodGet, "/api/blog", token, nil)
	var body struct {
		Posts []PostView `json:"posts"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Posts) != 2 {
		t.Fatalf("expected 2 posts, got %d", len(body.Posts))
	}
}

func TestBlogGetDraftIs404ForAnonymous(t *testing.T) {
	f := newFixture(t)
	seedPost(f, "wip", "Work in progress", false)

	rec := f.request(t, http.MethodGet, "/api/blog/wip", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestBlogSaveRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	_, token := f.signIn(t, "reader", "user")

	rec := f.request(t, http.MethodPost, "/api/blog/save", token,
		strings.NewReader(`{"title":"Nope","content":"x"}`))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestBlogSaveCreatesCommitsAndIndexes(t *testing.T) {
	f := newFixture(t)
	_, token := f.signIn(t, "avery", "admin")

	rec := f.request(t, http.MethodPost, "/api/blog/save", token,
		strings.NewReader(`{"title":"Tiling Windows","content":"# Tiling\n\ntext","published":true}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Post PostView `json:"post"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Post.Slug != "tiling-windows" {
		t.Fatalf("slug = %q, want tiling-windows", body.Post.Slug)
	}
	if body.Post.Markdown == "" {
		t.Fatal("admin save response should include markdown source")
	}

	if len(f.content.saved) != 1 || f.content.saved[0] != "posts/tiling-windows" {
		t.Fatalf("content saves = %v", f.content.saved)
	}
	if len(f.search.indexed) != 1 || f.search.indexed[0].Slug != "tiling-windows" {
		t.Fatalf("search indexed = %v", f.search.indexed)
	}

	found := false
	for _, event := range f.store.audits {
		if event.EventType == "blog.created" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected blog.created audit event")
	}
}

func TestBlogSaveLiftsFrontmatterDefaults(t *testing.T) {
	f := newFixture(t)
	_, token := f.signIn(t, "avery", "admin")

	content := "---\ntitle: From Frontmatter\nslug: fm-post\npublished: true\n---\n\nbody text"
	payload, _ := json.Marshal(map[string]any{"content": content})

	rec := f.request(t, http.MethodPost, "/api/blog/save", token, strings.NewReader(string(payload)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Post PostView `json:"post"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Post.Slug != "fm-post" || body.Post.Title != "From Frontmatter" || !body.Post.Published {
		t.Fatalf("post = %+v", body.Post)
	}
}

func TestBlogDeleteRemovesEverywhere(t *testing.T) {
	f := newFixture(t)
	post := seedPost(f, "old", "Old", true)
	_, token := f.signIn(t, "avery", "admin")

	rec := f.request(t, http.MethodDelete, "/api/blog/old", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if _, ok := f.store.posts["old"]; ok {
		t.Fatal("post should be gone from store")
	}
	if len(f.content.removed) != 1 || f.content.removed[0] != "posts/old" {
		t.Fatalf("content removals = %v", f.content.removed)
	}
	if len(f.search.deleted) != 1 || f.search.deleted[0] != post.ID {
		t.Fatalf("search deletions = %v", f.search.deleted)
	}
}

func TestBlogExportReturnsPDF(t *testing.T) {
	f := newFixture(t)
	seedPost(f, "hello", "Hello", true)

	rec := f.request(t, http.MethodPost, "/api/blog/hello/export", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "application/pdf" {
		t.Fatalf("content-type = %q", got)
	}
	if !strings.HasPrefix(rec.Body.String(), "%PDF") {
		t.Fatalf("body = %q", rec.Body.String()[:16])
	}
	if f.exporter.lastPost.Title != "Hello" {
		t.Fatalf("exported title = %q", f.exporter.lastPost.Title)
	}
}

func TestBlogHistoryRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	seedPost(f, "hello", "Hello", true)

	rec := f.request(t, http.MethodGet, "/api/blog/hello/history", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestNotesAreAdminOnly(t *testing.T) {
	f := newFixture(t)
	_, userToken := f.signIn(t, "reader", "user")

	rec := f.request(t, http.MethodGet, "/api/notes", userToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}

	_, adminToken := f.signIn(t, "avery", "admin")
	rec = f.request(t, http.MethodPost, "/api/notes", adminToken,
		strings.NewReader(`{"title":"Ideas","content":"- tiling wm"}`))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if len(f.search.notes) != 1 {
		t.Fatalf("note index calls = %d", len(f.search.notes))
	}
}

func TestSearchRequiresQuery(t *testing.T) {
	f := newFixture(t)

	rec := f.request(t, http.MethodGet, "/api/search", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSearchScopesDraftsAndNotesToAdmin(t *testing.T) {
	f := newFixture(t)

	f.request(t, http.MethodGet, "/api/search?q=tiling", "", nil)
	if f.search.lastQ.IncludeDrafts || f.search.lastQ.IncludeNotes {
		t.Fatalf("anonymous query = %+v", f.search.lastQ)
	}

	_, token := f.signIn(t, "avery", "admin")
	f.request(t, http.MethodGet, "/api/search?q=tiling", token, nil)
	if !f.search.lastQ.IncludeDrafts || !f.search.lastQ.IncludeNotes {
		t.Fatalf("admin query = %+v", f.search.lastQ)
	}
}
