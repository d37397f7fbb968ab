package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"dec/api/internal/export"
	"dec/api/internal/gitstore"
	"dec/api/internal/markdown"
	"dec/api/internal/search"
	"dec/api/internal/store"
	"dec/api/internal/util"
)

type PostView struct {
	ID        string    `json:"id"`
	Slug      string    `json:"slug"`
	Title     string    `json:"title"`
	Markdown  string    `json:"markdown,omitempty"`
	HTML      string    `json:"html"`
	Published bool      `json:"published"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type NoteView struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Markdown  string    `json:"markdown"`
	HTML      string    `json:"html"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type SavePostInput struct {
	Slug      string `json:"slug"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Published bool   `json:"published"`
}

type SaveNoteInput struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (s *Service) ListPosts(ctx context.Context, includeDrafts bool) ([]PostView, error) {
	posts, err := s.store.ListBlogPosts(ctx, includeDrafts)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	views := make([]PostView, 0, len(posts))
	for _, post := range posts {
		views = append(views, postView(post, false))
	}
	return views, nil
}

func (s *Service) GetPost(ctx context.Context, slug string, includeDrafts, includeSource bool) (PostView, error) {
	post, err := s.store.GetBlogPostBySlug(ctx, slug)
	if err != nil {
		return PostView{}, err
	}
	if !post.Published && !includeDrafts {
		return PostView{}, domainError(http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
	return postView(post, includeSource), nil
}

func (s *Service) SavePost(ctx context.Context, sess Session, input SavePostInput) (PostView, error) {
	// Frontmatter in the markdown supplies defaults for fields the
	// request leaves empty.
	if doc, err := markdown.Parse(input.Content); err == nil {
		if input.Title == "" {
			input.Title = doc.Meta.Title
		}
		if input.Slug == "" {
			input.Slug = doc.Meta.Slug
		}
		if !input.Published {
			input.Published = doc.Meta.Published
		}
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return PostView{}, domainError(http.StatusBadRequest, "INVALID_BODY", "Title is required", nil)
	}
	slug := strings.TrimSpace(input.Slug)
	if slug == "" {
		slug = slugify(title)
	}
	if !validSlug(slug) {
		return PostView{}, domainError(http.StatusBadRequest, "INVALID_SLUG", "Slug may contain lowercase letters, digits, and dashes", nil)
	}

	existing, err := s.store.GetBlogPostBySlug(ctx, slug)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return PostView{}, fmt.Errorf("load post: %w", err)
	}
	post := store.BlogPost{
		ID:              util.NewUUID(),
		Slug:            slug,
		Title:           title,
		ContentMarkdown: input.Content,
		Published:       input.Published,
		AuthorUserID:    sess.UserID,
	}
	action, message := "created", "Create "+slug
	if err == nil {
		post.ID = existing.ID
		post.AuthorUserID = existing.AuthorUserID
		action, message = "updated", "Update "+slug
	}

	if err := s.store.UpsertBlogPost(ctx, post); err != nil {
		return PostView{}, fmt.Errorf("save post: %w", err)
	}
	if _, err := s.content.SavePost(slug, input.Content, sess.Handle, message); err != nil {
		return PostView{}, fmt.Errorf("commit post: %w", err)
	}

	s.search.IndexPost(search.PostRecord{
		ID:        post.ID,
		Slug:      post.Slug,
		Title:     post.Title,
		Body:      post.ContentMarkdown,
		Published: post.Published,
	})
	s.recordAudit(ctx, &sess.UserID, "blog."+action, map[string]any{"slug": slug})

	saved, err := s.store.GetBlogPostBySlug(ctx, slug)
	if err != nil {
		return PostView{}, fmt.Errorf("reload post: %w", err)
	}
	return postView(saved, true), nil
}

func (s *Service) DeletePost(ctx context.Context, sess Session, slug string) error {
	post, err := s.store.GetBlogPostBySlug(ctx, slug)
	if err != nil {
		return err
	}
	deleted, err := s.store.DeleteBlogPost(ctx, slug)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if !deleted {
		return domainError(http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
	if _, err := s.content.RemovePost(slug, sess.Handle); err != nil {
		s.logger.Printf("post %s removed from db but not content repo: %v", slug, err)
	}
	s.search.DeletePost(post.ID)
	s.recordAudit(ctx, &sess.UserID, "blog.deleted", map[string]any{"slug": slug})
	return nil
}

func (s *Service) PostHistory(ctx context.Context, slug string, limit int) ([]gitstore.CommitInfo, error) {
	if _, err := s.store.GetBlogPostBySlug(ctx, slug); err != nil {
		return nil, err
	}
	history, err := s.content.PostHistory(slug, limit)
	if err != nil {
		return nil, fmt.Errorf("post history: %w", err)
	}
	return history, nil
}

// PostRevision returns the markdown of a post at a given commit.
func (s *Service) PostRevision(ctx context.Context, slug, hash string) (string, error) {
	if _, err := s.store.GetBlogPostBySlug(ctx, slug); err != nil {
		return "", err
	}
	content, err := s.content.PostAt(slug, hash)
	if err != nil {
		return "", domainError(http.StatusNotFound, "REVISION_NOT_FOUND", "Revision not found", nil)
	}
	return content, nil
}

func (s *Service) ExportPost(ctx context.Context, slug string, includeDrafts bool) (*export.Result, error) {
	post, err := s.store.GetBlogPostBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !post.Published && !includeDrafts {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
	html, err := markdown.Render(post.ContentMarkdown)
	if err != nil {
		return nil, fmt.Errorf("render post: %w", err)
	}
	result, err := s.exporter.ExportPost(export.Post{
		Title:       post.Title,
		Author:      post.AuthorHandle,
		ContentHTML: html,
		UpdatedAt:   post.UpdatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("export post: %w", err)
	}
	return result, nil
}

// --- Notes ---

func (s *Service) ListNotes(ctx context.Context) ([]NoteView, error) {
	notes, err := s.store.ListNotes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	views := make([]NoteView, 0, len(notes))
	for _, note := range notes {
		views = append(views, noteView(note))
	}
	return views, nil
}

func (s *Service) GetNote(ctx context.Context, noteID string) (NoteView, error) {
	note, err := s.store.GetNote(ctx, noteID)
	if err != nil {
		return NoteView{}, err
	}
	return noteView(note), nil
}

func (s *Service) SaveNote(ctx context.Context, sess Session, input SaveNoteInput) (NoteView, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return NoteView{}, domainError(http.StatusBadRequest, "INVALID_BODY", "Title is required", nil)
	}
	noteID := input.ID
	if noteID == "" {
		noteID = util.NewUUID()
	}
	note := store.Note{
		ID:              noteID,
		Title:           title,
		ContentMarkdown: input.Content,
	}
	if err := s.store.UpsertNote(ctx, note); err != nil {
		return NoteView{}, fmt.Errorf("save note: %w", err)
	}
	if _, err := s.content.SaveNote(noteID, input.Content, sess.Handle, "Update note "+noteID); err != nil {
		return NoteView{}, fmt.Errorf("commit note: %w", err)
	}
	s.search.IndexNote(search.NoteRecord{ID: noteID, Title: title, Body: input.Content})
	s.recordAudit(ctx, &sess.UserID, "note.saved", map[string]any{"id": noteID})

	saved, err := s.store.GetNote(ctx, noteID)
	if err != nil {
		return NoteView{}, fmt.Errorf("reload note: %w", err)
	}
	return noteView(saved), nil
}

func (s *Service) DeleteNote(ctx context.Context, sess Session, noteID string) error {
	deleted, err := s.store.DeleteNote(ctx, noteID)
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	if !deleted {
		return domainError(http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
	if _, err := s.content.RemoveNote(noteID, sess.Handle); err != nil {
		s.logger.Printf("note %s removed from db but not content repo: %v", noteID, err)
	}
	s.search.DeleteNote(noteID)
	s.recordAudit(ctx, &sess.UserID, "note.deleted", map[string]any{"id": noteID})
	return nil
}

// --- Search ---

func (s *Service) SearchContent(text, filterType string, limit, offset int, admin bool) search.Response {
	return s.search.Search(search.Query{
		Text:          text,
		FilterType:    search.ResultType(filterType),
		IncludeDrafts: admin,
		IncludeNotes:  admin,
		Limit:         limit,
		Offset:        offset,
	})
}

func postView(post store.BlogPost, includeSource bool) PostView {
	html, err := markdown.Render(post.ContentMarkdown)
	if err != nil {
		html = ""
	}
	view := PostView{
		ID:        post.ID,
		Slug:      post.Slug,
		Title:     post.Title,
		HTML:      html,
		Published: post.Published,
		Author:    post.AuthorHandle,
		CreatedAt: post.CreatedAt,
		UpdatedAt: post.UpdatedAt,
	}
	if includeSource {
		view.Markdown = post.ContentMarkdown
	}
	return view
}

func noteView(note store.Note) NoteView {
	html, err := markdown.Render(note.ContentMarkdown)
	if err != nil {
		html = ""
	}
	return NoteView{
		ID:        note.ID,
		Title:     note.Title,
		Markdown:  note.ContentMarkdown,
		HTML:      html,
		UpdatedAt: note.UpdatedAt,
	}
}

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

func validSlug(slug string) bool {
	return len(slug) <= 120 && slugPattern.MatchString(slug)
}

func slugify(title string) string {
	slug := nonSlugChars.ReplaceAllString(strings.ToLower(title), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = util.NewID("")[:8]
	}
	if len(slug) > 120 {
		slug = strings.Trim(slug[:120], "-")
	}
	return slug
}
