// Package gitstore keeps every blog post and note revision in a single
// local git repository, so content history and point-in-time reads come
// for free.
package gitstore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

type CommitInfo struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

// Service serializes all writes through one mutex; the repo is small and
// contention is a non-issue for a single-author site.
type Service struct {
	dir string
	mu  sync.Mutex
}

func Open(dir string) (*Service, error) {
	s := &Service{dir: dir}
	if err := s.ensureRepo(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Service) ensureRepo() error {
	if _, err := os.Stat(filepath.Join(s.dir, ".git")); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat content repo: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create content dir: %w", err)
	}

	repo, err := git.PlainInit(s.dir, false)
	if err != nil {
		return fmt.Errorf("init content repo: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}
	readme := []byte("Content repository for posts and notes.\n")
	if err := os.WriteFile(filepath.Join(s.dir, "README.md"), readme, 0o644); err != nil {
		return fmt.Errorf("write baseline file: %w", err)
	}
	if _, err := worktree.Add("README.md"); err != nil {
		return fmt.Errorf("git add baseline: %w", err)
	}
	hash, err := worktree.Commit("Initialize content repository", &git.CommitOptions{
		Author: signature("dec"),
	})
	if err != nil {
		return fmt.Errorf("commit baseline: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewHashReference(plumbing.NewBranchReferenceName("main"), hash)); err != nil {
		return fmt.Errorf("set main branch ref: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName("main"))); err != nil {
		return fmt.Errorf("set HEAD to main: %w", err)
	}
	return nil
}

// SavePost commits the markdown body of a post under posts/<slug>.md.
func (s *Service) SavePost(slug, markdown, author, message string) (CommitInfo, error) {
	return s.saveFile(postPath(slug), []byte(markdown), author, message)
}

// SaveNote commits the markdown body of a note under notes/<id>.md.
func (s *Service) SaveNote(noteID, markdown, author, message string) (CommitInfo, error) {
	return s.saveFile(notePath(noteID), []byte(markdown), author, message)
}

func (s *Service) RemovePost(slug, author string) (CommitInfo, error) {
	return s.removeFile(postPath(slug), author, "Remove post "+slug)
}

func (s *Service) RemoveNote(noteID, author string) (CommitInfo, error) {
	return s.removeFile(notePath(noteID), author, "Remove note "+noteID)
}

// PostHistory lists commits touching one post, newest first.
func (s *Service) PostHistory(slug string, limit int) ([]CommitInfo, error) {
	return s.history(postPath(slug), limit)
}

func (s *Service) NoteHistory(noteID string, limit int) ([]CommitInfo, error) {
	return s.history(notePath(noteID), limit)
}

// PostAt reads a post's markdown as of a specific commit.
func (s *Service) PostAt(slug, hash string) (string, error) {
	return s.readAt(postPath(slug), hash)
}

func (s *Service) saveFile(relPath string, content []byte, author, message string) (CommitInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, err := git.PlainOpen(s.dir)
	if err != nil {
		return CommitInfo{}, fmt.Errorf("open content repo: %w", err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return CommitInfo{}, fmt.Errorf("open worktree: %w", err)
	}

	absPath := filepath.Join(s.dir, relPath)
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return CommitInfo{}, fmt.Errorf("create content subdir: %w", err)
	}
	if err := os.WriteFile(absPath, content, 0o644); err != nil {
		return CommitInfo{}, fmt.Errorf("write %s: %w", relPath, err)
	}
	if _, err := worktree.Add(relPath); err != nil {
		return CommitInfo{}, fmt.Errorf("git add %s: %w", relPath, err)
	}

	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: signature(author),
		// Saving identical content twice is a no-op commit.
		AllowEmptyCommits: false,
	})
	if err != nil {
		if errors.Is(err, git.ErrEmptyCommit) {
			return s.headInfoLocked(repo)
		}
		return CommitInfo{}, fmt.Errorf("commit %s: %w", relPath, err)
	}

	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return CommitInfo{}, fmt.Errorf("read commit object: %w", err)
	}
	return toCommitInfo(commitObj), nil
}

func (s *Service) removeFile(relPath, author, message string) (CommitInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, err := git.PlainOpen(s.dir)
	if err != nil {
		return CommitInfo{}, fmt.Errorf("open content repo: %w", err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return CommitInfo{}, fmt.Errorf("open worktree: %w", err)
	}
	if _, err := worktree.Remove(relPath); err != nil {
		return CommitInfo{}, fmt.Errorf("git rm %s: %w", relPath, err)
	}
	hash, err := worktree.Commit(message, &git.CommitOptions{Author: signature(author)})
	if err != nil {
		return CommitInfo{}, fmt.Errorf("commit removal: %w", err)
	}
	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return CommitInfo{}, fmt.Errorf("read commit object: %w", err)
	}
	return toCommitInfo(commitObj), nil
}

func (s *Service) history(relPath string, limit int) ([]CommitInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, err := git.PlainOpen(s.dir)
	if err != nil {
		return nil, fmt.Errorf("open content repo: %w", err)
	}
	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("resolve HEAD: %w", err)
	}

	iter, err := repo.Log(&git.LogOptions{From: head.Hash(), FileName: &relPath})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]CommitInfo, 0, limit)
	count := 0
	err = iter.ForEach(func(commitObj *object.Commit) error {
		items = append(items, toCommitInfo(commitObj))
		count++
		if limit > 0 && count >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

func (s *Service) readAt(relPath, hash string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, err := git.PlainOpen(s.dir)
	if err != nil {
		return "", fmt.Errorf("open content repo: %w", err)
	}
	resolvedHash, err := resolveHash(repo, hash)
	if err != nil {
		return "", err
	}
	commitObj, err := repo.CommitObject(resolvedHash)
	if err != nil {
		return "", fmt.Errorf("read commit %s: %w", hash, err)
	}
	file, err := commitObj.File(relPath)
	if err != nil {
		return "", fmt.Errorf("load %s from commit: %w", relPath, err)
	}
	reader, err := file.Reader()
	if err != nil {
		return "", fmt.Errorf("open content reader: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read content bytes: %w", err)
	}
	return string(raw), nil
}

func (s *Service) headInfoLocked(repo *git.Repository) (CommitInfo, error) {
	head, err := repo.Head()
	if err != nil {
		return CommitInfo{}, fmt.Errorf("resolve HEAD: %w", err)
	}
	commitObj, err := repo.CommitObject(head.Hash())
	if err != nil {
		return CommitInfo{}, fmt.Errorf("read HEAD commit: %w", err)
	}
	return toCommitInfo(commitObj), nil
}

func postPath(slug string) string {
	return filepath.ToSlash(filepath.Join("posts", slug+".md"))
}

func notePath(noteID string) string {
	return filepath.ToSlash(filepath.Join("notes", noteID+".md"))
}

func signature(author string) *object.Signature {
	if author == "" {
		author = "dec"
	}
	return &object.Signature{
		Name:  author,
		Email: sanitizeEmail(author) + "@local.dec.dev",
		When:  time.Now(),
	}
}

func toCommitInfo(commitObj *object.Commit) CommitInfo {
	return CommitInfo{
		Hash:      commitObj.Hash.String()[:7],
		Message:   commitObj.Message,
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When,
	}
}

func sanitizeEmail(input string) string {
	runes := make([]rune, 0, len(input))
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			runes = append(runes, r)
			continue
		}
		if r == ' ' || r == '-' || r == '_' {
			runes = append(runes, '.')
		}
	}
	if len(runes) == 0 {
		return "user"
	}
	return string(runes)
}

func resolveHash(repo *git.Repository, hash string) (plumbing.Hash, error) {
	if len(hash) == 40 {
		return plumbing.NewHash(hash), nil
	}
	resolved, err := repo.ResolveRevision(plumbing.Revision(hash))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolve hash %s: %w", hash, err)
	}
	return *resolved, nil
}
