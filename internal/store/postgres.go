package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"dec/api/internal/util"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// EnsureUserByLinkedAccount resolves the local user for a provider identity,
// creating the user row and the link on first sign-in. Sealed tokens are
// refreshed on every call so the stored copy tracks the latest grant.
func (s *PostgresStore) EnsureUserByLinkedAccount(ctx context.Context, account LinkedAccount, handle string) (User, error) {
	const findLinked = `
		SELECT u.id, u.handle, u.role, COALESCE(u.settings_json, '{}'), u.created_at
		FROM linked_accounts la
		JOIN users u ON u.id = la.user_id
		WHERE la.provider = $1 AND la.provider_user_id = $2
	`
	var user User
	err := s.db.QueryRowContext(ctx, findLinked, account.Provider, account.ProviderUserID).
		Scan(&user.ID, &user.Handle, &user.Role, &user.SettingsJSON, &user.CreatedAt)
	if err == nil {
		if _, updErr := s.db.ExecContext(ctx, `
			UPDATE linked_accounts
			SET access_token_sealed=$3, refresh_token_sealed=$4, metadata_json=$5
			WHERE provider=$1 AND provider_user_id=$2
		`, account.Provider, account.ProviderUserID, account.AccessTokenSealed, account.RefreshTokenSealed, nullIfEmpty(account.MetadataJSON)); updErr != nil {
			return User{}, fmt.Errorf("refresh linked account: %w", updErr)
		}
		return user, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("lookup linked account: %w", err)
	}

	userID := util.NewUUID()
	insertUser := `
		INSERT INTO users (id, handle, role)
		VALUES ($1, $2, 'user')
		ON CONFLICT (handle) DO UPDATE SET handle=users.handle
		RETURNING id, handle, role, COALESCE(settings_json, '{}'), created_at
	`
	if err := s.db.QueryRowContext(ctx, insertUser, userID, handle).
		Scan(&user.ID, &user.Handle, &user.Role, &user.SettingsJSON, &user.CreatedAt); err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO linked_accounts (id, user_id, provider, provider_user_id, access_token_sealed, refresh_token_sealed, metadata_json)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (provider, provider_user_id) DO UPDATE
		SET access_token_sealed=EXCLUDED.access_token_sealed,
		    refresh_token_sealed=EXCLUDED.refresh_token_sealed,
		    metadata_json=EXCLUDED.metadata_json
	`, util.NewUUID(), user.ID, account.Provider, account.ProviderUserID, account.AccessTokenSealed, account.RefreshTokenSealed, nullIfEmpty(account.MetadataJSON)); err != nil {
		return User{}, fmt.Errorf("insert linked account: %w", err)
	}

	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, handle, role, COALESCE(settings_json, '{}'), created_at
		FROM users
		WHERE id=$1
	`, userID).Scan(&user.ID, &user.Handle, &user.Role, &user.SettingsJSON, &user.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) GetUserByHandle(ctx context.Context, handle string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, handle, role, COALESCE(settings_json, '{}'), created_at
		FROM users
		WHERE handle=$1
	`, handle).Scan(&user.ID, &user.Handle, &user.Role, &user.SettingsJSON, &user.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) SetUserRole(ctx context.Context, userID, role string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET role=$2 WHERE id=$1`, userID, role)
	if err != nil {
		return fmt.Errorf("set user role: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetLinkedAccount(ctx context.Context, userID, provider string) (*LinkedAccount, error) {
	var item LinkedAccount
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, provider, provider_user_id, access_token_sealed, refresh_token_sealed, COALESCE(metadata_json, '{}'), created_at
		FROM linked_accounts
		WHERE user_id=$1 AND provider=$2
	`, userID, provider).Scan(
		&item.ID,
		&item.UserID,
		&item.Provider,
		&item.ProviderUserID,
		&item.AccessTokenSealed,
		&item.RefreshTokenSealed,
		&item.MetadataJSON,
		&item.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get linked account: %w", err)
	}
	return &item, nil
}

func (s *PostgresStore) ListLinkedAccounts(ctx context.Context, userID string) ([]LinkedAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, provider, provider_user_id, access_token_sealed, refresh_token_sealed, COALESCE(metadata_json, '{}'), created_at
		FROM linked_accounts
		WHERE user_id=$1
		ORDER BY provider ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list linked accounts: %w", err)
	}
	defer rows.Close()

	items := make([]LinkedAccount, 0)
	for rows.Next() {
		var item LinkedAccount
		if err := rows.Scan(
			&item.ID,
			&item.UserID,
			&item.Provider,
			&item.ProviderUserID,
			&item.AccessTokenSealed,
			&item.RefreshTokenSealed,
			&item.MetadataJSON,
			&item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan linked account: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate linked accounts: %w", err)
	}
	return items, nil
}

// GetPreferences returns the stored preference blob for a user. A missing,
// empty, or malformed blob reads as the empty object so one bad write can
// never lock an account out of its settings.
func (s *PostgresStore) GetPreferences(ctx context.Context, userID string) (string, error) {
	var raw sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT settings_json FROM users WHERE id=$1`, userID).Scan(&raw)
	if err != nil {
		return "", fmt.Errorf("get preferences: %w", err)
	}
	if !raw.Valid || raw.String == "" {
		return "{}", nil
	}
	if !json.Valid([]byte(raw.String)) {
		return "{}", nil
	}
	return raw.String, nil
}

func (s *PostgresStore) SavePreferences(ctx context.Context, userID, settingsJSON string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET settings_json=$2 WHERE id=$1`, userID, settingsJSON)
	if err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("save preferences rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) ResetPreferences(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET settings_json='{}' WHERE id=$1`, userID)
	if err != nil {
		return fmt.Errorf("reset preferences: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupSession(ctx context.Context, tokenHash string) (WebSession, error) {
	const query = `
		SELECT u.id, u.handle, u.role, s.created_at, s.expires_at
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.token_hash = $1 AND s.expires_at > NOW()
	`
	var sess WebSession
	err := s.db.QueryRowContext(ctx, query, tokenHash).Scan(&sess.UserID, &sess.Handle, &sess.Role, &sess.CreatedAt, &sess.ExpiresAt)
	if err != nil {
		return WebSession{}, err
	}
	return sess, nil
}

func (s *PostgresStore) DeleteSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *PostgresStore) PruneExpiredSessions(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("prune sessions: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune sessions rows: %w", err)
	}
	return affected, nil
}

func (s *PostgresStore) ListBlogPosts(ctx context.Context, includeDrafts bool) ([]BlogPost, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.slug, p.title, p.content_markdown, p.published, p.author_user_id, u.handle, p.created_at, p.updated_at
		FROM blog_posts p
		JOIN users u ON u.id = p.author_user_id
		WHERE ($1::boolean OR p.published)
		ORDER BY p.created_at DESC
	`, includeDrafts)
	if err != nil {
		return nil, fmt.Errorf("list blog posts: %w", err)
	}
	defer rows.Close()

	items := make([]BlogPost, 0)
	for rows.Next() {
		var item BlogPost
		if err := rows.Scan(
			&item.ID,
			&item.Slug,
			&item.Title,
			&item.ContentMarkdown,
			&item.Published,
			&item.AuthorUserID,
			&item.AuthorHandle,
			&item.CreatedAt,
			&item.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan blog post: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate blog posts: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetBlogPostBySlug(ctx context.Context, slug string) (BlogPost, error) {
	var item BlogPost
	err := s.db.QueryRowContext(ctx, `
		SELECT p.id, p.slug, p.title, p.content_markdown, p.published, p.author_user_id, u.handle, p.created_at, p.updated_at
		FROM blog_posts p
		JOIN users u ON u.id = p.author_user_id
		WHERE p.slug=$1
	`, slug).Scan(
		&item.ID,
		&item.Slug,
		&item.Title,
		&item.ContentMarkdown,
		&item.Published,
		&item.AuthorUserID,
		&item.AuthorHandle,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return BlogPost{}, err
	}
	return item, nil
}

func (s *PostgresStore) UpsertBlogPost(ctx context.Context, post BlogPost) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO blog_posts (id, slug, title, content_markdown, published, author_user_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (slug) DO UPDATE
		SET title=EXCLUDED.title,
		    content_markdown=EXCLUDED.content_markdown,
		    published=EXCLUDED.published,
		    updated_at=NOW()
	`, post.ID, post.Slug, post.Title, post.ContentMarkdown, post.Published, post.AuthorUserID)
	if err != nil {
		return fmt.Errorf("upsert blog post: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteBlogPost(ctx context.Context, slug string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM blog_posts WHERE slug=$1`, slug)
	if err != nil {
		return false, fmt.Errorf("delete blog post: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete blog post rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) ListNotes(ctx context.Context) ([]Note, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, content_markdown, updated_at
		FROM notes
		ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	items := make([]Note, 0)
	for rows.Next() {
		var item Note
		if err := rows.Scan(&item.ID, &item.Title, &item.ContentMarkdown, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notes: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetNote(ctx context.Context, noteID string) (Note, error) {
	var item Note
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, content_markdown, updated_at
		FROM notes
		WHERE id=$1
	`, noteID).Scan(&item.ID, &item.Title, &item.ContentMarkdown, &item.UpdatedAt)
	if err != nil {
		return Note{}, err
	}
	return item, nil
}

func (s *PostgresStore) UpsertNote(ctx context.Context, note Note) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notes (id, title, content_markdown)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET title=EXCLUDED.title,
		    content_markdown=EXCLUDED.content_markdown,
		    updated_at=NOW()
	`, note.ID, note.Title, note.ContentMarkdown)
	if err != nil {
		return fmt.Errorf("upsert note: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteNote(ctx context.Context, noteID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id=$1`, noteID)
	if err != nil {
		return false, fmt.Errorf("delete note: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete note rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) InsertAuditEvent(ctx context.Context, event AuditEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, user_id, event_type, details_json)
		VALUES ($1, $2, $3, $4)
	`, event.ID, event.UserID, event.EventType, nullIfEmpty(event.DetailsJSON))
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAuditEvents(ctx context.Context, limit int) ([]AuditEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ts, user_id, event_type, COALESCE(details_json, '{}')
		FROM audit_logs
		ORDER BY ts DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	items := make([]AuditEvent, 0)
	for rows.Next() {
		var item AuditEvent
		if err := rows.Scan(&item.ID, &item.Timestamp, &item.UserID, &item.EventType, &item.DetailsJSON); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return items, nil
}

// Ping verifies the database connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
