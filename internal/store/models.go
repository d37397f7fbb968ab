package store

import "time"

type User struct {
	ID           string
	Handle       string
	Role         string
	SettingsJSON string
	CreatedAt    time.Time
}

// LinkedAccount ties a local user to an OAuth provider identity. Provider
// tokens are sealed (AEAD) before they are stored.
type LinkedAccount struct {
	ID                 string
	UserID             string
	Provider           string
	ProviderUserID     string
	AccessTokenSealed  []byte
	RefreshTokenSealed []byte
	MetadataJSON       string
	CreatedAt          time.Time
}

type BlogPost struct {
	ID              string
	Slug            string
	Title           string
	ContentMarkdown string
	Published       bool
	AuthorUserID    string
	AuthorHandle    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Note struct {
	ID              string
	Title           string
	ContentMarkdown string
	UpdatedAt       time.Time
}

type AuditEvent struct {
	ID        string
	Timestamp time.Time
	// UserID is nil for anonymous events.
	UserID      *string
	EventType   string
	DetailsJSON string
}

type WebSession struct {
	UserID    string
	Handle    string
	Role      string
	CreatedAt time.Time
	ExpiresAt time.Time
}
