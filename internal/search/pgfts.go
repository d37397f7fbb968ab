package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true; if Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search executes a UNION ALL query across blog_posts and notes using
// plainto_tsquery and ts_rank, with ts_headline for snippets.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "plainto_tsquery('english', $1)"
	args := []any{q.Text}

	var subQueries []string

	if q.FilterType == "" || q.FilterType == ResultPost {
		postWhere := "p.fts @@ " + tsQuery
		if !q.IncludeDrafts {
			postWhere += " AND p.published"
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'post'::text AS type, p.id::text, p.slug, p.title,
				ts_headline('english', p.content_markdown, %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				p.published,
				ts_rank(p.fts, %s) AS rank
			FROM blog_posts p
			WHERE %s`, tsQuery, tsQuery, postWhere))
	}

	if q.IncludeNotes && (q.FilterType == "" || q.FilterType == ResultNote) {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'note'::text AS type, n.id::text, ''::text AS slug, n.title,
				ts_headline('english', n.content_markdown, %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				TRUE AS published,
				ts_rank(n.fts, %s) AS rank
			FROM notes n
			WHERE n.fts @@ %s`, tsQuery, tsQuery, tsQuery))
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub",
		strings.Join(subQueries, " UNION ALL "))

	dataSQL := fmt.Sprintf(`SELECT type, id, slug, title, snippet, published
		FROM (%s) sub
		ORDER BY rank DESC
		LIMIT %d OFFSET %d`,
		strings.Join(subQueries, " UNION ALL "),
		limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Slug, &r.Title, &r.Snippet, &r.Published); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}
	return results, total, rows.Err()
}

// LoadAllRecords returns all searchable records for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]PostRecord, []NoteRecord, error) {
	postRows, err := p.db.QueryContext(ctx, `
		SELECT id, slug, title, content_markdown, published
		FROM blog_posts
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load posts: %w", err)
	}
	defer postRows.Close()

	posts := make([]PostRecord, 0)
	for postRows.Next() {
		var record PostRecord
		if err := postRows.Scan(&record.ID, &record.Slug, &record.Title, &record.Body, &record.Published); err != nil {
			return nil, nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, record)
	}
	if err := postRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate posts: %w", err)
	}

	noteRows, err := p.db.QueryContext(ctx, `
		SELECT id, title, content_markdown
		FROM notes
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load notes: %w", err)
	}
	defer noteRows.Close()

	notes := make([]NoteRecord, 0)
	for noteRows.Next() {
		var record NoteRecord
		if err := noteRows.Scan(&record.ID, &record.Title, &record.Body); err != nil {
			return nil, nil, fmt.Errorf("scan note: %w", err)
		}
		notes = append(notes, record)
	}
	if err := noteRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate notes: %w", err)
	}

	return posts, notes, nil
}
