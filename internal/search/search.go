package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultPost ResultType = "post"
	ResultNote ResultType = "note"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type      ResultType `json:"type"`
	ID        string     `json:"id"`
	Slug      string     `json:"slug,omitempty"`
	Title     string     `json:"title"`
	Snippet   string     `json:"snippet"`
	Published bool       `json:"published,omitempty"`
}

// Query describes a search request. Anonymous callers see only
// published posts; notes and drafts are owner-only.
type Query struct {
	Text          string
	FilterType    ResultType // empty = all types the caller may see
	IncludeDrafts bool
	IncludeNotes  bool
	Limit         int
	Offset        int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push entities into a search index.
type Indexer interface {
	IndexPost(p PostRecord) error
	IndexNote(n NoteRecord) error
	DeletePost(id string) error
	DeleteNote(id string) error
}

// PostRecord is the data we index for a blog post.
type PostRecord struct {
	ID        string `json:"id"`
	Slug      string `json:"slug"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	Published bool   `json:"published"`
}

// NoteRecord is the data we index for a note.
type NoteRecord struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Body  string `json:"body"`
}
