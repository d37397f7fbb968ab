// Package export renders blog posts to downloadable PDF files using
// headless Chrome.
package export

import (
	"errors"
	"time"
)

// Post is the content handed to the exporter. ContentHTML is the
// already-rendered markdown body.
type Post struct {
	Title       string
	Author      string
	ContentHTML string
	UpdatedAt   time.Time
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

// ErrPDFDependencyMissing indicates PDF export runtime dependencies are
// unavailable.
var ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
