// Package markdown renders post and note bodies to HTML and parses the
// optional YAML frontmatter block editors prepend to drafts.
package markdown

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"gopkg.in/yaml.v3"
)

// Frontmatter carries the editor-supplied metadata. All fields are
// optional; absent frontmatter leaves the zero value.
type Frontmatter struct {
	Title     string   `yaml:"title"`
	Slug      string   `yaml:"slug"`
	Tags      []string `yaml:"tags"`
	Published bool     `yaml:"published"`
}

type Document struct {
	Meta Frontmatter
	Body string
	HTML string
}

var renderer = goldmark.New(
	goldmark.WithExtensions(extension.GFM, extension.Typographer),
	goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	goldmark.WithRendererOptions(html.WithUnsafe()),
)

// Render converts markdown to HTML. Raw HTML passes through: content is
// authored by the site owner, not untrusted visitors.
func Render(source string) (string, error) {
	var buf bytes.Buffer
	if err := renderer.Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), nil
}

// Parse splits frontmatter from the body and renders the body.
func Parse(source string) (Document, error) {
	meta, body, err := splitFrontmatter(source)
	if err != nil {
		return Document{}, err
	}
	rendered, err := Render(body)
	if err != nil {
		return Document{}, err
	}
	return Document{Meta: meta, Body: body, HTML: rendered}, nil
}

func splitFrontmatter(source string) (Frontmatter, string, error) {
	var meta Frontmatter
	if !strings.HasPrefix(source, "---\n") && source != "---" {
		return meta, source, nil
	}

	rest := strings.TrimPrefix(source, "---\n")
	end := strings.Index(rest, "\n---")
	if end < 0 {
		// An unterminated block is treated as body text, not an error.
		return meta, source, nil
	}

	block := rest[:end]
	body := rest[end+len("\n---"):]
	body = strings.TrimPrefix(body, "\n")

	if err := yaml.Unmarshal([]byte(block), &meta); err != nil {
		return Frontmatter{}, "", fmt.Errorf("parse frontmatter: %w", err)
	}
	return meta, body, nil
}
