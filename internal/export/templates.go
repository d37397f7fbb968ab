package export

import (
	"bytes"
	"embed"
	"html/template"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var postTemplate = template.Must(template.New("post.html").Funcs(template.FuncMap{
	"formatDate": func(t time.Time, layout string) string {
		return t.Format(layout)
	},
}).ParseFS(templateFS, "templates/post.html"))

type templateData struct {
	Title       string
	Author      string
	ContentHTML template.HTML
	UpdatedAt   time.Time
}

// renderPostHTML renders the printable HTML page for a post.
func renderPostHTML(post Post) (string, error) {
	var buf bytes.Buffer
	err := postTemplate.Execute(&buf, templateData{
		Title:       post.Title,
		Author:      post.Author,
		ContentHTML: template.HTML(post.ContentHTML),
		UpdatedAt:   post.UpdatedAt,
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
