package export

import "fmt"

// Service renders posts to PDF.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

// ExportPost renders a post into a downloadable PDF.
func (s *Service) ExportPost(post Post) (*Result, error) {
	html, err := renderPostHTML(post)
	if err != nil {
		return nil, fmt.Errorf("render post template: %w", err)
	}
	return renderPDF(html, post.Title)
}
