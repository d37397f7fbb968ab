// Package email delivers contact-form messages via SMTP.
package email

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
)

// Config holds SMTP configuration
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

// Service provides email sending
type Service struct {
	config Config
	server string
	auth   smtp.Auth

	// send is swapped out in tests.
	send func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error
}

// NewService creates a new email service
func NewService(config Config) *Service {
	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   smtp.PlainAuth("", config.Username, config.Password, config.Host),
		send:   smtp.SendMail,
	}
}

// IsConfigured returns true if email is configured
func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

// SendEmail sends a plain text email
func (s *Service) SendEmail(to []string, subject, body string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email not configured")
	}

	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	msg := []byte(fmt.Sprintf(
		"To: %s\r\n"+
			"From: %s\r\n"+
			"Subject: %s\r\n"+
			"Content-Type: text/plain; charset=UTF-8\r\n"+
			"\r\n"+
			"%s",
		strings.Join(to, ", "),
		from,
		subject,
		body,
	))

	return s.send(s.server, s.auth, s.config.From, to, msg)
}

// ContactData holds a visitor-submitted contact message.
type ContactData struct {
	Name    string
	Email   string
	Message string
}

var contactTemplate = template.Must(template.New("contact").Parse(
	"New contact message\n\n" +
		"From: {{.Name}} <{{.Email}}>\n\n" +
		"{{.Message}}\n"))

// SendContactMessage forwards a visitor message to the site owner. The
// reply-to address is embedded in the body rather than the headers so a
// forged address cannot change routing.
func (s *Service) SendContactMessage(to string, data ContactData) error {
	body, err := renderTemplate(contactTemplate, data)
	if err != nil {
		return fmt.Errorf("render contact message: %w", err)
	}
	subject := "Contact form: " + data.Name
	return s.SendEmail([]string{to}, subject, body)
}

func renderTemplate(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
