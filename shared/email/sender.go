package email

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"net/smtp"

	"tutorial-ranker/internal/models"
	"tutorial-ranker/shared/config"
)

//go:embed digest.html
var digestTemplate string

var digestTmpl = template.Must(template.New("digest").Parse(digestTemplate))

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type Sender struct {
	config *config.EmailConfig
	send   sendFunc
}

func NewSender(cfg *config.EmailConfig) *Sender {
	return &Sender{
		config: cfg,
		send:   smtp.SendMail,
	}
}

// SendDigest mails the ranked tutorials of report. Reports without results are
// not sent.
func (s *Sender) SendDigest(report *models.RankingReport) error {
	if report == nil {
		return fmt.Errorf("report cannot be nil")
	}
	if len(report.Results) == 0 {
		return nil
	}

	newCount := 0
	for _, r := range report.Results {
		if r.New {
			newCount++
		}
	}
	subject := fmt.Sprintf("Tutorial Digest - %d Long-Form Picks for %q (%d new, %s)",
		len(report.Results), report.Query, newCount, report.Date.Format("Jan 2, 2006"))

	body, err := generateDigestBody(report)
	if err != nil {
		return fmt.Errorf("failed to generate email body: %w", err)
	}

	return s.SendHTML(subject, body)
}

// SendHTML sends an email with custom HTML content
func (s *Sender) SendHTML(subject, htmlBody string) error {
	auth := smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.SMTPServer)

	to := []string{s.config.ToEmail}
	msg := []byte(fmt.Sprintf("To: %s\r\nFrom: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		s.config.ToEmail, s.config.FromEmail, subject, htmlBody))

	addr := fmt.Sprintf("%s:%d", s.config.SMTPServer, s.config.SMTPPort)
	if err := s.send(addr, auth, s.config.FromEmail, to, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func generateDigestBody(report *models.RankingReport) (string, error) {
	var buf bytes.Buffer
	if err := digestTmpl.Execute(&buf, report); err != nil {
		return "", err
	}
	return buf.String(), nil
}
