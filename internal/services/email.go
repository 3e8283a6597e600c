package services

import (
	"context"
	"fmt"
	"net/http"
	"net/smtp"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

// EmailSender delivers plain text email
type EmailSender interface {
	SendEmail(ctx context.Context, to []string, subject, body string) error
}

type SMTPEmailService struct {
	host     string
	port     string
	user     string
	password string
	from     string
}

func NewSMTPEmailService(host, port, user, password, from string) *SMTPEmailService {
	return &SMTPEmailService{
		host:     host,
		port:     port,
		user:     user,
		password: password,
		from:     from,
	}
}

func (s *SMTPEmailService) SendEmail(ctx context.Context, to []string, subject, body string) error {
	if s.host == "" || s.port == "" || s.user == "" || s.password == "" {
		return fmt.Errorf("SMTP credentials not fully configured")
	}
	if len(to) == 0 {
		return fmt.Errorf("no recipients")
	}

	auth := smtp.PlainAuth("", s.user, s.password, s.host)

	message := []byte(fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"MIME-Version: 1.0\r\n"+
		"Content-Type: text/plain; charset=\"UTF-8\"\r\n"+
		"\r\n"+
		"%s\r\n", s.from, strings.Join(to, ", "), subject, body))

	addr := fmt.Sprintf("%s:%s", s.host, s.port)

	if err := smtp.SendMail(addr, auth, s.from, to, message); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

const (
	sendGridHost     = "https://api.sendgrid.com"
	sendGridEndpoint = "/v3/mail/send"
)

type SendGridEmailService struct {
	key        string
	host       string
	from       *sgmail.Email
	subjPrefix string
}

func NewSendGridEmailService(key, appName, fromEmail string) *SendGridEmailService {
	return &SendGridEmailService{
		key:        key,
		host:       sendGridHost,
		from:       sgmail.NewEmail(appName, fromEmail),
		subjPrefix: "[" + appName + "] ",
	}
}

func (s *SendGridEmailService) prepare(to []string, subject, body string) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = s.subjPrefix + subject
	for _, addr := range to {
		p.AddTos(sgmail.NewEmail("", addr))
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", body))
	return m
}

func (s *SendGridEmailService) SendEmail(ctx context.Context, to []string, subject, body string) error {
	if s.key == "" {
		return fmt.Errorf("SENDGRID_API_KEY not configured")
	}
	if len(to) == 0 {
		return fmt.Errorf("no recipients")
	}

	req := sendgrid.GetRequest(s.key, sendGridEndpoint, s.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(s.prepare(to, subject, body))

	res, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid rejected email with status %d: %s", res.StatusCode, res.Body)
	}
	return nil
}

// NewEmailSender picks the implementation named by provider
func NewEmailSender(provider string, smtpSvc *SMTPEmailService, sendGrid *SendGridEmailService) EmailSender {
	if provider == "sendgrid" {
		return sendGrid
	}
	return smtpSvc
}
