// Package mail sends transactional email through SendGrid or the process log.
package mail

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"github.com/noah-isme/school-api/pkg/config"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

// Address is a display name with an email address.
type Address struct {
	Name  string
	Email string
}

// Message is a rendered email.
type Message struct {
	To      []Address
	Subject string
	Text    string
	HTML    string
}

// Mailer delivers a message synchronously.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// NewMailer picks the provider named in the configuration.
func NewMailer(cfg config.MailConfig, logger *zap.Logger) Mailer {
	if cfg.Provider == "sendgrid" && cfg.SendgridAPIKey != "" {
		return NewSendgridMailer(cfg)
	}
	return NewConsoleMailer(logger)
}

// SendgridMailer posts messages to the SendGrid v3 API.
type SendgridMailer struct {
	key        string
	from       *sgmail.Email
	subjPrefix string
	send       func(req restRequest) (int, string, error)
}

// NewSendgridMailer builds a mailer from the MAIL_* settings.
func NewSendgridMailer(cfg config.MailConfig) *SendgridMailer {
	prefix := ""
	if cfg.AppName != "" {
		prefix = "[" + cfg.AppName + "] "
	}
	return &SendgridMailer{
		key:        cfg.SendgridAPIKey,
		from:       sgmail.NewEmail(cfg.FromName, cfg.FromAddress),
		subjPrefix: prefix,
		send:       sendgridAPI,
	}
}

// Send delivers msg; non 2xx responses are returned as errors so the caller can retry.
func (m *SendgridMailer) Send(_ context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return fmt.Errorf("mail has no recipients")
	}
	status, body, err := m.send(restRequest{key: m.key, body: sgmail.GetRequestBody(m.prepare(msg))})
	if err != nil {
		return fmt.Errorf("sendgrid request: %w", err)
	}
	if status >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid status %d: %s", status, body)
	}
	return nil
}

func (m *SendgridMailer) prepare(msg Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = m.subjPrefix + msg.Subject
	for _, to := range msg.To {
		p.AddTos(sgmail.NewEmail(to.Name, to.Email))
	}

	v3 := sgmail.NewV3Mail()
	v3.SetFrom(m.from)
	v3.AddPersonalizations(p)
	v3.AddContent(sgmail.NewContent("text/plain", msg.Text))
	if msg.HTML != "" {
		v3.AddContent(sgmail.NewContent("text/html", msg.HTML))
	}
	return v3
}

type restRequest struct {
	key  string
	body []byte
}

func sendgridAPI(r restRequest) (int, string, error) {
	req := sendgrid.GetRequest(r.key, sendgridEndpoint, sendgridHost)
	req.Method = http.MethodPost
	req.Body = r.body
	res, err := sendgrid.API(req)
	if err != nil {
		return 0, "", err
	}
	return res.StatusCode, res.Body, nil
}

// ConsoleMailer writes messages to the log instead of sending them.
type ConsoleMailer struct {
	logger *zap.Logger
}

// NewConsoleMailer returns a mailer for development environments.
func NewConsoleMailer(logger *zap.Logger) *ConsoleMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsoleMailer{logger: logger}
}

func (m *ConsoleMailer) Send(_ context.Context, msg Message) error {
	recipients := make([]string, 0, len(msg.To))
	for _, to := range msg.To {
		recipients = append(recipients, to.Email)
	}
	m.logger.Info("mail not sent, console provider",
		zap.Strings("to", recipients),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Text),
	)
	return nil
}
