package notifier

import (
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/scholarfund-api/pkg/config"
)

// Notifier delivers a message to a single recipient address. Errors are
// advisory: callers log them and move on, delivery is best-effort.
type Notifier interface {
	Send(recipient, subject, body string) error
}

// New selects a backend from configuration.
func New(cfg config.NotifierConfig, logger *zap.Logger) Notifier {
	switch cfg.Backend {
	case "smtp":
		return NewSMTP(cfg)
	default:
		return NewLog(logger)
	}
}

// SMTP sends notifications as plain-text email over SMTP.
type SMTP struct {
	addr string
	auth smtp.Auth
	from string
}

// NewSMTP builds an SMTP notifier from config.
func NewSMTP(cfg config.NotifierConfig) *SMTP {
	var auth smtp.Auth
	if cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPHost)
	}
	return &SMTP{
		addr: fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
		auth: auth,
		from: cfg.From,
	}
}

// Send delivers one message. Recipient and subject are required.
func (n *SMTP) Send(recipient, subject, body string) error {
	if strings.TrimSpace(recipient) == "" {
		return fmt.Errorf("notifier: empty recipient")
	}
	msg := strings.Join([]string{
		"From: " + n.from,
		"To: " + recipient,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"utf-8\"",
		"",
		body,
	}, "\r\n")
	if err := smtp.SendMail(n.addr, n.auth, n.from, []string{recipient}, []byte(msg)); err != nil {
		return fmt.Errorf("send mail to %s: %w", recipient, err)
	}
	return nil
}

// Log writes notifications to the application log. Used in development
// and as the fallback backend.
type Log struct {
	logger *zap.Logger
}

// NewLog builds a log-backed notifier.
func NewLog(logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{logger: logger}
}

// Send records the notification in the log stream.
func (n *Log) Send(recipient, subject, body string) error {
	n.logger.Sugar().Infow("notification",
		"recipient", recipient,
		"subject", subject,
		"body", body,
	)
	return nil
}
