// Package mailer delivers plain-text mail such as one-time codes.
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"net/smtp"
	"strings"
	"time"
)

// Sender delivers a single message.
type Sender interface {
	Send(ctx context.Context, subject, body, from, to string) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

var _ Sender = (*SMTPSender)(nil)

// SMTPSender sends mail through an SMTP relay.
type SMTPSender struct {
	cfg      SMTPConfig
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg, sendMail: smtp.SendMail}
}

func (s *SMTPSender) Send(ctx context.Context, subject, body, from, to string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fromAddr, err := mail.ParseAddress(from)
	if err != nil {
		return fmt.Errorf("invalid from address %q: %w", from, err)
	}
	toAddr, err := mail.ParseAddress(to)
	if err != nil {
		return fmt.Errorf("invalid recipient address %q: %w", to, err)
	}

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	msg := buildMessage(fromAddr, toAddr, subject, body, time.Now().UTC())
	if err := s.sendMail(addr, auth, fromAddr.Address, []string{toAddr.Address}, msg); err != nil {
		return fmt.Errorf("sending mail to %s: %w", toAddr.Address, err)
	}
	return nil
}

// buildMessage renders an RFC 5322 plain-text message.
func buildMessage(from, to *mail.Address, subject, body string, date time.Time) []byte {
	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("From: %s\r\n", from.String()))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", to.String()))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	msg.WriteString(fmt.Sprintf("Date: %s\r\n", date.Format(time.RFC1123Z)))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)
	return []byte(msg.String())
}

var _ Sender = (*LogSender)(nil)

// LogSender writes messages to the log instead of delivering them. Used when
// no SMTP host is configured.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, subject, body, from, to string) error {
	s.logger.InfoContext(ctx, "Mail not delivered, SMTP disabled",
		slog.String("from", from),
		slog.String("to", to),
		slog.String("subject", subject),
		slog.String("body", body),
	)
	return nil
}

// New returns an SMTP sender, or a LogSender when host is empty.
func New(cfg SMTPConfig, logger *slog.Logger) Sender {
	if cfg.Host == "" {
		logger.Warn("SMTP host not configured, mail will only be logged")
		return NewLogSender(logger)
	}
	return NewSMTPSender(cfg)
}
