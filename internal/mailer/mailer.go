package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/MohamedNashad/seafood-node-api/internal/util"

	mail "github.com/go-mail/mail"
	"go.uber.org/zap"
)

// Dispatcher delivers a plain-text message to one recipient
type Dispatcher interface {
	Send(ctx context.Context, to, subject, message string) error
}

// SMTPSender implements Dispatcher over SMTP
type SMTPSender struct {
	Host    string
	Port    int
	From    string
	User    string
	Pass    string
	Timeout time.Duration
	logger  *zap.Logger
}

// NewSMTPSender creates a new SMTPSender
func NewSMTPSender(host string, port int, from, user, pass string) *SMTPSender {
	return &SMTPSender{
		Host:    host,
		Port:    port,
		From:    from,
		User:    user,
		Pass:    pass,
		Timeout: 10 * time.Second,
		logger:  util.Named("mailer"),
	}
}

// Send delivers the message. The dial timeout is bounded by the context deadline.
func (s *SMTPSender) Send(ctx context.Context, to, subject, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := mail.NewMessage()
	m.SetHeader("From", s.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", message)

	d := mail.NewDialer(s.Host, s.Port, s.User, s.Pass)
	d.TLSConfig = &tls.Config{ServerName: s.Host}
	d.Timeout = s.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < d.Timeout {
			d.Timeout = remaining
		}
	}
	if s.Port == 465 {
		d.SSL = true
	}

	if err := d.DialAndSend(m); err != nil {
		s.logger.Error("smtp send failed", util.MaskedEmail("to", to), zap.Error(err))
		return fmt.Errorf("smtp send: %w", err)
	}

	s.logger.Info("email sent", util.MaskedEmail("to", to), zap.String("subject", subject))
	return nil
}

// Discard drops every message. Used when SMTP is not configured.
type Discard struct{}

func (Discard) Send(ctx context.Context, to, subject, message string) error {
	util.Named("mailer").Debug("mail discarded", util.MaskedEmail("to", to), zap.String("subject", subject))
	return nil
}
