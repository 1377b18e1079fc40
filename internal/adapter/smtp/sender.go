package smtp

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/mailflow/mailflow/internal/config"
	"github.com/mailflow/mailflow/internal/domain/mailer"
)

// Sender hands messages to the SMTP relay through gomail. One dialer is
// shared per process; each Send opens its own connection.
type Sender struct {
	dialer   *gomail.Dialer
	from     string
	fromName string
	logger   *zap.Logger
}

func NewSender(cfg *config.Config, logger *zap.Logger) *Sender {
	return &Sender{
		dialer:   gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword),
		from:     cfg.SMTPFrom,
		fromName: cfg.SMTPFromName,
		logger:   logger.Named("smtp"),
	}
}

func (s *Sender) Send(ctx context.Context, mail mailer.Mail) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", s.from, s.fromName)
	msg.SetAddressHeader("To", mail.ToEmail, mail.ToName)
	msg.SetHeader("Subject", mail.Subject)
	msg.SetBody("text/html", mail.HTMLBody)

	if mail.AttachmentPath != "" {
		msg.Attach(mail.AttachmentPath)
	}

	if err := s.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("smtp send to %s: %w", mail.ToEmail, err)
	}

	s.logger.Info("mail_sent", zap.String("to", mail.ToEmail))
	return nil
}
