package notifier

import (
	"context"
	"time"

	gomail "gopkg.in/mail.v2"

	"sjsage522/flightdealworker/config"
	"sjsage522/flightdealworker/pkg/errors"
)

// mailSender is satisfied by *gomail.Dialer
type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailChannel delivers messages to the mailing list over SMTP
type EmailChannel struct {
	cfg    config.EmailConfig
	sender mailSender
}

// NewEmailChannel creates an SMTP channel. STARTTLS is required unless the
// port is the implicit TLS port 465.
func NewEmailChannel(cfg config.EmailConfig) *EmailChannel {
	dialer := gomail.NewDialer(cfg.SMTPServer, cfg.SMTPPort, cfg.Username, cfg.Password)
	dialer.Timeout = 10 * time.Second
	if cfg.SMTPPort != 465 {
		dialer.StartTLSPolicy = gomail.MandatoryStartTLS
	}
	return &EmailChannel{cfg: cfg, sender: dialer}
}

// Name implements Channel
func (c *EmailChannel) Name() string {
	return "email"
}

// Deliver sends msg with an HTML body and plain text alternative
func (c *EmailChannel) Deliver(ctx context.Context, msg *RenderedMessage, _ Notification) error {
	if !c.cfg.HasCredentials() {
		return errors.NewConfiguration("EMAIL_USERNAME, EMAIL_PASSWORD and MAILING_LIST are required to send email", nil)
	}
	if err := ctx.Err(); err != nil {
		return errors.NewNotification(c.Name(), "send canceled", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", c.cfg.Username)
	m.SetHeader("To", c.cfg.MailingList...)
	m.SetHeader("Subject", msg.Subject)

	if msg.HTML != "" && msg.Text != "" {
		m.SetBody("text/plain", msg.Text)
		m.AddAlternative("text/html", msg.HTML)
	} else if msg.HTML != "" {
		m.SetBody("text/html", msg.HTML)
	} else {
		m.SetBody("text/plain", msg.Text)
	}

	if err := c.sender.DialAndSend(m); err != nil {
		return errors.NewNotification(c.Name(), "send to "+c.cfg.SMTPServer, err)
	}
	return nil
}
