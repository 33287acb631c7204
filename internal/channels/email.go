package channels

import (
	"context"
	"fmt"
	"net"
	"time"

	gomail "github.com/wneessen/go-mail"

	"opspulse_backend/internal/signals/domain"
	"opspulse_backend/platform/config"
)

// EmailChannel delivers follow-up messages over SMTP.
type EmailChannel struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

// NewEmailChannel creates the email channel, or nil when mail is disabled.
func NewEmailChannel(cfg config.MailConfig) *EmailChannel {
	if !cfg.IsMailEnabled() {
		return nil
	}
	return &EmailChannel{
		host:      cfg.GetSMTPHost(),
		port:      cfg.GetSMTPPort(),
		username:  cfg.GetSMTPUsername(),
		password:  cfg.GetSMTPPassword(),
		fromName:  cfg.GetMailFromName(),
		fromEmail: cfg.GetMailFromAddress(),
	}
}

func (c *EmailChannel) Kind() domain.ChannelKind { return domain.ChannelEmail }

func (c *EmailChannel) Send(ctx context.Context, out Outbound) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(c.fromName, c.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(out.To); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(fmt.Sprintf("Follow-up: %s", out.Subject.String()))
	msg.SetBodyString(gomail.TypeTextPlain, out.Body)

	client, err := gomail.NewClient(c.host,
		gomail.WithPort(c.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(c.username),
		gomail.WithPassword(c.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
