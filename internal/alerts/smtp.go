package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
)

// SMTPTransport delivers messages over SMTP with mandatory STARTTLS and PLAIN
// authentication. One connection is opened per Send.
type SMTPTransport struct {
	host     string
	port     int
	username string
	password string
	timeout  time.Duration
}

// NewSMTPTransport returns a transport for cfg. timeout bounds the dial and
// each SMTP command; zero keeps the library default.
func NewSMTPTransport(cfg Config, timeout time.Duration) *SMTPTransport {
	return &SMTPTransport{
		host:     cfg.Host,
		port:     cfg.Port,
		username: cfg.Username,
		password: cfg.Password,
		timeout:  timeout,
	}
}

// Send implements Transport.
func (t *SMTPTransport) Send(ctx context.Context, msg *Message) error {
	m := mail.NewMsg()
	if err := m.From(msg.From); err != nil {
		return fmt.Errorf("sender %q: %w", msg.From, err)
	}
	if err := m.To(msg.To...); err != nil {
		return fmt.Errorf("recipients: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetDate()
	m.SetBodyString(mail.TypeTextHTML, msg.HTML)

	opts := []mail.Option{
		mail.WithPort(t.port),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(t.username),
		mail.WithPassword(t.password),
	}
	if t.timeout > 0 {
		opts = append(opts, mail.WithTimeout(t.timeout))
	}

	client, err := mail.NewClient(t.host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp send via %s:%d: %w", t.host, t.port, err)
	}
	return nil
}
