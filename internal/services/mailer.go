package services

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wneessen/go-mail"
)

// DefaultSMTPTimeout bounds a send when the caller's context has no deadline
const DefaultSMTPTimeout = 30 * time.Second

// Mailer delivers one-time sign-in codes
type Mailer interface {
	SendCode(ctx context.Context, email, code string) error
}

// SMTPMailer sends codes through an SMTP relay
type SMTPMailer struct {
	host     string
	port     int
	username string
	password string
	from     string
	timeout  time.Duration
}

// NewSMTPMailer creates a mailer for host:port; auth is skipped when username is empty
func NewSMTPMailer(host string, port int, username, password, from string) *SMTPMailer {
	return &SMTPMailer{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		timeout:  DefaultSMTPTimeout,
	}
}

func (m *SMTPMailer) client() (*mail.Client, error) {
	opts := []mail.Option{
		mail.WithPort(m.port),
		mail.WithTimeout(m.timeout),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
		mail.WithDialContextFunc(m.dial),
	}
	if m.username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.username),
			mail.WithPassword(m.password),
		)
	}
	return mail.NewClient(m.host, opts...)
}

// dial bounds every read and write on the connection by ctx, including the server greeting
func (m *SMTPMailer) dial(ctx context.Context, network, address string) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, network, address)
	if err != nil {
		return nil, err
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(m.timeout)
	}
	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return nil, err
	}
	context.AfterFunc(ctx, func() { conn.SetDeadline(time.Now()) })
	return conn, nil
}

// SendCode emails code to the recipient
func (m *SMTPMailer) SendCode(ctx context.Context, email, code string) error {
	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(email); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject("Your sign-in code")
	msg.SetBodyString(mail.TypeTextPlain, "Your sign-in code is "+code+".")

	client, err := m.client()
	if err != nil {
		return fmt.Errorf("failed to create mail client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send code: %w", err)
	}
	return nil
}

// LogMailer writes codes to the log instead of sending them; for local development
type LogMailer struct{}

// SendCode logs the code
func (LogMailer) SendCode(ctx context.Context, email, code string) error {
	log.Warn().Str("email", email).Str("code", code).Msg("SMTP not configured, sign-in code logged")
	return nil
}
