package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/wneessen/go-mail"

	"github.com/bytemarket/otpengine"
)

// SMTPConfig instances are intended to be configured during initialization
// and then treated as immutable unless documented otherwise.
type SMTPConfig struct {
	Host     string
	Port     int
	From     string
	FromName string
	Username string
	Password string

	// UseTLS enforces STARTTLS on the submission port. Port 465 implies
	// implicit TLS regardless of this flag.
	UseTLS bool
}

// SMTPNotifier delivers verification codes by email over SMTP.
type SMTPNotifier struct {
	cfg    SMTPConfig
	client *mail.Client
}

// NewSMTPNotifier builds the SMTP client up front so that credential or
// option errors surface at wiring time rather than on the first send.
func NewSMTPNotifier(cfg SMTPConfig) (*SMTPNotifier, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("notify: smtp host is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("notify: from address is required")
	}

	options := []mail.Option{
		mail.WithPort(cfg.Port),
	}
	switch {
	case cfg.Port == 465:
		options = append(options, mail.WithSSL())
	case cfg.UseTLS:
		options = append(options, mail.WithTLSPolicy(mail.TLSMandatory))
	default:
		options = append(options, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	if cfg.Username != "" {
		options = append(options,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, options...)
	if err != nil {
		return nil, fmt.Errorf("notify: create smtp client: %w", err)
	}

	return &SMTPNotifier{cfg: cfg, client: client}, nil
}

// Send implements [otpengine.Notifier]. Delivery failures are returned to
// the engine verbatim; the engine decides how a failed dispatch affects the
// challenge lifecycle.
func (n *SMTPNotifier) Send(ctx context.Context, msg otpengine.Message) error {
	m := mail.NewMsg()

	var err error
	if n.cfg.FromName != "" {
		err = m.FromFormat(n.cfg.FromName, n.cfg.From)
	} else {
		err = m.From(n.cfg.From)
	}
	if err != nil {
		return fmt.Errorf("notify: set from address: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return fmt.Errorf("notify: set to address: %w", err)
	}

	m.Subject(subjectFor(msg.Template))
	m.SetBodyString(mail.TypeTextPlain, renderBody(msg))

	if err := n.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("notify: send mail: %w", err)
	}
	return nil
}

func subjectFor(tpl otpengine.Template) string {
	switch tpl {
	case otpengine.TemplatePasswordReset:
		return "Reset your account password"
	default:
		return "Verify your account"
	}
}

func renderBody(msg otpengine.Message) string {
	name := msg.Name
	if name == "" {
		name = "there"
	}
	minutes := int(msg.ExpiresIn.Minutes())

	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", name)
	switch msg.Template {
	case otpengine.TemplatePasswordReset:
		b.WriteString("We received a request to reset the password for your account.\n\n")
	default:
		b.WriteString("Welcome! Please confirm your email address to complete your registration.\n\n")
	}
	fmt.Fprintf(&b, "Your verification code is: %s\n\n", msg.Code)
	fmt.Fprintf(&b, "This code expires in %d minutes.\n\n", minutes)
	b.WriteString("If you did not request this code, you can safely ignore this email.\n")
	return b.String()
}
