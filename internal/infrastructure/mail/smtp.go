package mail

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	gomail "github.com/wneessen/go-mail"

	"github.com/instastick/storefront-auth/internal/core/domain"
)

const sendTimeout = 15 * time.Second

// SMTPConfig holds the outgoing mail server settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Brand    string
}

// SMTPNotifier delivers notifications through an SMTP relay.
type SMTPNotifier struct {
	client   *gomail.Client
	from     string
	brand    string
	renderer *Renderer
	log      zerolog.Logger
}

func NewSMTPNotifier(cfg SMTPConfig, renderer *Renderer, log zerolog.Logger) (*SMTPNotifier, error) {
	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTimeout(sendTimeout),
	}
	if cfg.Port == 465 {
		opts = append(opts, gomail.WithSSL())
	} else {
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSOpportunistic))
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}

	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}

	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	return &SMTPNotifier{
		client:   client,
		from:     from,
		brand:    cfg.Brand,
		renderer: renderer,
		log:      log,
	}, nil
}

func (s *SMTPNotifier) Send(ctx context.Context, n domain.Notification) error {
	msg, err := s.renderer.Render(n)
	if err != nil {
		return err
	}

	m := gomail.NewMsg()
	if err := m.FromFormat(s.brand, s.from); err != nil {
		return fmt.Errorf("from address: %w", err)
	}
	if err := m.AddToFormat(n.Name, n.To); err != nil {
		return fmt.Errorf("to address: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(gomail.TypeTextHTML, msg.HTML)
	m.AddAlternativeString(gomail.TypeTextPlain, msg.Text)

	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp send %s: %w", n.Kind, err)
	}

	s.log.Info().Str("kind", string(n.Kind)).Str("email", n.To).Msg("email sent")
	return nil
}
