package mail

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/instastick/storefront-auth/internal/core/domain"
)

// LogNotifier writes notifications to the log instead of sending them. It is
// selected when no SMTP host is configured, so codes and reset links are
// visible during local development.
type LogNotifier struct {
	renderer *Renderer
	log      zerolog.Logger
}

func NewLogNotifier(renderer *Renderer, log zerolog.Logger) *LogNotifier {
	return &LogNotifier{renderer: renderer, log: log}
}

func (l *LogNotifier) Send(_ context.Context, n domain.Notification) error {
	msg, err := l.renderer.Render(n)
	if err != nil {
		return err
	}
	l.log.Info().
		Str("kind", string(n.Kind)).
		Str("email", n.To).
		Str("subject", msg.Subject).
		Str("body", msg.Text).
		Msg("email not sent: smtp disabled")
	return nil
}
