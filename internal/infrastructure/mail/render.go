// Package mail renders and delivers account notifications.
package mail

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"github.com/instastick/storefront-auth/internal/core/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

// Message is a rendered notification.
type Message struct {
	Subject string
	HTML    string
	Text    string
}

type view struct {
	Brand    string
	Name     string
	Code     string
	Minutes  string
	ResetURL string
}

// Renderer turns a notification into subject, HTML and plain-text bodies.
type Renderer struct {
	brand     string
	templates map[domain.NotificationKind]*template.Template
}

var kinds = []domain.NotificationKind{
	domain.NotifyOTP,
	domain.NotifyWelcome,
	domain.NotifyAccountLocked,
	domain.NotifyPasswordReset,
}

func NewRenderer(brand string) (*Renderer, error) {
	r := &Renderer{brand: brand, templates: make(map[domain.NotificationKind]*template.Template, len(kinds))}
	for _, k := range kinds {
		t, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+string(k)+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", k, err)
		}
		r.templates[k] = t
	}
	return r, nil
}

func (r *Renderer) Render(n domain.Notification) (Message, error) {
	t, ok := r.templates[n.Kind]
	if !ok {
		return Message{}, fmt.Errorf("unknown notification kind %q", n.Kind)
	}

	v := view{
		Brand:    r.brand,
		Name:     n.Name,
		Code:     n.Data[domain.DataCode],
		Minutes:  n.Data[domain.DataMinutes],
		ResetURL: n.Data[domain.DataResetURL],
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", v); err != nil {
		return Message{}, fmt.Errorf("render %s: %w", n.Kind, err)
	}

	return Message{
		Subject: r.subject(n.Kind),
		HTML:    buf.String(),
		Text:    plainText(n.Kind, v),
	}, nil
}

func (r *Renderer) subject(k domain.NotificationKind) string {
	switch k {
	case domain.NotifyOTP:
		return "Your Verification Code - " + r.brand
	case domain.NotifyWelcome:
		return "Welcome to " + r.brand + "!"
	case domain.NotifyAccountLocked:
		return "Security Alert - " + r.brand
	case domain.NotifyPasswordReset:
		return "Password Reset Request - " + r.brand
	}
	return r.brand
}

func plainText(k domain.NotificationKind, v view) string {
	switch k {
	case domain.NotifyOTP:
		return fmt.Sprintf("Hello %s,\n\nYour verification code is %s. It is valid for %s minutes.\n", v.Name, v.Code, v.Minutes)
	case domain.NotifyWelcome:
		return fmt.Sprintf("Hello %s,\n\nYour %s account is ready.\n", v.Name, v.Brand)
	case domain.NotifyAccountLocked:
		return fmt.Sprintf("Hello %s,\n\nYour account was locked for %s minutes after repeated failed sign-in attempts.\n", v.Name, v.Minutes)
	case domain.NotifyPasswordReset:
		return fmt.Sprintf("Hello %s,\n\nReset your password within %s minutes: %s\n", v.Name, v.Minutes, v.ResetURL)
	}
	return ""
}
