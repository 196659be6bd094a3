package domain

// NotificationKind selects the message template.
type NotificationKind string

const (
	NotifyOTP           NotificationKind = "otp"
	NotifyWelcome       NotificationKind = "welcome"
	NotifyAccountLocked NotificationKind = "account_locked"
	NotifyPasswordReset NotificationKind = "password_reset"
)

// Notification is one message addressed to a user.
type Notification struct {
	Kind NotificationKind
	To   string
	Name string
	// Data carries the template values (code, minutes, reset_url, ...).
	Data map[string]string
}

// Keys used in Notification.Data.
const (
	DataCode     = "code"
	DataMinutes  = "minutes"
	DataResetURL = "reset_url"
)
