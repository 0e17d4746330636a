package identity

import (
	"context"
	"fmt"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// NotificationKind selects the template an out-of-band notification renders.
type NotificationKind string

const (
	NotificationEmailVerification NotificationKind = "email_verification"
	NotificationPasswordReset     NotificationKind = "password_reset"
	NotificationWelcome           NotificationKind = "welcome"
)

// Notifier dispatches out-of-band notifications (email). Implementations must
// treat token values in data as secrets and never log them.
type Notifier interface {
	Send(ctx context.Context, to string, kind NotificationKind, data map[string]any) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, to string, kind NotificationKind, data map[string]any) error

// Send implements Notifier.
func (f NotifierFunc) Send(ctx context.Context, to string, kind NotificationKind, data map[string]any) error {
	if f == nil {
		return nil
	}
	return f(ctx, to, kind, data)
}

type noopNotifier struct{}

func (noopNotifier) Send(context.Context, string, NotificationKind, map[string]any) error {
	return nil
}

func normalizeNotifier(n Notifier) Notifier {
	if n == nil {
		return noopNotifier{}
	}
	return n
}

// SecretHasher hashes and verifies secrets
type SecretHasher interface {
	Hash(secret string) (string, error)
	Verify(secret, hash string) bool
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] IDENTITY "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] IDENTITY "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] IDENTITY "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] IDENTITY "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
