package identity

import (
	"context"
	"fmt"

	goerrors "github.com/goliatone/go-errors"
	"github.com/mrz1836/postmark"
)

// LogNotifier writes notification envelopes to the logger instead of sending
// them. Meant for development; token values are redacted.
type LogNotifier struct {
	logger Logger
}

// NewLogNotifier creates a development notifier over the given logger.
func NewLogNotifier(logger Logger) LogNotifier {
	if logger == nil {
		logger = defLogger{}
	}
	return LogNotifier{logger: logger}
}

// Send implements Notifier.
func (n LogNotifier) Send(_ context.Context, to string, kind NotificationKind, data map[string]any) error {
	n.logger.Info("notification %s to %s (%d fields)", kind, to, len(data))
	return nil
}

// PostmarkNotifierConfig holds the Postmark credentials and sender identity.
type PostmarkNotifierConfig struct {
	ServerToken  string
	AccountToken string
	SenderEmail  string
	SupportEmail string
	ProductName  string
	BaseURL      string
}

// PostmarkNotifier delivers notifications through Postmark's transactional
// API. Templates are rendered inline; the token rides in a link, never in the
// subject line.
type PostmarkNotifier struct {
	client *postmark.Client
	config PostmarkNotifierConfig
}

// NewPostmarkNotifier creates a Postmark-backed Notifier. Tokens and sender
// identity are required so a misconfigured deployment fails at start up
// instead of dropping mail silently.
func NewPostmarkNotifier(cfg PostmarkNotifierConfig) (*PostmarkNotifier, error) {
	if cfg.ServerToken == "" {
		return nil, goerrors.New("postmark server token is required", goerrors.CategoryBadInput)
	}
	if cfg.SenderEmail == "" {
		return nil, goerrors.New("postmark sender email is required", goerrors.CategoryBadInput)
	}
	if cfg.ProductName == "" {
		cfg.ProductName = "StudyHall"
	}

	return &PostmarkNotifier{
		client: postmark.NewClient(cfg.ServerToken, cfg.AccountToken),
		config: cfg,
	}, nil
}

// Send implements Notifier.
func (n *PostmarkNotifier) Send(ctx context.Context, to string, kind NotificationKind, data map[string]any) error {
	subject, body := n.render(kind, data)

	resp, err := n.client.SendEmail(ctx, postmark.Email{
		From:       n.config.SenderEmail,
		ReplyTo:    n.config.SupportEmail,
		To:         to,
		Subject:    subject,
		Tag:        string(kind),
		HTMLBody:   body,
		TrackOpens: true,
		TrackLinks: "HtmlOnly",
	})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "postmark send failed")
	}
	if resp.ErrorCode > 0 {
		return goerrors.New(
			fmt.Sprintf("postmark error: %d - %s", resp.ErrorCode, resp.Message),
			goerrors.CategoryOperation,
		)
	}

	return nil
}

func (n *PostmarkNotifier) render(kind NotificationKind, data map[string]any) (subject, body string) {
	firstName, _ := data["first_name"].(string)
	if firstName == "" {
		firstName = "there"
	}
	token, _ := data["token"].(string)

	switch kind {
	case NotificationEmailVerification:
		subject = fmt.Sprintf("Verify your %s email", n.config.ProductName)
		body = fmt.Sprintf(
			`<p>Hi %s,</p><p>Confirm your email address to finish setting up your account:</p><p><a href="%s/verify-email/%s">Verify email</a></p>`,
			firstName, n.config.BaseURL, token,
		)
	case NotificationPasswordReset:
		subject = fmt.Sprintf("Reset your %s password", n.config.ProductName)
		body = fmt.Sprintf(
			`<p>Hi %s,</p><p>We received a request to reset your password. The link below expires shortly:</p><p><a href="%s/reset-password/%s">Reset password</a></p><p>If you did not request this, you can ignore this email.</p>`,
			firstName, n.config.BaseURL, token,
		)
	case NotificationWelcome:
		subject = fmt.Sprintf("Welcome to %s", n.config.ProductName)
		body = fmt.Sprintf(`<p>Hi %s,</p><p>Your account is ready.</p>`, firstName)
	default:
		subject = string(kind)
		body = fmt.Sprintf(`<p>Hi %s,</p>`, firstName)
	}

	return subject, body
}

var (
	_ Notifier = LogNotifier{}
	_ Notifier = (*PostmarkNotifier)(nil)
)
