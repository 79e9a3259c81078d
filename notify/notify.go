// Package notify tells users that a try-on finished.
package notify

import (
	"context"
	"fmt"
	"html"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"github.com/raushankrgupta/fashionfit/models"
)

// Notifier delivers a try-on result. imageURL links to the composite.
type Notifier interface {
	TryOnReady(ctx context.Context, user models.UserProfile, sess models.TryOnSession, imageURL string) error
}

type Noop struct{}

func (Noop) TryOnReady(context.Context, models.UserProfile, models.TryOnSession, string) error {
	return nil
}

type sender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGrid e-mails the result. Users without an e-mail address are skipped.
type SendGrid struct {
	client   sender
	fromName string
	from     string
	logger   *zap.Logger
}

func NewSendGrid(apiKey, from string, logger *zap.Logger) *SendGrid {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SendGrid{client: sendgrid.NewSendClient(apiKey), fromName: "FashionFit", from: from, logger: logger}
}

func (s *SendGrid) TryOnReady(ctx context.Context, user models.UserProfile, sess models.TryOnSession, imageURL string) error {
	if user.Email == "" {
		return nil
	}

	subject := "Your FashionFit try-on is ready"
	text := fmt.Sprintf("Your try-on %s is ready: %s", sess.ID, imageURL)
	body := fmt.Sprintf(`<h1>Your try-on is ready</h1><p><a href="%s">View your look</a></p>`, html.EscapeString(imageURL))
	if rec := sess.Recommendation; rec != nil {
		text += fmt.Sprintf("\nScore: %.0f/100\n%s", rec.Score, rec.Feedback)
		body += fmt.Sprintf("<p><strong>%.0f/100</strong> %s</p>", rec.Score, html.EscapeString(rec.Feedback))
	}

	message := mail.NewSingleEmail(mail.NewEmail(s.fromName, s.from), subject, mail.NewEmail("", user.Email), text, body)
	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if response.StatusCode >= 400 {
		s.logger.Warn("sendgrid rejected email", zap.Int("status", response.StatusCode), zap.String("body", response.Body))
		return fmt.Errorf("failed to send email, status code: %d", response.StatusCode)
	}

	s.logger.Info("try-on email sent", zap.String("session_id", sess.ID), zap.Int("status", response.StatusCode))
	return nil
}
