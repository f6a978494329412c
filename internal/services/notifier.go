package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	pkglogger "github.com/BradenHooton/resera/pkg/logger"
)

// Notifier tells account owners about security-relevant changes.
// Delivery errors are reported to the caller but never change an auth outcome.
type Notifier interface {
	NotifyLockout(ctx context.Context, email string, lockedUntil time.Time) error
	NotifyPasswordChanged(ctx context.Context, email string, changedAt time.Time) error
	NotifyTwoFactorChanged(ctx context.Context, email string, enabled bool) error
}

// NoopNotifier discards every notice
type NoopNotifier struct{}

func (NoopNotifier) NotifyLockout(context.Context, string, time.Time) error { return nil }
func (NoopNotifier) NotifyPasswordChanged(context.Context, string, time.Time) error { return nil }
func (NoopNotifier) NotifyTwoFactorChanged(context.Context, string, bool) error { return nil }

// sesAPI is the subset of the SES client used for sending
type sesAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESNotifier sends plain-text security notices through AWS SES
type SESNotifier struct {
	client      sesAPI
	fromAddress string
	logger      *slog.Logger
}

// NewSESNotifier loads the default AWS credential chain for region
func NewSESNotifier(ctx context.Context, region, fromAddress string, logger *slog.Logger) (*SESNotifier, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &SESNotifier{
		client:      ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		logger:      logger,
	}, nil
}

func (n *SESNotifier) NotifyLockout(ctx context.Context, email string, lockedUntil time.Time) error {
	body := fmt.Sprintf(`Your account was temporarily locked after repeated failed sign-in attempts.

It will unlock automatically at %s.

If these attempts were not yours, change your password once the lock expires.
`, lockedUntil.UTC().Format(time.RFC1123))

	return n.send(ctx, email, "Your account has been temporarily locked", body)
}

func (n *SESNotifier) NotifyPasswordChanged(ctx context.Context, email string, changedAt time.Time) error {
	body := fmt.Sprintf(`The password for your account was changed at %s.

If you did not make this change, contact your administrator immediately.
`, changedAt.UTC().Format(time.RFC1123))

	return n.send(ctx, email, "Your password was changed", body)
}

func (n *SESNotifier) NotifyTwoFactorChanged(ctx context.Context, email string, enabled bool) error {
	state := "disabled"
	if enabled {
		state = "enabled"
	}
	body := fmt.Sprintf(`Two-factor authentication was %s on your account.

If you did not make this change, contact your administrator immediately.
`, state)

	return n.send(ctx, email, "Two-factor authentication "+state, body)
}

func (n *SESNotifier) send(ctx context.Context, to, subject, body string) error {
	input := &ses.SendEmailInput{
		Source: aws.String(n.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
	}

	result, err := n.client.SendEmail(ctx, input)
	if err != nil {
		n.logger.Error("failed to send notice via SES",
			pkglogger.EmailAttr(to),
			slog.String("subject", subject),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	n.logger.Info("security notice sent",
		pkglogger.EmailAttr(to),
		slog.String("subject", subject),
		slog.String("message_id", aws.ToString(result.MessageId)))

	return nil
}
