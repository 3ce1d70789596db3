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

	"github.com/BradenHooton/roster/pkg/logger"
)

// EmailSender delivers password reset links.
type EmailSender interface {
	SendPasswordResetEmail(ctx context.Context, to, name, resetURL string, expiresAt time.Time) error
}

// sesAPI is the part of the SES client used to send mail.
type sesAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESEmailService sends emails using AWS SES
type SESEmailService struct {
	client      sesAPI
	fromAddress string
	logger      *slog.Logger
}

// NewSESEmailService creates a new AWS SES email service
func NewSESEmailService(ctx context.Context, region, fromAddress string, logger *slog.Logger) (*SESEmailService, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return newSESEmailService(ses.NewFromConfig(cfg), fromAddress, logger), nil
}

func newSESEmailService(client sesAPI, fromAddress string, logger *slog.Logger) *SESEmailService {
	return &SESEmailService{
		client:      client,
		fromAddress: fromAddress,
		logger:      logger,
	}
}

// SendPasswordResetEmail mails the one-time reset link to a user.
func (s *SESEmailService) SendPasswordResetEmail(ctx context.Context, to, name, resetURL string, expiresAt time.Time) error {
	minutes := int(time.Until(expiresAt).Round(time.Minute).Minutes())
	if minutes < 1 {
		minutes = 1
	}

	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .button { display: inline-block; background-color: #0066cc; color: white; padding: 12px 24px; text-decoration: none; border-radius: 4px; margin: 20px 0; }
        .footer { color: #666; font-size: 12px; margin-top: 20px; padding-top: 20px; border-top: 1px solid #eee; }
    </style>
</head>
<body>
    <div class="container">
        <h1>Reset your password</h1>
        <p>Hi %s,</p>
        <p>We received a request to reset the password for your account. Use the link below to choose a new one:</p>
        <p><a href="%s" class="button">Reset Password</a></p>
        <p>Or copy and paste this link in your browser:<br>
        <code>%s</code></p>
        <p>This link expires in %d minutes and can only be used once.</p>
        <p>If you did not ask for a reset, you can ignore this email and your password will stay the same.</p>
        <div class="footer">
            <p>This is an automated message. Please do not reply to this email.</p>
        </div>
    </div>
</body>
</html>
`, name, resetURL, resetURL, minutes)

	textBody := fmt.Sprintf(`Reset your password

Hi %s,

We received a request to reset the password for your account. Open the link below to choose a new one:

%s

This link expires in %d minutes and can only be used once.

If you did not ask for a reset, you can ignore this email and your password will stay the same.
`, name, resetURL, minutes)

	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String("Your password reset link"),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data: aws.String(htmlBody),
				},
				Text: &types.Content{
					Data: aws.String(textBody),
				},
			},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("failed to send password reset email via SES",
			slog.String("email", logger.SanitizedEmail(to)),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("password reset email sent",
		slog.String("email", logger.SanitizedEmail(to)),
		slog.String("message_id", aws.ToString(result.MessageId)))

	return nil
}
