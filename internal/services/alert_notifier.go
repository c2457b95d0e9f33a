package services

import (
	"context"
	"fmt"
	"log/slog"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/BradenHooton/bastion/internal/models"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// LogAlertNotifier writes critical-event alerts to the structured log. Default
// notifier when no paging integration is configured.
type LogAlertNotifier struct {
	logger *slog.Logger
}

// NewLogAlertNotifier creates a new LogAlertNotifier
func NewLogAlertNotifier(logger *slog.Logger) *LogAlertNotifier {
	return &LogAlertNotifier{logger: logger}
}

// Notify logs the critical event at error level so log-based alerting picks it up
func (n *LogAlertNotifier) Notify(ctx context.Context, event *models.SecurityEvent) error {
	attrs := []slog.Attr{
		slog.String("alert", "critical_security_event"),
		slog.String("event_type", event.EventType),
		slog.String("origin_ip", event.OriginIP),
	}
	if event.SubjectID != nil {
		attrs = append(attrs, slog.String("subject_id", event.SubjectID.String()))
	}

	n.logger.LogAttrs(ctx, slog.LevelError, "security alert", attrs...)
	return nil
}

// SESAlertNotifier emails critical-event alerts to the security contact via
// AWS SES
type SESAlertNotifier struct {
	sesClient   *ses.Client
	fromAddress string
	toAddress   string
	logger      *slog.Logger
}

// NewSESAlertNotifier creates a new SES-backed alert notifier
func NewSESAlertNotifier(region, fromAddress, toAddress string, logger *slog.Logger) (*SESAlertNotifier, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &SESAlertNotifier{
		sesClient:   ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		toAddress:   toAddress,
		logger:      logger,
	}, nil
}

// Notify sends the alert email
func (n *SESAlertNotifier) Notify(ctx context.Context, event *models.SecurityEvent) error {
	subject := ""
	if event.SubjectID != nil {
		subject = event.SubjectID.String()
	}

	textBody := fmt.Sprintf(`A critical security event was recorded.

Event type: %s
Subject:    %s
Origin IP:  %s
Occurred:   %s

Review the security event trail for details.
`, event.EventType, subject, event.OriginIP, event.OccurredAt.UTC().Format("2006-01-02T15:04:05Z07:00"))

	input := &ses.SendEmailInput{
		Source: aws.String(n.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{n.toAddress},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(fmt.Sprintf("[security alert] %s", event.EventType)),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data: aws.String(textBody),
				},
			},
		},
	}

	result, err := n.sesClient.SendEmail(ctx, input)
	if err != nil {
		n.logger.Error("failed to send alert email via SES",
			slog.String("event_type", event.EventType),
			slog.Any("error", err))
		return fmt.Errorf("failed to send alert email: %w", err)
	}

	n.logger.Info("security alert email sent",
		slog.String("event_type", event.EventType),
		slog.String("message_id", *result.MessageId))

	return nil
}
