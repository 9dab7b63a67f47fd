package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ventaflow/scheduling/internal/domain/entities"
	"github.com/ventaflow/scheduling/internal/infrastructure/notifications"
	"github.com/ventaflow/scheduling/pkg/config"
)

// NotificationService delivers booking messages over WhatsApp. Contact
// references are WhatsApp phone numbers in this deployment, so the
// commitment's contact_ref doubles as the recipient address. When
// messaging is disabled the service is a no-op.
type NotificationService struct {
	sender *notifications.WhatsAppCloudSender
	logger zerolog.Logger
}

// NewNotificationService creates a notification service. A disabled
// configuration yields a no-op service rather than an error.
func NewNotificationService(cfg config.WhatsAppConfig, logger zerolog.Logger) (*NotificationService, error) {
	svc := &NotificationService{
		logger: logger.With().Str("service", "notification").Logger(),
	}
	if !cfg.Enabled {
		return svc, nil
	}

	sender, err := notifications.NewWhatsAppCloudSender(cfg.AccessToken, cfg.PhoneNumberID)
	if err != nil {
		return nil, fmt.Errorf("failed to create WhatsApp sender: %w", err)
	}
	svc.sender = sender
	return svc, nil
}

// SendBookingConfirmation messages the contact that their booking is set
func (n *NotificationService) SendBookingConfirmation(ctx context.Context, resource *entities.Resource, commitment *entities.Commitment) error {
	body := fmt.Sprintf(
		"Your meeting with %s is booked for %s.",
		resource.Name, n.formatWhen(resource, commitment),
	)
	return n.send(commitment, body)
}

// SendRescheduleNotice messages the contact about the new time
func (n *NotificationService) SendRescheduleNotice(ctx context.Context, resource *entities.Resource, commitment *entities.Commitment) error {
	body := fmt.Sprintf(
		"Your meeting with %s has been moved to %s.",
		resource.Name, n.formatWhen(resource, commitment),
	)
	return n.send(commitment, body)
}

// SendCancellationNotice messages the contact that the booking was cancelled
func (n *NotificationService) SendCancellationNotice(ctx context.Context, resource *entities.Resource, commitment *entities.Commitment) error {
	body := fmt.Sprintf(
		"Your meeting with %s on %s has been cancelled.",
		resource.Name, n.formatWhen(resource, commitment),
	)
	return n.send(commitment, body)
}

func (n *NotificationService) send(commitment *entities.Commitment, body string) error {
	if n.sender == nil {
		return nil
	}

	messageID, err := n.sender.SendText(commitment.ContactRef, body)
	if err != nil {
		return fmt.Errorf("failed to send WhatsApp message: %w", err)
	}

	n.logger.Info().
		Str("commitment_id", commitment.ID).
		Str("message_id", messageID).
		Msg("booking notification sent")
	return nil
}

// formatWhen renders the commitment's start in the resource's timezone
func (n *NotificationService) formatWhen(resource *entities.Resource, commitment *entities.Commitment) string {
	loc, err := resource.Location()
	if err != nil {
		loc = time.UTC
	}
	return commitment.StartAt.In(loc).Format("Monday, January 2 at 3:04 PM")
}
