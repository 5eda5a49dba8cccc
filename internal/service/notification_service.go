package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/payroll-sync/internal/config"
	"github.com/spec-kit/payroll-sync/internal/events"
)

// NotificationService handles emitting notifications for domain events.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventEmployeeCreated, n.handleEmployeeChanged)
	n.dispatcher.Subscribe(events.EventEmployeeUpdated, n.handleEmployeeChanged)
	n.dispatcher.Subscribe(events.EventSyncCompleted, n.handleSyncFinished)
	n.dispatcher.Subscribe(events.EventSyncRejected, n.handleSyncFinished)
}

func (n *NotificationService) handleEmployeeChanged(ctx context.Context, event events.Event) error {
	n.logger.Debug(string(event.Type), zap.String("employee_id", event.EmployeeID), zap.Any("payload", event.Payload))
	return nil
}

// handleSyncFinished logs the run summary and posts it to the webhook. A
// failed delivery is logged and does not fail the sync call.
func (n *NotificationService) handleSyncFinished(ctx context.Context, event events.Event) error {
	n.logger.Info(string(event.Type), zap.String("actor", event.Actor), zap.Any("payload", event.Payload))
	if err := n.sendWebhook(event); err != nil {
		n.logger.Warn("webhook delivery failed",
			zap.String("url", n.cfg.WebhookURL),
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
	}
	return nil
}

func (n *NotificationService) sendWebhook(event events.Event) error {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return nil
	}
	agent := fiber.Post(n.cfg.WebhookURL).
		JSON(event).
		Set("X-Event-Type", string(event.Type)).
		Timeout(n.cfg.WebhookTimeout())

	status, _, errs := agent.Bytes()
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	if status >= fiber.StatusMultipleChoices {
		return fmt.Errorf("webhook responded with status %d", status)
	}
	n.logger.Debug("webhook delivered", zap.String("event_id", event.ID), zap.Int("status", status))
	return nil
}
