package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/account-service/internal/config"
	"github.com/spec-kit/account-service/internal/events"
	"github.com/spec-kit/account-service/internal/mailer"
)

const sendTimeout = 10 * time.Second

// NotificationService turns lifecycle events into outbound mail. Delivery is
// strictly best-effort: a failed send is logged and swallowed, it never rolls
// back or fails the operation that triggered it.
type NotificationService struct {
	dispatcher events.Dispatcher
	mail       mailer.Mailer
	logger     *zap.Logger
	baseURL    string
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, mail mailer.Mailer, logger *zap.Logger, cfg config.AppConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		mail:       mail,
		logger:     logger,
		baseURL:    cfg.BaseURL,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventUserRegistered, n.handleUserRegistered)
	n.dispatcher.Subscribe(events.EventVerificationRequested, n.handleVerificationRequested)
	n.dispatcher.Subscribe(events.EventPasswordResetIssued, n.handlePasswordResetIssued)
	n.dispatcher.Subscribe(events.EventPasswordChanged, n.handlePasswordChanged)
}

func (n *NotificationService) handleUserRegistered(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.UserRegisteredPayload)
	if !ok {
		return nil
	}
	n.send(ctx, event, mailer.WelcomeMessage(payload.Email, payload.Name))
	if payload.VerificationToken != "" {
		n.send(ctx, event, mailer.VerificationMessage(payload.Email, n.baseURL, payload.VerificationToken))
	}
	return nil
}

func (n *NotificationService) handleVerificationRequested(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.VerificationRequestedPayload)
	if !ok {
		return nil
	}
	n.send(ctx, event, mailer.VerificationMessage(payload.Email, n.baseURL, payload.Token))
	return nil
}

func (n *NotificationService) handlePasswordResetIssued(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.PasswordResetIssuedPayload)
	if !ok {
		return nil
	}
	n.send(ctx, event, mailer.ResetMessage(payload.Email, n.baseURL, payload.Token))
	return nil
}

func (n *NotificationService) handlePasswordChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.PasswordChangedPayload)
	if !ok {
		return nil
	}
	n.send(ctx, event, mailer.PasswordChangedMessage(payload.Email))
	return nil
}

func (n *NotificationService) send(ctx context.Context, event events.Event, msg mailer.Message) {
	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	if err := n.mail.Send(sendCtx, msg); err != nil {
		n.logger.Warn("mail delivery failed",
			zap.String("event_type", string(event.Type)),
			zap.String("user_id", event.UserID),
			zap.Error(err))
		return
	}
	n.logger.Debug("mail sent",
		zap.String("event_type", string(event.Type)),
		zap.String("user_id", event.UserID))
}
