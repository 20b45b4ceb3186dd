package service

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-engine/internal/events"
)

// Publisher delivers a payload to an opaque pub/sub channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// NotificationService fans client notifications out to the chat channel and
// logs lifecycle events.
type NotificationService struct {
	dispatcher events.Dispatcher
	publisher  Publisher
	channel    string
	logger     *zap.Logger
}

// NewNotificationService creates the service. A nil publisher only logs.
func NewNotificationService(dispatcher events.Dispatcher, publisher Publisher, channel string, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		publisher:  publisher,
		channel:    channel,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventClientNotified, n.handleClientNotified)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.logEvent)
	n.dispatcher.Subscribe(events.EventTicketAssigned, n.logEvent)
	n.dispatcher.Subscribe(events.EventTicketEscalated, n.logEvent)
	n.dispatcher.Subscribe(events.EventTicketDelegated, n.logEvent)
	n.dispatcher.Subscribe(events.EventWorkflowApplied, n.logEvent)
}

// clientMessage is the wire shape published for chat delivery.
type clientMessage struct {
	EventID  string `json:"event_id"`
	TicketID string `json:"ticket_id"`
	events.ClientNotifiedPayload
}

func (n *NotificationService) handleClientNotified(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.ClientNotifiedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	n.logger.Info("ClientNotified",
		zap.String("ticket_id", event.TicketID),
		zap.String("client_id", payload.ClientID),
		zap.String("type", string(payload.Notification.Type)))
	if n.publisher == nil {
		return nil
	}

	body, err := json.Marshal(clientMessage{
		EventID:               event.ID,
		TicketID:              event.TicketID,
		ClientNotifiedPayload: payload,
	})
	if err != nil {
		return err
	}
	if err := n.publisher.Publish(ctx, n.channel, body); err != nil {
		return fmt.Errorf("publish client notification: %w", err)
	}
	return nil
}

func (n *NotificationService) logEvent(_ context.Context, event events.Event) error {
	n.logger.Info(string(event.Type),
		zap.String("ticket_id", event.TicketID),
		zap.String("actor", event.Actor.UserID),
		zap.Any("payload", event.Payload))
	return nil
}
