package notifications

import (
	"context"
	"fmt"

	"rideguard/internal/models"
	"rideguard/pkg/email"
	"rideguard/pkg/push"
	"rideguard/pkg/sms"
	"rideguard/pkg/websocket"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Recipient is one notification target resolved from a recipient class.
// Address is whatever the channel needs: a phone number, an email address, a
// device token, or a user id for in-app delivery.
type Recipient struct {
	UserID  primitive.ObjectID
	Name    string
	Channel models.NotificationChannel
	Address string
}

type Message struct {
	Title string
	Body  string
	Data  map[string]string
}

type DeliveryResult struct {
	MessageID string
	Status    models.DeliveryStatus
}

// Gateway delivers one message to one recipient. It is best effort: the
// escalation engine records the outcome and moves on, it never retries.
type Gateway interface {
	Send(ctx context.Context, recipient Recipient, message Message) (*DeliveryResult, error)
}

// MultiChannelGateway routes each recipient to the matching transport. Any
// provider may be nil when that channel is not configured; sends to an
// unconfigured channel fail like any other delivery failure.
type MultiChannelGateway struct {
	sms   sms.SMSProvider
	push  push.PushProvider
	email email.Sender
	ws    *websocket.Handler
}

func NewMultiChannelGateway(smsProvider sms.SMSProvider, pushProvider push.PushProvider, emailSender email.Sender, wsHandler *websocket.Handler) *MultiChannelGateway {
	return &MultiChannelGateway{
		sms:   smsProvider,
		push:  pushProvider,
		email: emailSender,
		ws:    wsHandler,
	}
}

func (g *MultiChannelGateway) Send(ctx context.Context, recipient Recipient, message Message) (*DeliveryResult, error) {
	switch recipient.Channel {
	case models.NotificationChannelSMS:
		return g.sendSMS(ctx, recipient, message)
	case models.NotificationChannelPush:
		return g.sendPush(ctx, recipient, message)
	case models.NotificationChannelEmail:
		return g.sendEmail(ctx, recipient, message)
	case models.NotificationChannelInApp:
		return g.sendInApp(recipient, message)
	default:
		return nil, fmt.Errorf("unsupported notification channel: %s", recipient.Channel)
	}
}

func (g *MultiChannelGateway) sendSMS(ctx context.Context, recipient Recipient, message Message) (*DeliveryResult, error) {
	if g.sms == nil {
		return nil, fmt.Errorf("sms channel not configured")
	}

	resp, err := g.sms.SendSMS(ctx, &sms.SMSRequest{
		To:      recipient.Address,
		Message: message.Body,
		Type:    "transactional",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to send sms: %w", err)
	}

	return &DeliveryResult{
		MessageID: resp.MessageID,
		Status:    models.DeliveryStatusSent,
	}, nil
}

func (g *MultiChannelGateway) sendPush(ctx context.Context, recipient Recipient, message Message) (*DeliveryResult, error) {
	if g.push == nil {
		return nil, fmt.Errorf("push channel not configured")
	}

	resp, err := g.push.SendNotification(ctx, &push.NotificationRequest{
		Token:    recipient.Address,
		Title:    message.Title,
		Body:     message.Body,
		Data:     message.Data,
		Priority: "high",
		Sound:    "emergency",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to send push notification: %w", err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("push notification rejected: %s", resp.Error)
	}

	return &DeliveryResult{
		MessageID: resp.MessageID,
		Status:    models.DeliveryStatusSent,
	}, nil
}

func (g *MultiChannelGateway) sendEmail(ctx context.Context, recipient Recipient, message Message) (*DeliveryResult, error) {
	if g.email == nil {
		return nil, fmt.Errorf("email channel not configured")
	}

	if err := g.email.Send(ctx, recipient.Address, message.Title, message.Body); err != nil {
		return nil, fmt.Errorf("failed to send email: %w", err)
	}

	return &DeliveryResult{Status: models.DeliveryStatusSent}, nil
}

func (g *MultiChannelGateway) sendInApp(recipient Recipient, message Message) (*DeliveryResult, error) {
	if g.ws == nil {
		return nil, fmt.Errorf("in-app channel not configured")
	}

	data := map[string]interface{}{
		"title": message.Title,
		"body":  message.Body,
	}
	for k, v := range message.Data {
		data[k] = v
	}

	g.ws.SendUserNotification(recipient.UserID, "emergency_alert", data)

	return &DeliveryResult{Status: models.DeliveryStatusDelivered}, nil
}
