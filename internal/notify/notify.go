// Package notify pushes ticket status changes to buyers over PubNub.
package notify

import (
	"context"
	"fmt"

	pubnub "github.com/pubnub/go"

	"ticket-ledger/models"
)

// Publisher sends a message on a realtime channel.
type Publisher interface {
	Publish(channel string, message map[string]any) error
}

type pubnubPublisher struct {
	pn *pubnub.PubNub
}

func (p *pubnubPublisher) Publish(channel string, message map[string]any) error {
	_, _, err := p.pn.Publish().
		Channel(channel).
		Message(message).
		Execute()
	return err
}

func NewPubNub(publishKey, subscribeKey, secretKey string) *pubnub.PubNub {
	cfg := pubnub.NewConfig()
	cfg.PublishKey = publishKey
	cfg.SubscribeKey = subscribeKey
	cfg.SecretKey = secretKey
	return pubnub.NewPubNub(cfg)
}

type Notifier struct {
	pub Publisher
}

func New(pub Publisher) *Notifier {
	return &Notifier{pub: pub}
}

func NewPubNubNotifier(pn *pubnub.PubNub) *Notifier {
	return New(&pubnubPublisher{pn: pn})
}

// Channel is the buyer's private channel.
func Channel(userID string) string {
	return fmt.Sprintf("user-%s", userID)
}

func (n *Notifier) TicketStatusChanged(ctx context.Context, t *models.Ticket) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := n.pub.Publish(Channel(t.UserID), map[string]any{
		"type":      "ticket_status",
		"ticket_id": t.ID,
		"event_id":  t.EventID,
		"reference": t.PaymentReference,
		"status":    string(t.PaymentStatus),
	})
	if err != nil {
		return fmt.Errorf("publish ticket status: %w", err)
	}
	return nil
}

// Noop drops every notification.
type Noop struct{}

func (Noop) TicketStatusChanged(context.Context, *models.Ticket) error { return nil }
