package fulfillment

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"time"

	kafkax "github.com/ariefcatur/go-storefront-checkout/internal/kafka"
	"github.com/ariefcatur/go-storefront-checkout/internal/purchases"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
)

type Publisher interface {
	Publish(ctx context.Context, key, value []byte, headers ...kafkago.Header) error
}

// KafkaOwnerAlerts publishes owner alerts; cmd/notifier delivers them.
type KafkaOwnerAlerts struct {
	Producer    Publisher
	ServiceName string
}

func (a *KafkaOwnerAlerts) Alert(ctx context.Context, alert purchases.OwnerAlertPayload) error {
	payload, err := kafkax.Marshal(alert)
	if err != nil {
		return err
	}
	env := purchases.Envelope{
		EventID:       uuid.NewString(),
		EventType:     purchases.EventOwnerAlert,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      a.ServiceName,
		CorrelationID: alert.CorrelationKey,
		Payload:       payload,
	}
	b, err := kafkax.Marshal(env)
	if err != nil {
		return err
	}
	return a.Producer.Publish(ctx, purchases.PartitionKey(alert.CorrelationKey), b,
		kafkago.Header{Key: "event_type", Value: []byte(env.EventType)})
}

type Deduper interface {
	Claim(ctx context.Context, id string) (bool, error)
	Commit(ctx context.Context, id string) error
	Release(ctx context.Context, id string) error
}

// OwnerAlertHandler consumes owner alerts and emails them to the owner.
type OwnerAlertHandler struct {
	Mailer     Mailer
	Dedup      Deduper
	OwnerEmail string
	Log        *slog.Logger
}

func (h *OwnerAlertHandler) Handle(ctx context.Context, m kafkago.Message) error {
	var env purchases.Envelope
	if err := kafkax.UnmarshalEnvelope(m.Value, &env); err != nil {
		// poison message; committing it is the only way forward
		h.Log.Error("drop undecodable alert", "offset", m.Offset, "err", err)
		return nil
	}
	if env.EventType != purchases.EventOwnerAlert {
		return nil
	}
	alert, err := kafkax.UnwrapPayload[purchases.OwnerAlertPayload](env.Payload)
	if err != nil {
		h.Log.Error("drop alert with bad payload", "event_id", env.EventID, "err", err)
		return nil
	}
	if h.OwnerEmail == "" {
		h.Log.Warn("owner email not configured", "title", alert.Title)
		return nil
	}

	first, err := h.Dedup.Claim(ctx, env.EventID)
	if err != nil {
		return fmt.Errorf("dedup claim: %w", err)
	}
	if !first {
		return nil
	}

	msg := Message{
		To:      h.OwnerEmail,
		Subject: alert.Title,
		HTML:    fmt.Sprintf("<p>%s</p><p><small>ref %s</small></p>", html.EscapeString(alert.Content), html.EscapeString(env.CorrelationID)),
	}
	if err := h.Mailer.Send(ctx, msg); err != nil {
		// let the redelivery try again
		_ = h.Dedup.Release(context.WithoutCancel(ctx), env.EventID)
		return err
	}
	if err := h.Dedup.Commit(ctx, env.EventID); err != nil {
		h.Log.Warn("dedup commit failed", "event_id", env.EventID, "err", err)
	}
	h.Log.Info("owner alert delivered", "event_id", env.EventID, "correlation_key", env.CorrelationID)
	return nil
}
