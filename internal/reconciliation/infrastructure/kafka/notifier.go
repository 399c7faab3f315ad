package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/shopcore-ng/commerce-core/internal/reconciliation/application"
	"github.com/shopcore-ng/commerce-core/pkg/tracing"
)

type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Notifier publishes notification requests for the downstream dispatcher
// (email/SMS). Fire-and-forget: a publish failure is logged and returned for
// the caller to log, never retried here.
type Notifier struct {
	log      *slog.Logger
	producer Producer
	topic    string
}

func NewNotifier(log *slog.Logger, producer Producer, topic string) *Notifier {
	return &Notifier{log: log, producer: producer, topic: topic}
}

type notificationMessage struct {
	ID        string            `json:"id"`
	Kind      string            `json:"kind"`
	Recipient string            `json:"recipient"`
	Data      map[string]string `json:"data"`
	CreatedAt time.Time         `json:"created_at"`
}

func (n *Notifier) Notify(ctx context.Context, note application.Notification) error {
	payload, err := json.Marshal(notificationMessage{
		ID:        uuid.NewString(),
		Kind:      note.Kind,
		Recipient: note.Recipient,
		Data:      note.Data,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	headers := tracing.InjectKafkaHeaders(ctx, []kafka.Header{
		{Key: "event_type", Value: []byte(note.Kind)},
	})

	msg := kafka.Message{
		Topic:   n.topic,
		Key:     []byte(note.Recipient),
		Value:   payload,
		Headers: headers,
	}
	if err := n.producer.WriteMessages(ctx, msg); err != nil {
		n.log.Error("notification publish failed", "kind", note.Kind, "err", err)
		return err
	}
	return nil
}
