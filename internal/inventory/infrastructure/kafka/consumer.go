package kafka

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/shopcore-ng/commerce-core/internal/inventory/application"
	recondomain "github.com/shopcore-ng/commerce-core/internal/reconciliation/domain"
	"github.com/shopcore-ng/commerce-core/pkg/tracing"
)

// Consumer reacts to terminal payment events (webhook path or reconciliation
// corrections): confirmed orders convert their holds into sales, failed or
// cancelled orders release them. The settler is idempotent, so replayed
// events are safe without a dedup store.
type Consumer struct {
	log     *slog.Logger
	reader  *kafka.Reader
	settler *application.Settler
	tracer  trace.Tracer
}

func NewConsumer(log *slog.Logger, brokers []string, topic, group string, settler *application.Settler) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
	return &Consumer{
		log:     log,
		reader:  r,
		settler: settler,
		tracer:  otel.Tracer("inventory-consumer"),
	}
}

func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			return err
		}

		msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
		msgCtx, span := c.tracer.Start(msgCtx, "ConsumePaymentEvent")
		err = c.handle(msgCtx, msg)
		span.End()

		// A failed settlement leaves the offset uncommitted so the event is
		// redelivered; the settler's idempotency makes the replay safe.
		if err != nil {
			continue
		}
		_ = c.reader.CommitMessages(ctx, msg)
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) error {
	eventType := headerValue(msg.Headers, "event_type")
	switch eventType {
	case recondomain.EventOrderPaymentConfirmed:
		var ev recondomain.OrderPaymentConfirmed
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			// Malformed payloads are committed; replaying them cannot help.
			c.log.Error("unmarshal failed", "event_type", eventType, "err", err)
			return nil
		}
		if err := c.settler.ConfirmOrder(ctx, ev.OrderID); err != nil {
			c.log.Error("order confirm settlement failed", "order_id", ev.OrderID, "err", err)
			return err
		}
	case recondomain.EventOrderPaymentCancelled:
		var ev recondomain.OrderPaymentCancelled
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			c.log.Error("unmarshal failed", "event_type", eventType, "err", err)
			return nil
		}
		if err := c.settler.CancelOrder(ctx, ev.OrderID); err != nil {
			c.log.Error("order cancel settlement failed", "order_id", ev.OrderID, "err", err)
			return err
		}
	default:
		// Other domain events on the topic are not ours to handle.
	}
	return nil
}

func headerValue(h []kafka.Header, key string) string {
	for _, hh := range h {
		if hh.Key == key {
			return string(hh.Value)
		}
	}
	return ""
}
