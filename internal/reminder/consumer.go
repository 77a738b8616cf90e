package reminder

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/careloop/hms/internal/storage"
	"github.com/careloop/hms/libs/kafkax"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ScheduledEvent mirrors the payload written by the booking handler.
type ScheduledEvent struct {
	AppointmentID string `json:"appointment_id"`
	DoctorID      string `json:"doctor_id"`
	PatientID     string `json:"patient_id"`
	PatientEmail  string `json:"patient_email"`
	Date          string `json:"date"`
	TimeSlot      string `json:"time_slot"`
}

// Consumer reads appointment-scheduled events and mails the patient a
// confirmation. Duplicate deliveries are dropped via the inbox table.
type Consumer struct {
	reader *kafka.Reader
	logger *slog.Logger
	inbox  *storage.InboxRepository
	sender Sender
}

type Config struct {
	Brokers string
	GroupID string
	Topic   string
}

func NewConsumer(logger *slog.Logger, inboxRepo *storage.InboxRepository, sender Sender, cfg Config) *Consumer {
	brokers := kafkax.SplitBrokers(cfg.Brokers)
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &Consumer{
		reader: reader,
		logger: logger,
		inbox:  inboxRepo,
		sender: sender,
	}
}

func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka read error", "err", err)
			time.Sleep(1 * time.Second)
			continue
		}

		ctxMsg := kafkax.ExtractTraceContext(ctx, msg)
		ctxSpan, span := otel.Tracer("kafka").Start(ctxMsg, "kafka.consume",
			trace.WithAttributes(
				attribute.String("messaging.system", "kafka"),
				attribute.String("messaging.destination", msg.Topic),
			),
		)

		meta := kafkax.ExtractEventMeta(msg)

		ok, err := c.inbox.Record(ctxSpan, meta.EventID, meta.EventType)
		if err != nil {
			c.logger.Error("inbox record failed", "err", err)
			span.RecordError(err)
			span.End()
			continue
		}
		if !ok {
			c.logger.Info("duplicate event ignored", "event_id", meta.EventID, "event_type", meta.EventType)
			span.End()
			continue
		}

		if err := c.handle(msg); err != nil {
			c.logger.Error("reminder handling failed", "err", err, "event_id", meta.EventID)
			span.RecordError(err)
		}
		span.End()
	}
}

func (c *Consumer) handle(msg kafka.Message) error {
	var evt ScheduledEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		// Malformed payloads are logged and skipped, not retried.
		c.logger.Error("invalid event payload", "err", err, "topic", msg.Topic)
		return nil
	}
	if evt.PatientEmail == "" {
		return nil
	}

	subject := "Appointment confirmation"
	body := fmt.Sprintf(
		"Your appointment is confirmed for %s at %s.\nReference: %s\n",
		evt.Date, evt.TimeSlot, evt.AppointmentID,
	)
	return c.sender.Send(evt.PatientEmail, subject, body)
}
