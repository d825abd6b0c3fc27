package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"tablebook/internal/config"
	"tablebook/internal/logger"
	"tablebook/internal/models"
)

// Event is the message the notification workers consume: a template id,
// a recipient and the variables to render into it.
type Event struct {
	Event     string            `json:"event"`
	Template  string            `json:"template"`
	Recipient string            `json:"recipient"`
	Variables map[string]string `json:"variables"`
	Timestamp time.Time         `json:"timestamp"`
}

// Producer dispatches notification events to Kafka. Delivery is
// fire-and-forget from the engine's perspective: the transition has
// already committed by the time an event is published, and publish
// failures are logged by the caller, never retried here.
type Producer struct {
	writer *kafka.Writer
	topics config.TopicConfig
	logger *logger.Logger
}

func NewProducer(brokers []string, topics config.TopicConfig, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.LeastBytes{},
	}
	return &Producer{writer: writer, topics: topics, logger: log}
}

func (p *Producer) publish(topic, key string, event Event) error {
	event.Timestamp = time.Now()
	msgBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}

	p.logger.LogKafka("PUBLISH", topic, event.Event+" for "+key)

	return p.writer.WriteMessages(context.Background(), kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: msgBytes,
	})
}

// ReservationEvent publishes a reservation lifecycle notification.
func (p *Producer) ReservationEvent(event string, res models.Reservation) error {
	recipient := res.GuestEmail
	if recipient == "" {
		recipient = res.GuestPhone
	}
	return p.publish(p.topics.ReservationEvents, res.Code, Event{
		Event:     event,
		Template:  event,
		Recipient: recipient,
		Variables: map[string]string{
			"guest_name": res.GuestName,
			"code":       res.Code,
			"date":       res.Date,
			"time":       res.Time,
			"party_size": fmt.Sprintf("%d", res.PartySize),
			"status":     string(res.Status),
		},
	})
}

// WaitlistEvent publishes a waitlist notification.
func (p *Producer) WaitlistEvent(event string, entry models.WaitlistEntry) error {
	return p.publish(p.topics.WaitlistEvents, entry.ID, Event{
		Event:     event,
		Template:  event,
		Recipient: entry.GuestPhone,
		Variables: map[string]string{
			"guest_name":     entry.GuestName,
			"party_size":     fmt.Sprintf("%d", entry.PartySize),
			"position":       fmt.Sprintf("%d", entry.Position),
			"estimated_wait": fmt.Sprintf("%d", entry.EstimatedWait),
		},
	})
}

// NoShowCharged tells the guest a no-show fee was taken.
func (p *Producer) NoShowCharged(res models.Reservation, amount int64) error {
	recipient := res.GuestEmail
	if recipient == "" {
		recipient = res.GuestPhone
	}
	return p.publish(p.topics.PaymentEvents, res.Code, Event{
		Event:     "noshow_charged",
		Template:  "noshow_charged",
		Recipient: recipient,
		Variables: map[string]string{
			"guest_name": res.GuestName,
			"code":       res.Code,
			"amount":     fmt.Sprintf("%d", amount),
		},
	})
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// Nop is a no-op notifier for when Kafka is disabled.
type Nop struct{}

func (Nop) ReservationEvent(string, models.Reservation) error { return nil }
func (Nop) WaitlistEvent(string, models.WaitlistEntry) error  { return nil }
func (Nop) NoShowCharged(models.Reservation, int64) error     { return nil }
