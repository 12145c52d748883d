package kafka

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/segmentio/kafka-go"

	"ms-events/internal/config"
	"ms-events/internal/models"
)

type Producer struct {
	Writer *kafka.Writer
	Topics config.TopicConfig
}

func NewProducer(brokers []string, topics config.TopicConfig) *Producer {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.LeastBytes{},
	}
	return &Producer{Writer: writer, Topics: topics}
}

func (p *Producer) Publish(topic, key string, value []byte) error {
	return p.Writer.WriteMessages(context.Background(), kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
	})
}

// PublishTicketPurchased streams a purchase (new row or merge) to the ticket
// topic, keyed by ticket type so consumers see purchases of one type in
// order.
func (p *Producer) PublishTicketPurchased(ticket models.Ticket) error {
	value, err := json.Marshal(ticket)
	if err != nil {
		return err
	}
	return p.Publish(p.Topics.TicketPurchased, strconv.FormatInt(ticket.TicketTypeID, 10), value)
}

func (p *Producer) PublishEventCreated(event models.Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.Publish(p.Topics.EventCreated, strconv.FormatInt(event.ID, 10), value)
}

func (p *Producer) PublishEventDeleted(eventID int64) error {
	value, err := json.Marshal(map[string]int64{"event_id": eventID})
	if err != nil {
		return err
	}
	return p.Publish(p.Topics.EventDeleted, strconv.FormatInt(eventID, 10), value)
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
