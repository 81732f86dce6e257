package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/vendora/booking-platform/internal/model"
)

const (
	routingBookingConfirmed = "booking.confirmed"
	routingBookingFailed    = "booking.failed"
)

// AMQPNotifier публикует события брони в topic-exchange RabbitMQ;
// почтовый сервис подписан на booking.* и рассылает письма сам.
type AMQPNotifier struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func NewAMQPNotifier(url, exchange string) (*AMQPNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQPNotifier{conn: conn, ch: ch, exchange: exchange}, nil
}

type bookingEvent struct {
	Event      string `json:"event"`
	Version    int    `json:"version"`
	OccurredAt string `json:"occurred_at"`
	Data       struct {
		BookingID     string `json:"booking_id"`
		TenantID      string `json:"tenant_id"`
		EventDate     string `json:"event_date"`
		CustomerEmail string `json:"customer_email"`
		TotalAmount   int64  `json:"total_amount"`
		Currency      string `json:"currency"`
	} `json:"data"`
}

func (n *AMQPNotifier) BookingConfirmed(ctx context.Context, b *model.Booking) error {
	return n.publish(ctx, routingBookingConfirmed, b)
}

func (n *AMQPNotifier) BookingFailed(ctx context.Context, b *model.Booking) error {
	return n.publish(ctx, routingBookingFailed, b)
}

func (n *AMQPNotifier) publish(ctx context.Context, routingKey string, b *model.Booking) error {
	evt := bookingEvent{
		Event:      routingKey,
		Version:    1,
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	}
	evt.Data.BookingID = b.ID.String()
	evt.Data.TenantID = b.TenantID.String()
	evt.Data.EventDate = b.EventDate.Format("2006-01-02")
	evt.Data.CustomerEmail = b.CustomerEmail
	evt.Data.TotalAmount = b.TotalAmount
	evt.Data.Currency = b.Currency

	body, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return n.ch.PublishWithContext(ctx, n.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
}

func (n *AMQPNotifier) Close() error {
	if n.ch != nil {
		_ = n.ch.Close()
	}
	if n.conn != nil {
		return n.conn.Close()
	}
	return nil
}
