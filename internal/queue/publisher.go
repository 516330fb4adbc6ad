// Package queue delivers booking lifecycle events to RabbitMQ for the
// payment and notification collaborators.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/kirinyoku/venue-hold/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
)

const BookingEventsQueue = "booking.events"

type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher keeps one connection and channel open for the life of the
// process. Channels are not safe for concurrent publishing, so publishes are
// serialized.
type Publisher struct {
	mu    sync.Mutex
	conn  *amqp.Connection
	ch    channel
	queue string
	now   func() time.Time
}

func NewPublisher(url string) (*Publisher, error) {
	const op = "queue.NewPublisher"

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	p, err := newPublisher(ch, BookingEventsQueue)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%s:%w", op, err)
	}
	p.conn = conn

	return p, nil
}

func newPublisher(ch channel, queue string) (*Publisher, error) {
	// durable so events survive broker restarts
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, err
	}

	return &Publisher{ch: ch, queue: queue, now: time.Now}, nil
}

func (p *Publisher) PublishBookingEvent(ctx context.Context, ev domain.BookingEvent) error {
	const op = "queue.Publisher.PublishBookingEvent"

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.BookingID.String() + ":" + string(ev.Type),
		Type:         string(ev.Type),
		Timestamp:    p.now().UTC(),
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	_ = p.ch.Close()
	if p.conn != nil {
		return p.conn.Close()
	}

	return nil
}
