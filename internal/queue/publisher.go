package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AuthQueueName is the durable queue audit events are routed to.
const AuthQueueName = "auth.events"

// BrokerURL resolves the AMQP URL from RABBITMQ_URL or AMQP_URL.  An empty
// result means auditing is switched off.
func BrokerURL() string {
	if url := os.Getenv("RABBITMQ_URL"); url != "" {
		return url
	}
	return os.Getenv("AMQP_URL")
}

// ErrReconnecting is returned by Publish while another caller is dialing
// the broker.  The event is dropped instead of queuing behind the dial.
var ErrReconnecting = errors.New("broker reconnect in progress")

// Publisher sends AuthEvents to RabbitMQ.  It dials lazily, keeps one
// channel open and drops it after any failure so the next publish
// reconnects.  Dialing happens outside the lock and only one caller dials
// at a time.  Messages are persistent.
type Publisher struct {
	url  string
	dial func(url string) (*amqp.Connection, error)

	mu      sync.Mutex
	dialing bool
	conn    *amqp.Connection
	ch      *amqp.Channel
}

func NewPublisher(url string) *Publisher {
	return &Publisher{url: url, dial: func(url string) (*amqp.Connection, error) {
		return amqp.DialConfig(url, amqp.Config{Dial: amqp.DefaultDial(2 * time.Second)})
	}}
}

// Publish sends ev to the auth.events queue.
func (p *Publisher) Publish(ctx context.Context, ev AuthEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ch, err := p.channel()
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	err = ch.PublishWithContext(ctx,
		"",            // default exchange
		AuthQueueName, // routing key = queue name
		false,         // mandatory
		false,         // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Type:         ev.Type,
			Body:         body,
		})
	if err != nil {
		if p.ch == ch {
			p.reset()
		}
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// Close releases the broker connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
	return nil
}

// channel returns the open channel, dialing when needed.  While one caller
// dials, the others get ErrReconnecting.
func (p *Publisher) channel() (*amqp.Channel, error) {
	p.mu.Lock()
	if p.ch != nil && !p.ch.IsClosed() {
		ch := p.ch
		p.mu.Unlock()
		return ch, nil
	}
	if p.dialing {
		p.mu.Unlock()
		return nil, ErrReconnecting
	}
	p.dialing = true
	p.reset()
	p.mu.Unlock()

	conn, ch, err := p.open()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.dialing = false
	if err != nil {
		return nil, err
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *Publisher) open() (*amqp.Connection, *amqp.Channel, error) {
	conn, err := p.dial(p.url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("channel open: %w", err)
	}
	if _, err := ch.QueueDeclare(AuthQueueName, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, fmt.Errorf("queue declare: %w", err)
	}
	return conn, ch, nil
}

// reset drops the connection.  p.mu is held.
func (p *Publisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.ch = nil, nil
}
