package notify

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"docvault/pkg/domain"
)

// AMQPNotifier publishes events to a RabbitMQ queue. The channel is re-dialed
// lazily when the connection drops.
type AMQPNotifier struct {
	url   string
	queue string

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewAMQPNotifier validates configuration; the connection is established
// lazily on first publish.
func NewAMQPNotifier(url, queue string) (*AMQPNotifier, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("amqp url required")
	}
	queue = strings.TrimSpace(queue)
	if queue == "" {
		queue = "docvault.notifications"
	}
	return &AMQPNotifier{url: url, queue: queue}, nil
}

// Publish sends the event as a persistent JSON message.
func (n *AMQPNotifier) Publish(ctx context.Context, event domain.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	ch, err := n.ensureChannel()
	if err != nil {
		return err
	}
	err = ch.PublishWithContext(ctx, "", n.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Type:         event.Kind,
		Body:         body,
	})
	if err != nil {
		n.reset()
	}
	return err
}

// Close tears down the connection.
func (n *AMQPNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.conn != nil {
		err := n.conn.Close()
		n.conn = nil
		n.channel = nil
		return err
	}
	return nil
}

func (n *AMQPNotifier) ensureChannel() (*amqp.Channel, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.channel != nil && !n.conn.IsClosed() {
		return n.channel, nil
	}
	conn, err := amqp.Dial(n.url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if _, err := ch.QueueDeclare(n.queue, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, err
	}
	n.conn = conn
	n.channel = ch
	return ch, nil
}

func (n *AMQPNotifier) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.conn != nil {
		_ = n.conn.Close()
	}
	n.conn = nil
	n.channel = nil
}
