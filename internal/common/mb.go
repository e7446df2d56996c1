package common

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type Exchange string

type Queue string

type BindingKey string

// Message is the unit handed to the broker. ID becomes the AMQP message id.
type Message struct {
	ID   string
	Body []byte
}

type MessageProducer interface {
	Publish(ctx context.Context, msg Message, key BindingKey, exchange Exchange) error
}

type MessageConsumer interface {
	Consume(queue Queue, consumer string) (<-chan amqp.Delivery, error)
}

const (
	// DefaultExchange routes by queue name.
	DefaultExchange Exchange = ""

	BlogQueue           Queue      = "BlogQueue"
	BlogQueueKey        BindingKey = "BlogQueue"
	BlogDeadLetterQueue Queue      = "BlogQueue.dead"

	UserExchange     Exchange   = "user_exchange"
	UserCreatedQueue Queue      = "user_created_queue"
	UserCreatedKey   BindingKey = "user.created"
)

type MessageBroker struct {
	conn *amqp.Connection

	// mu guards ch, the publishing channel, which runs in confirm mode.
	mu        sync.Mutex
	ch        *amqp.Channel
	consumers []*amqp.Channel
}

func NewMessageBroker(URI string) (*MessageBroker, error) {
	conn, ch, err := connectAMQP(URI)
	if err != nil {
		return nil, err
	}

	if err := ch.Confirm(false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("%w: could not enable publisher confirms: %v", ErrQueueUnavailable, err)
	}

	return &MessageBroker{
		conn: conn,
		ch:   ch,
	}, nil
}

func connectAMQP(URI string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(URI)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: could not connect to AMQP: %v", ErrQueueUnavailable, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("%w: could not open channel: %v", ErrQueueUnavailable, err)
	}

	return conn, ch, nil
}

// Close closes the consumer channels, the publishing channel and the connection of the message broker.
func (mb *MessageBroker) Close() error {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	var errs []error
	for _, ch := range mb.consumers {
		if err := ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
	}
	mb.consumers = nil

	if err := mb.ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		errs = append(errs, err)
	}

	if err := mb.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// IsConnected reports whether the underlying connection is still open.
func (mb *MessageBroker) IsConnected() bool {
	return mb.conn != nil && !mb.conn.IsClosed()
}

func SetupUserExchange(mb *MessageBroker) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	err := mb.ch.ExchangeDeclare(string(UserExchange), "direct", true, false, false, false, nil)
	if err != nil {
		return err
	}

	_, err = mb.ch.QueueDeclare(string(UserCreatedQueue), true, false, false, false, nil)
	if err != nil {
		return err
	}

	err = mb.ch.QueueBind(string(UserCreatedQueue), string(UserCreatedKey), string(UserExchange), false, nil)
	if err != nil {
		return err
	}

	return nil
}

// SetupBlogQueue declares the blog ingestion queue on the default exchange together with its dead-letter queue.
// Messages rejected without requeue are routed to BlogDeadLetterQueue.
func SetupBlogQueue(mb *MessageBroker) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	_, err := mb.ch.QueueDeclare(string(BlogDeadLetterQueue), true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("could not declare %s: %w", BlogDeadLetterQueue, err)
	}

	args := amqp.Table{
		"x-dead-letter-exchange":    string(DefaultExchange),
		"x-dead-letter-routing-key": string(BlogDeadLetterQueue),
	}

	_, err = mb.ch.QueueDeclare(string(BlogQueue), true, false, false, false, args)
	if err != nil {
		return fmt.Errorf("could not declare %s: %w", BlogQueue, err)
	}

	return nil
}

// Publish sends msg and blocks until the broker confirms it. It does not wait for any consumer.
func (mb *MessageBroker) Publish(ctx context.Context, msg Message, key BindingKey, exchange Exchange) error {
	mb.mu.Lock()
	dc, err := mb.ch.PublishWithDeferredConfirmWithContext(ctx, string(exchange), string(key), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.ID,
		Timestamp:    time.Now().UTC(),
		Body:         msg.Body,
	})
	mb.mu.Unlock()
	if err != nil {
		return fmt.Errorf("%w: could not publish message: %v", ErrQueueUnavailable, err)
	}

	ok, err := dc.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: waiting for publish confirmation: %v", ErrQueueUnavailable, err)
	}
	if !ok {
		return fmt.Errorf("%w: broker refused message %s", ErrQueueUnavailable, msg.ID)
	}

	return nil
}

// Consume opens a dedicated channel with a prefetch of one so that deliveries arrive strictly one at a time.
func (mb *MessageBroker) Consume(queue Queue, consumer string) (<-chan amqp.Delivery, error) {
	ch, err := mb.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("%w: could not open consumer channel: %v", ErrQueueUnavailable, err)
	}

	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("%w: could not set QoS: %v", ErrQueueUnavailable, err)
	}

	msgs, err := ch.Consume(string(queue), consumer, false, false, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("%w: could not consume message: %v", ErrQueueUnavailable, err)
	}

	mb.mu.Lock()
	mb.consumers = append(mb.consumers, ch)
	mb.mu.Unlock()

	return msgs, nil
}
