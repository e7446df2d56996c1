package blogservice

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sushihentaime/blogpipe/internal/common"
)

const (
	outcomePersisted = "persisted"
	outcomeDuplicate = "duplicate"
	outcomeMalformed = "malformed"
	outcomeRejected  = "rejected"
	outcomeRequeued  = "requeued"
)

// DefaultConsumerTimeout bounds the store work done for a single message.
const DefaultConsumerTimeout = 10 * time.Second

// Consumer drains BlogQueue and persists every submission it receives.
type Consumer struct {
	m       *BlogModel
	mc      common.MessageConsumer
	name    string
	timeout time.Duration
	logger  *slog.Logger
	metrics *common.Metrics
}

func NewConsumer(db *sql.DB, mc common.MessageConsumer, name string, timeout time.Duration, logger *slog.Logger, metrics *common.Metrics) *Consumer {
	if timeout <= 0 {
		timeout = DefaultConsumerTimeout
	}

	return &Consumer{
		m:       newBlogModel(db),
		mc:      mc,
		name:    name,
		timeout: timeout,
		logger:  logger,
		metrics: metrics,
	}
}

// Run processes deliveries one at a time until ctx is cancelled or the broker closes the delivery channel.
// A message that has been received is always acked or nacked before Run returns.
func (c *Consumer) Run(ctx context.Context) error {
	msgs, err := c.mc.Consume(common.BlogQueue, c.name)
	if err != nil {
		return err
	}

	c.logger.Info("blog consumer started", slog.String("queue", string(common.BlogQueue)), slog.String("consumer", c.name))

	return c.run(ctx, msgs)
}

func (c *Consumer) run(ctx context.Context, msgs <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("blog consumer stopped", slog.String("consumer", c.name))
			return nil

		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("%w: delivery channel closed", common.ErrQueueUnavailable)
			}

			c.handle(ctx, d)
		}
	}
}

// handle runs the unit of work for d on a context that outlives cancellation of ctx, then settles d exactly once.
func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	outcome, err := c.persist(pctx, d)
	c.metrics.ConsumerOutcome(outcome)

	attrs := []any{slog.String("message_id", d.MessageId), slog.String("outcome", outcome)}
	if err != nil {
		attrs = append(attrs, slog.Any("error", err))
	}

	var settleErr error
	switch outcome {
	case outcomePersisted, outcomeDuplicate:
		c.logger.Info("blog message processed", attrs...)
		settleErr = d.Ack(false)
	case outcomeRequeued:
		c.logger.Warn("blog message requeued", attrs...)
		settleErr = d.Nack(false, true)
	default:
		c.logger.Error("blog message dead-lettered", attrs...)
		settleErr = d.Nack(false, false)
	}

	if settleErr != nil {
		c.logger.Error("could not settle blog message", slog.String("message_id", d.MessageId), slog.Any("error", settleErr))
	}
}

// persist decodes d and inserts the blog. The returned outcome decides how d is settled.
func (c *Consumer) persist(ctx context.Context, d amqp.Delivery) (string, error) {
	b, err := decodeBlogMessage(d)
	if err != nil {
		return outcomeMalformed, err
	}

	inserted, err := c.m.insert(ctx, b)
	switch {
	case err == nil && inserted:
		return outcomePersisted, nil
	case err == nil:
		return outcomeDuplicate, nil
	case errors.Is(err, ErrUserForeignKey):
		return outcomeRejected, err
	default:
		return outcomeRequeued, err
	}
}

// decodeBlogMessage turns a delivery into a Blog ready to insert. The AMQP message id becomes the blog id so that
// a redelivered message maps onto the row it already created.
func decodeBlogMessage(d amqp.Delivery) (*Blog, error) {
	var req CreateBlogRequest
	if err := json.Unmarshal(d.Body, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrMalformedMessage, err)
	}

	v := common.NewValidator()
	validateCreateBlog(v, &req)
	if !v.Valid() {
		return nil, fmt.Errorf("%w: %v", common.ErrMalformedMessage, v.ValidationError())
	}

	id, err := uuid.Parse(d.MessageId)
	if err != nil {
		id = uuid.New()
	}

	return &Blog{
		ID:      id,
		Title:   req.Title,
		Content: sanitizeMarkdown(req.Content),
		UserID:  req.UserID,
	}, nil
}
