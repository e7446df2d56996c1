package mailservice

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sushihentaime/blogpipe/internal/common"
	"golang.org/x/exp/rand"
)

const (
	welcomeTemplate = "welcome_email.html"
	consumerName    = "mailservice"

	defaultMaxRetries = 5
	defaultBaseDelay  = 500 * time.Millisecond
)

func NewMailService(mb common.MessageConsumer, host, username, password, sender string, port int, logger MailLogger) *MailService {
	return newMailService(mb, NewMailer(host, port, username, password, sender, NewTemplate()), logger)
}

func newMailService(mb common.MessageConsumer, m Mailer, logger MailLogger) *MailService {
	ctx, cancel := context.WithCancel(context.Background())
	return &MailService{
		mb:         mb,
		m:          m,
		logger:     logger,
		maxRetries: defaultMaxRetries,
		baseDelay:  defaultBaseDelay,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// SendWelcomeEmail starts a goroutine that greets every user announced on user.created. It returns once consuming has started.
func (s *MailService) SendWelcomeEmail() error {
	msgs, err := s.mb.Consume(common.UserCreatedQueue, consumerName)
	if err != nil {
		s.logger.Error("could not consume message", slog.String("error", err.Error()))
		return err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				s.handle(msg)

			case <-s.ctx.Done():
				s.logger.Info("stopping SendWelcomeEmail due to context cancellation")
				return
			}
		}
	}()

	return nil
}

// handle sends one welcome email, retrying with exponential backoff and jitter. The message is acked whatever the result,
// since a lost welcome email is not worth blocking the queue for.
func (s *MailService) handle(msg amqp.Delivery) {
	var data userCreated
	if err := json.Unmarshal(msg.Body, &data); err != nil || data.Email == "" {
		s.logger.Error("could not unmarshal message", slog.String("message_id", msg.MessageId), slog.Any("error", err))
		s.settled(msg, msg.Nack(false, false))
		return
	}

	payload := struct {
		Name string
	}{
		Name: data.Name,
	}

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		err := s.m.send(data.Email, payload, welcomeTemplate)
		if err == nil {
			s.logger.Info("welcome email sent", slog.String("email", data.Email))
			s.settled(msg, msg.Ack(false))
			return
		}

		delay := time.Duration(rand.Int63n(int64(s.baseDelay) << uint(attempt)))
		s.logger.Info("delaying welcome email", slog.String("email", data.Email), slog.Int("attempt", attempt), slog.Duration("delay", delay), slog.String("error", err.Error()))

		select {
		case <-time.After(delay):
		case <-s.ctx.Done():
			// put it back for the next process to pick up
			s.settled(msg, msg.Nack(false, true))
			return
		}
	}

	s.logger.Error("could not send welcome email", slog.String("email", data.Email))
	s.settled(msg, msg.Ack(false))
}

func (s *MailService) settled(msg amqp.Delivery, err error) {
	if err != nil {
		s.logger.Error("could not settle user.created message", slog.String("message_id", msg.MessageId), slog.Any("error", err))
	}
}

// Close stops the consumer goroutine and waits for an in-flight email to settle.
func (s *MailService) Close() {
	s.cancel()
	s.wg.Wait()
}
