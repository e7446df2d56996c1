package mailservice

import (
	"bytes"
	"errors"
	"sync"

	"github.com/go-mail/mail/v2"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/mock"
	"github.com/sushihentaime/blogpipe/internal/common"
)

type MockTemplate struct {
	mock.Mock
}

func (m *MockTemplate) ParseTemplate(name string, data any) (*bytes.Buffer, *bytes.Buffer, *bytes.Buffer, error) {
	args := m.Called(name, data)
	return args.Get(0).(*bytes.Buffer), args.Get(1).(*bytes.Buffer), args.Get(2).(*bytes.Buffer), args.Error(3)
}

type MockDialer struct {
	mock.Mock
}

func (d *MockDialer) DialAndSend(m ...*mail.Message) error {
	args := d.Called(m)
	return args.Error(0)
}

// MockMailer fails the first Failures sends and records every recipient.
type MockMailer struct {
	mu         sync.Mutex
	Failures   int
	Recipients []string
	Templates  []string
}

func (m *MockMailer) send(recipient string, data any, templateFile string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Recipients = append(m.Recipients, recipient)
	m.Templates = append(m.Templates, templateFile)
	if len(m.Recipients) <= m.Failures {
		return errors.New("smtp: 421 service not available")
	}

	return nil
}

func (m *MockMailer) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Recipients)
}

// MockMessageConsumer hands out a channel fed with Deliveries and closed afterwards.
type MockMessageConsumer struct {
	mock.Mock
	Deliveries []amqp.Delivery
}

func (m *MockMessageConsumer) Consume(queue common.Queue, consumer string) (<-chan amqp.Delivery, error) {
	args := m.Called(queue, consumer)
	if err := args.Error(0); err != nil {
		return nil, err
	}

	msgsChan := make(chan amqp.Delivery, len(m.Deliveries))
	for _, d := range m.Deliveries {
		msgsChan <- d
	}
	close(msgsChan)

	return msgsChan, nil
}
