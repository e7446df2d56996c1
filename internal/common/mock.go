package common

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockMessageProducer records every publish. Set expectations with On("Publish", ...).
type MockMessageProducer struct {
	mock.Mock
}

func (m *MockMessageProducer) Publish(ctx context.Context, msg Message, key BindingKey, exchange Exchange) error {
	args := m.Called(ctx, msg, key, exchange)
	return args.Error(0)
}

// FakeAcknowledger stands in for an AMQP channel on hand-built deliveries.
type FakeAcknowledger struct {
	Acks    []uint64
	Nacks   []uint64
	Requeue []bool
}

func (a *FakeAcknowledger) Ack(tag uint64, multiple bool) error {
	a.Acks = append(a.Acks, tag)
	return nil
}

func (a *FakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	a.Nacks = append(a.Nacks, tag)
	a.Requeue = append(a.Requeue, requeue)
	return nil
}

func (a *FakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}
