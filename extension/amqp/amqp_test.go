package amqp_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hellofresh/goengine-core"
	goengineAmqp "github.com/hellofresh/goengine-core/extension/amqp"
)

type mockConnection struct {
	mu     sync.Mutex
	closed int
}

func (c *mockConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed++
	return nil
}

func (c *mockConnection) Closed() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closed
}

type mockChannel struct {
	mu          sync.Mutex
	errs        []error
	publishings []amqp.Publishing
}

func (ch *mockChannel) Publish(exchange string, queue string, mandatory bool, immediate bool, msg amqp.Publishing) error {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if len(ch.errs) > 0 {
		err := ch.errs[0]
		ch.errs = ch.errs[1:]
		return err
	}

	ch.publishings = append(ch.publishings, msg)
	return nil
}

func (ch *mockChannel) Publishings() []amqp.Publishing {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	return append([]amqp.Publishing(nil), ch.publishings...)
}

// mockAcknowledger records the acknowledgements of deliveries by their tag
type mockAcknowledger struct {
	mu       sync.Mutex
	acked    []uint64
	nacked   []uint64
	rejected []uint64
	done     chan uint64
}

func newMockAcknowledger() *mockAcknowledger {
	return &mockAcknowledger{done: make(chan uint64, 100)}
}

func (a *mockAcknowledger) Ack(tag uint64, multiple bool) error {
	a.mu.Lock()
	a.acked = append(a.acked, tag)
	a.mu.Unlock()

	a.done <- tag
	return nil
}

func (a *mockAcknowledger) Nack(tag uint64, multiple bool, requeue bool) error {
	a.mu.Lock()
	a.nacked = append(a.nacked, tag)
	a.mu.Unlock()

	a.done <- tag
	return nil
}

func (a *mockAcknowledger) Reject(tag uint64, requeue bool) error {
	a.mu.Lock()
	a.rejected = append(a.rejected, tag)
	a.mu.Unlock()

	a.done <- tag
	return nil
}

func (a *mockAcknowledger) Acked() []uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	return append([]uint64(nil), a.acked...)
}

func (a *mockAcknowledger) delivery(tag uint64, body []byte) amqp.Delivery {
	return amqp.Delivery{
		Acknowledger: a,
		DeliveryTag:  tag,
		Body:         body,
	}
}

func TestDirectQueueConsume(t *testing.T) {
	testCases := []struct {
		title         string
		dsn           string
		queue         string
		prefetch      int
		expectedError error
	}{
		{
			"invalid dsn",
			"http://localhost:5672/",
			"events",
			10,
			goengine.InvalidArgumentError("amqpDSN"),
		},
		{
			"missing queue",
			"amqp://localhost:5672/",
			"",
			10,
			goengine.InvalidArgumentError("queue"),
		},
		{
			"no prefetch",
			"amqp://localhost:5672/",
			"events",
			0,
			goengine.InvalidArgumentError("prefetch"),
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.title, func(t *testing.T) {
			consume, err := goengineAmqp.DirectQueueConsume(testCase.dsn, testCase.queue, testCase.prefetch)

			assert.Equal(t, testCase.expectedError, err)
			assert.Nil(t, consume)
		})
	}

	t.Run("valid arguments", func(t *testing.T) {
		consume, err := goengineAmqp.DirectQueueConsume("amqp://localhost:5672/", "events", 10)

		require.NoError(t, err)
		assert.NotNil(t, consume)
	})
}

var errPublish = errors.New("publish failed")
