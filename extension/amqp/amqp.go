// Package amqp moves event streams between processes over RabbitMQ.
// The Publisher sends every committed EventStream to a queue and the Listener feeds the received streams into an
// eventing.Processor, acknowledging a delivery only after the stream was dispatched and checkpointed.
package amqp

import (
	"io"

	"github.com/hashicorp/go-multierror"
	"github.com/streadway/amqp"

	"github.com/hellofresh/goengine-core"
)

type (
	// EventStreamChannel represents a channel an event stream can be published on
	EventStreamChannel interface {
		Publish(exchange, queue string, mandatory, immediate bool, msg amqp.Publishing) error
	}

	// connection is the closer of an amqp connection and it's channel
	connection struct {
		conn *amqp.Connection
		ch   *amqp.Channel
	}
)

// setup returns a connection and channel to be used for the Queue setup
func setup(url, queue string) (io.Closer, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, nil, multierror.Append(err, conn.Close())
	}

	c := &connection{conn: conn, ch: ch}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return nil, nil, multierror.Append(err, c.Close())
	}

	return c, ch, nil
}

// Close closes the channel and the connection
func (c *connection) Close() error {
	var result *multierror.Error
	if err := c.ch.Close(); err != nil && err != amqp.ErrClosed {
		result = multierror.Append(result, err)
	}
	if err := c.conn.Close(); err != nil && err != amqp.ErrClosed {
		result = multierror.Append(result, err)
	}

	return result.ErrorOrNil()
}

// DirectQueueConsume returns a Consume func that declares the queue and consumes it with manual acknowledgement.
// prefetch limits the number of unacknowledged deliveries and must cover the streams that can wait in a mailbox.
func DirectQueueConsume(amqpDSN, queue string, prefetch int) (Consume, error) {
	switch {
	case !isAMQPURI(amqpDSN):
		return nil, goengine.InvalidArgumentError("amqpDSN")
	case queue == "":
		return nil, goengine.InvalidArgumentError("queue")
	case prefetch <= 0:
		return nil, goengine.InvalidArgumentError("prefetch")
	}

	return func() (io.Closer, <-chan amqp.Delivery, error) {
		conn, ch, err := setup(amqpDSN, queue)
		if err != nil {
			return nil, nil, err
		}

		if err := ch.Qos(prefetch, 0, false); err != nil {
			return nil, nil, multierror.Append(err, conn.Close())
		}

		deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
		if err != nil {
			return nil, nil, multierror.Append(err, conn.Close())
		}

		return conn, deliveries, nil
	}, nil
}

func isAMQPURI(dsn string) bool {
	_, err := amqp.ParseURI(dsn)
	return err == nil
}
