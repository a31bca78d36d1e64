package amqp

import (
	"context"
	"io"
	"sync"

	"github.com/streadway/amqp"

	"github.com/hellofresh/goengine-core"
	"github.com/hellofresh/goengine-core/eventing"
)

// Ensure Publisher implements eventing.Dispatcher
var _ eventing.Dispatcher = &Publisher{}

// Publisher is responsible of publishing event streams to a queue
type Publisher struct {
	amqpDSN string
	queue   string
	logger  goengine.Logger

	connection io.Closer
	channel    EventStreamChannel

	mux sync.Mutex
}

// NewPublisher returns an instance of Publisher.
// The connection and channel are optional, when they are nil the publisher connects on the first publish.
func NewPublisher(
	amqpDSN string,
	queue string,
	logger goengine.Logger,
	connection io.Closer,
	channel EventStreamChannel,
) (*Publisher, error) {
	switch {
	case !isAMQPURI(amqpDSN):
		return nil, goengine.InvalidArgumentError("amqpDSN")
	case queue == "":
		return nil, goengine.InvalidArgumentError("queue")
	case (connection == nil) != (channel == nil):
		return nil, goengine.InvalidArgumentError("channel")
	}

	if logger == nil {
		logger = goengine.NopLogger
	}

	return &Publisher{
		amqpDSN:    amqpDSN,
		queue:      queue,
		logger:     logger,
		connection: connection,
		channel:    channel,
	}, nil
}

// Dispatch publishes the stream so that it can be used as the dispatcher of an eventing.Processor
func (p *Publisher) Dispatch(ctx context.Context, stream *eventing.EventStream) error {
	return p.Publish(ctx, stream)
}

// Publish sends an EventStream to the queue.
// A closed connection is replaced by a new one before the stream is published again.
func (p *Publisher) Publish(ctx context.Context, stream *eventing.EventStream) error {
	// Ignore nil streams since this is not supported
	if stream == nil {
		p.logger.Warn("unable to handle nil event stream, skipping", nil)
		return nil
	}

	msgBody, err := MarshalEventStream(stream)
	if err != nil {
		return err
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    stream.CommandID,
		Type:         stream.AggregateType,
		Body:         msgBody,
	}

	p.mux.Lock()
	defer p.mux.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if p.connection == nil {
			conn, ch, err := setup(p.amqpDSN, p.queue)
			if err != nil {
				return err
			}
			p.connection, p.channel = conn, ch
		}

		err = p.channel.Publish("", p.queue, true, false, msg)
		if err == amqp.ErrClosed || err == amqp.ErrFrame || err == amqp.ErrUnexpectedFrame {
			p.logger.Warn("amqp connection lost, reconnecting", func(e goengine.LoggerEntry) {
				e.Error(err)
			})
			p.reset()
			continue
		}

		return err
	}
}

// Close closes the connection of the publisher
func (p *Publisher) Close() error {
	p.mux.Lock()
	defer p.mux.Unlock()

	if p.connection == nil {
		return nil
	}

	err := p.connection.Close()
	p.connection = nil
	p.channel = nil

	return err
}

func (p *Publisher) reset() {
	if err := p.connection.Close(); err != nil {
		p.logger.Error("failed to close amqp connection", func(e goengine.LoggerEntry) {
			e.Error(err)
		})
	}
	p.connection = nil
	p.channel = nil
}
