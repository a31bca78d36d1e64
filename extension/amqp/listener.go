package amqp

import (
	"context"
	"io"
	"time"

	"github.com/streadway/amqp"

	"github.com/hellofresh/goengine-core"
	"github.com/hellofresh/goengine-core/eventing"
)

// Ensure eventing.Processor implements EventProcessor
var _ EventProcessor = &eventing.Processor{}

type (
	// Consume returns a channel of amqp.Delivery's and a related closer or an error
	Consume func() (io.Closer, <-chan amqp.Delivery, error)

	// EventProcessor receives the event streams of the Listener
	EventProcessor interface {
		Process(ctx context.Context, evt *eventing.ProcessingEvent) (eventing.EnqueueResult, error)
	}

	// Listener consumes event streams from a queue
	Listener struct {
		consume              Consume
		minReconnectInterval time.Duration
		maxReconnectInterval time.Duration
		logger               goengine.Logger
		waitFn               func(time.Duration)
	}
)

// NewListener returns a new Listener
func NewListener(
	consume Consume,
	minReconnectInterval time.Duration,
	maxReconnectInterval time.Duration,
	logger goengine.Logger,
) (*Listener, error) {
	switch {
	case consume == nil:
		return nil, goengine.InvalidArgumentError("consume")
	case minReconnectInterval <= 0:
		return nil, goengine.InvalidArgumentError("minReconnectInterval")
	case maxReconnectInterval < minReconnectInterval:
		return nil, goengine.InvalidArgumentError("maxReconnectInterval")
	}

	if logger == nil {
		logger = goengine.NopLogger
	}

	return &Listener{
		consume:              consume,
		minReconnectInterval: minReconnectInterval,
		maxReconnectInterval: maxReconnectInterval,
		logger:               logger,
		waitFn:               time.Sleep,
	}, nil
}

// WithWaitFn replaces the default function called to wait (time.Sleep)
func (l *Listener) WithWaitFn(fn func(time.Duration)) {
	l.waitFn = fn
}

// Listen receives messages from a queue, transforms them into an eventing.ProcessingEvent and passes them to the
// processor. A delivery is acknowledged when the processor completes the event.
func (l *Listener) Listen(ctx context.Context, processor EventProcessor) error {
	if processor == nil {
		return goengine.InvalidArgumentError("processor")
	}

	var nextReconnect time.Time
	reconnectInterval := l.minReconnectInterval
	for {
		select {
		case <-ctx.Done():
			return context.Canceled
		default:
		}

		conn, deliveries, err := l.consume()
		if err != nil {
			l.logger.Error("failed to start consuming amqp messages", func(e goengine.LoggerEntry) {
				e.Error(err)
				e.String("reconnect_in", reconnectInterval.String())
			})

			l.waitFn(reconnectInterval)
			reconnectInterval *= 2
			if reconnectInterval > l.maxReconnectInterval {
				reconnectInterval = l.maxReconnectInterval
			}
			continue
		}
		reconnectInterval = l.minReconnectInterval
		nextReconnect = time.Now().Add(reconnectInterval)

		l.consumeMessages(ctx, conn, deliveries, processor)

		select {
		case <-ctx.Done():
			return context.Canceled
		default:
			l.waitFn(time.Until(nextReconnect))
		}
	}
}

func (l *Listener) consumeMessages(ctx context.Context, conn io.Closer, deliveries <-chan amqp.Delivery, processor EventProcessor) {
	defer func() {
		if conn == nil {
			return
		}

		if err := conn.Close(); err != nil {
			l.logger.Error("failed to close amqp connection", func(e goengine.LoggerEntry) {
				e.Error(err)
			})
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-deliveries:
			if !ok {
				return
			}

			l.handleDelivery(ctx, msg, processor)
		}
	}
}

func (l *Listener) handleDelivery(ctx context.Context, msg amqp.Delivery, processor EventProcessor) {
	stream, err := UnmarshalEventStream(msg.Body)
	if err != nil {
		l.logger.Error("failed to unmarshal delivery, dropping message", func(e goengine.LoggerEntry) {
			e.Error(err)
		})
		if err := msg.Reject(false); err != nil {
			l.logger.Error("failed to reject delivery", func(e goengine.LoggerEntry) {
				e.Error(err)
			})
		}
		return
	}

	streamFields := func(e goengine.LoggerEntry) {
		e.String("aggregate_id", stream.AggregateID.String())
		e.Int64("version", stream.Version)
	}

	evt := eventing.NewProcessingEvent(stream, func() {
		if err := msg.Ack(false); err != nil {
			l.logger.Error("failed to acknowledge event stream delivery", func(e goengine.LoggerEntry) {
				e.Error(err)
				streamFields(e)
			})
		}
	})

	if _, err := processor.Process(ctx, evt); err != nil {
		l.logger.Error("failed to process event stream, requeueing message", func(e goengine.LoggerEntry) {
			e.Error(err)
			streamFields(e)
		})
		if err := msg.Nack(false, true); err != nil {
			l.logger.Error("failed to requeue event stream delivery", func(e goengine.LoggerEntry) {
				e.Error(err)
				streamFields(e)
			})
		}
	}
}
