// Package pq listens for checkpoint corrections sent by the PostgreSQL checkpoint trigger
package pq

import (
	"context"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/mailru/easyjson"

	"github.com/hellofresh/goengine-core"
	"github.com/hellofresh/goengine-core/aggregate"
	"github.com/hellofresh/goengine-core/eventing"
)

// Ensure eventing.Processor implements CorrectionTarget
var _ CorrectionTarget = &eventing.Processor{}

// CorrectionTarget is the processor whose mailboxes are corrected
type CorrectionTarget interface {
	Name() string
	BumpExpectingVersion(aggregateID aggregate.ID, version int64) bool
}

// Listener a checkpoint correction listener for pq
type Listener struct {
	dbDSN     string
	dbChannel string

	minReconnectInterval time.Duration
	maxReconnectInterval time.Duration

	logger goengine.Logger
}

// NewListener returns a new correction listener
func NewListener(
	dbDSN string,
	dbChannel string,
	minReconnectInterval time.Duration,
	maxReconnectInterval time.Duration,
	logger goengine.Logger,
) (*Listener, error) {
	switch {
	case strings.TrimSpace(dbDSN) == "":
		return nil, goengine.InvalidArgumentError("dbDSN")
	case strings.TrimSpace(dbChannel) == "":
		return nil, goengine.InvalidArgumentError("dbChannel")
	case minReconnectInterval == 0:
		return nil, goengine.InvalidArgumentError("minReconnectInterval")
	case maxReconnectInterval < minReconnectInterval:
		return nil, goengine.InvalidArgumentError("maxReconnectInterval")
	}

	if logger == nil {
		logger = goengine.NopLogger
	}

	return &Listener{
		dbDSN:                dbDSN,
		dbChannel:            dbChannel,
		minReconnectInterval: minReconnectInterval,
		maxReconnectInterval: maxReconnectInterval,
		logger:               logger,
	}, nil
}

// Listen start listening on the configured dbChannel and bumps the expected version of the target's mailbox for
// every correction of the target's checkpoints
func (s *Listener) Listen(ctx context.Context, target CorrectionTarget) error {
	if target == nil {
		return goengine.InvalidArgumentError("target")
	}

	// Check if the context is expired
	select {
	default:
	case <-ctx.Done():
		return nil
	}

	listener := pq.NewListener(s.dbDSN, s.minReconnectInterval, s.maxReconnectInterval, s.listenerStateCallback)
	defer func() {
		if err := listener.Close(); err != nil {
			s.logger.Warn("failed to close database Listener", func(e goengine.LoggerEntry) {
				e.Error(err)
			})
		}
	}()

	if err := listener.Listen(s.dbChannel); err != nil {
		return err
	}

	for {
		select {
		case n := <-listener.Notify:
			s.correct(target, s.unmarshalCorrection(n))
		case <-ctx.Done():
			s.logger.Debug("context closed stopping correction listener", nil)
			return nil
		}
	}
}

// correct bumps the mailbox when the correction concerns the target
func (s *Listener) correct(target CorrectionTarget, correction *Correction) bool {
	if correction == nil || correction.SubscriberName != target.Name() {
		return false
	}

	bumped := target.BumpExpectingVersion(aggregate.ID(correction.AggregateID), correction.Version+1)
	s.logger.Debug("applied checkpoint correction", func(e goengine.LoggerEntry) {
		e.String("aggregate_type", correction.AggregateType)
		e.String("aggregate_id", correction.AggregateID)
		e.Int64("version", correction.Version)
		e.Any("bumped", bumped)
	})

	return bumped
}

// listenerStateCallback a callback used for getting state changes from a pq.Listener
func (s *Listener) listenerStateCallback(event pq.ListenerEventType, err error) {
	logFields := func(e goengine.LoggerEntry) {
		e.Int("listener_event", int(event))
		if err != nil {
			e.Error(err)
		}
	}

	switch event {
	case pq.ListenerEventConnected:
		s.logger.Debug("connection Listener: connected", logFields)
	case pq.ListenerEventConnectionAttemptFailed:
		s.logger.Debug("connection Listener: failed to connect", logFields)
	case pq.ListenerEventDisconnected:
		s.logger.Debug("connection Listener: disconnected", logFields)
	case pq.ListenerEventReconnected:
		// Corrections sent while disconnected are lost, the waiting refresh of the processor recovers those mailboxes
		s.logger.Info("connection Listener: reconnected", logFields)
	default:
		s.logger.Warn("connection Listener: unknown event", logFields)
	}
}

// unmarshalCorrection takes a postgres notification and unmarshal it into a Correction
func (s *Listener) unmarshalCorrection(n *pq.Notification) *Correction {
	if n == nil {
		s.logger.Info("received nil notification", nil)
		return nil
	}

	if n.Extra == "" {
		s.logger.Error("received notification without extra data", func(e goengine.LoggerEntry) {
			e.Any("pq_notification", n)
		})
		return nil
	}

	correction := &Correction{}
	if err := easyjson.Unmarshal([]byte(n.Extra), correction); err != nil {
		s.logger.Error("received invalid notification data", func(e goengine.LoggerEntry) {
			e.Any("pq_notification", n)
			e.Error(err)
		})
		return nil
	}

	return correction
}
