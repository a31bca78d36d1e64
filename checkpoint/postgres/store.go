package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	// Register the postgres database/sql driver
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/hellofresh/goengine-core"
	"github.com/hellofresh/goengine-core/checkpoint"
)

// Ensure Store implements checkpoint.Store
var _ checkpoint.Store = &Store{}

type (
	// DB is the part of a sql.DB used by the Store
	DB interface {
		ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
		QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	}

	// Store a checkpoint.Store that persists the published versions in a postgres table
	Store struct {
		db     DB
		logger goengine.Logger

		queryGet    string
		queryInsert string
		queryUpdate string
	}
)

// NewStore returns a new Store using the provided table
func NewStore(db DB, table string, logger goengine.Logger) (*Store, error) {
	switch {
	case db == nil:
		return nil, goengine.InvalidArgumentError("db")
	case strings.TrimSpace(table) == "":
		return nil, goengine.InvalidArgumentError("table")
	}
	if logger == nil {
		logger = goengine.NopLogger
	}

	tableQuoted := QuoteIdentifier(table)

	/* #nosec G201 */
	return &Store{
		db:     db,
		logger: logger,

		queryGet: fmt.Sprintf(
			`SELECT version FROM %s WHERE subscriber_name = $1 AND aggregate_type = $2 AND aggregate_id = $3`,
			tableQuoted,
		),
		// queryInsert is only used for the first version of a key, a conflict means another process won the race
		queryInsert: fmt.Sprintf(
			`INSERT INTO %s (subscriber_name, aggregate_type, aggregate_id, version) VALUES ($1, $2, $3, $4)
			 ON CONFLICT (subscriber_name, aggregate_type, aggregate_id) DO NOTHING`,
			tableQuoted,
		),
		queryUpdate: fmt.Sprintf(
			`UPDATE %s SET version = $4, updated_at = NOW()
			 WHERE subscriber_name = $1 AND aggregate_type = $2 AND aggregate_id = $3 AND version = $4 - 1`,
			tableQuoted,
		),
	}, nil
}

// GetCheckpoint returns the stored version or 0 when the key is unknown
func (s *Store) GetCheckpoint(ctx context.Context, key checkpoint.Key) (int64, error) {
	var version int64
	err := s.db.QueryRowContext(ctx, s.queryGet, key.Subscriber, key.AggregateType, string(key.AggregateID)).Scan(&version)
	switch {
	case err == sql.ErrNoRows:
		return 0, nil
	case err != nil:
		return 0, errors.Wrap(err, "goengine: failed to load checkpoint")
	}

	return version, nil
}

// AdvanceCheckpoint moves the checkpoint of the key to the provided version
func (s *Store) AdvanceCheckpoint(ctx context.Context, key checkpoint.Key, version int64) error {
	if version <= 0 {
		return nil
	}

	query := s.queryUpdate
	if version == 1 {
		query = s.queryInsert
	}

	res, err := s.db.ExecContext(ctx, query, key.Subscriber, key.AggregateType, string(key.AggregateID), version)
	if err != nil {
		return errors.Wrapf(err, "goengine: failed to advance checkpoint to version %d", version)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 1 {
		s.logger.Debug("advanced checkpoint", func(e goengine.LoggerEntry) {
			e.String("subscriber", key.Subscriber)
			e.String("aggregate_type", key.AggregateType)
			e.String("aggregate_id", string(key.AggregateID))
			e.Int64("version", version)
		})
		return nil
	}

	// Nothing was written so either the version was already stored or the store is not at the preceding version
	current, err := s.GetCheckpoint(ctx, key)
	if err != nil {
		return err
	}

	apply, err := checkpoint.Validate(current, version)
	if err != nil {
		return err
	}
	if apply {
		return errors.Errorf("goengine: checkpoint changed concurrently while advancing to version %d", version)
	}

	s.logger.Debug("checkpoint already advanced", func(e goengine.LoggerEntry) {
		e.String("aggregate_id", string(key.AggregateID))
		e.Int64("version", version)
		e.Int64("stored_version", current)
	})
	return nil
}
