package postgres

import (
	"fmt"
	"strings"
)

// CreateSchema returns the queries needed to create the checkpoint table.
// When a correctionChannel is provided a trigger is added that sends a notification on the channel every time a
// checkpoint is changed by something other than a single version advance.
func CreateSchema(table, correctionChannel string) []string {
	tableQuoted := QuoteIdentifier(table)

	/* #nosec G201 */
	queries := []string{
		fmt.Sprintf(
			`CREATE TABLE IF NOT EXISTS %s (
			  subscriber_name VARCHAR(150) NOT NULL,
			  aggregate_type VARCHAR(150) NOT NULL,
			  aggregate_id VARCHAR(150) NOT NULL,
			  version BIGINT NOT NULL CHECK (version > 0),
			  created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			  updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
			  PRIMARY KEY (subscriber_name, aggregate_type, aggregate_id)
			)`,
			tableQuoted,
		),
	}

	if strings.TrimSpace(correctionChannel) == "" {
		return queries
	}

	functionName := QuoteIdentifier(table + "_notify_correction")
	triggerName := QuoteIdentifier(table + "_correction")

	/* #nosec G201 */
	return append(queries,
		fmt.Sprintf(
			`CREATE OR REPLACE FUNCTION %[1]s() RETURNS trigger AS $$
			BEGIN
			  IF NEW.version <> OLD.version + 1 THEN
			    PERFORM pg_notify(%[2]s, json_build_object(
			      'subscriber_name', NEW.subscriber_name,
			      'aggregate_type', NEW.aggregate_type,
			      'aggregate_id', NEW.aggregate_id,
			      'version', NEW.version
			    )::text);
			  END IF;
			  RETURN NEW;
			END;
			$$ LANGUAGE plpgsql`,
			functionName,
			QuoteString(correctionChannel),
		),
		fmt.Sprintf(`DROP TRIGGER IF EXISTS %s ON %s`, triggerName, tableQuoted),
		fmt.Sprintf(
			`CREATE TRIGGER %s AFTER UPDATE ON %s FOR EACH ROW EXECUTE PROCEDURE %s()`,
			triggerName,
			tableQuoted,
			functionName,
		),
	)
}

// QuoteString returns the given string quoted
func QuoteString(str string) string {
	return "'" + strings.Replace(str, "'", "''", -1) + "'"
}

// QuoteIdentifier quotes an "identifier" (e.g. a table or a column name) to be
// used as part of an SQL statement.
func QuoteIdentifier(name string) string {
	return `"` + strings.Replace(name, `"`, `""`, -1) + `"`
}
