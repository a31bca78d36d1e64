package test

import (
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

// RunWithMockDB runs f as a subtest of t called name and provided a mock database.
// Queries are matched on their exact text.
func RunWithMockDB(t *testing.T, name string, f func(t *testing.T, db *sql.DB, dbMock sqlmock.Sqlmock)) {
	t.Run(name, func(t *testing.T) {
		db, dbMock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
		require.NoError(t, err)
		defer db.Close()

		f(t, db, dbMock)

		require.NoError(t, dbMock.ExpectationsWereMet())
	})
}
