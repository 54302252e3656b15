package testdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestTimeout bounds individual database operations issued by the helpers.
const TestTimeout = 5 * time.Second

// Environment variables checked for a test database, in order.
var databaseURLVars = []string{"KUNO_TEST_DATABASE_URL", "DATABASE_URL"}

// GetTestDatabaseURL returns the first non-empty database URL from the
// environment, or "" when none is set.
func GetTestDatabaseURL() string {
	for _, name := range databaseURLVars {
		if url := os.Getenv(name); url != "" {
			return url
		}
	}
	return ""
}

// ShouldSkipDatabaseTest reports whether no test database is configured.
func ShouldSkipDatabaseTest() bool {
	return GetTestDatabaseURL() == ""
}

// RequireDatabaseURL returns the test database URL or skips the test.
func RequireDatabaseURL(t *testing.T) string {
	t.Helper()

	url := GetTestDatabaseURL()
	if url == "" {
		t.Skip("KUNO_TEST_DATABASE_URL not set; skipping database test")
	}
	return url
}

// CleanupTable deletes every row of table once the test finishes.
func CleanupTable(t *testing.T, db *sql.DB, table string) {
	t.Helper()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
		defer cancel()

		// table names come from test code, never from input
		_, err := db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", table))
		require.NoError(t, err, "failed to clean up table %s", table)
	})
}
