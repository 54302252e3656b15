// Package testdb provides helpers for tests that need a real PostgreSQL
// database.
//
// Database tests are opt-in. They run when KUNO_TEST_DATABASE_URL (or
// DATABASE_URL) points at a disposable database and skip otherwise:
//
//	func TestSomethingWithDB(t *testing.T) {
//	    url := testdb.RequireDatabaseURL(t)
//	    db, err := postgres.Open(ctx, url, logger)
//	    ...
//	    testdb.CleanupTable(t, db, "tasks")
//	}
package testdb
