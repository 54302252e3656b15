// Package postgres provides the PostgreSQL task backend. It handles the
// database connection, schema migrations, and the mapping between task
// records and rows. Unlike the file backend it writes incrementally: only the
// records that changed since the previous persist are upserted.
package postgres
