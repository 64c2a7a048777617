// Package postgres is the production credential store. Users and
// relationships live in PostgreSQL, queries are built with squirrel and run
// through pgx, and the schema ships as embedded golang-migrate migrations.
//
// Soft-deleted rows (deleted_at set) are invisible to lookups. Emails are
// unique case-insensitively.
package postgres
