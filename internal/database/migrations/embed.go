package migrations

import "embed"

// SQLite contains the golang-migrate migrations for the SQLite ledger.
//
//go:embed sqlite/*.sql
var SQLite embed.FS

// Oracle contains the Oracle schema, applied statement by statement.
//
//go:embed oracle/*.sql
var Oracle embed.FS
