package store

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect selects SQL syntax differences between backends.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// DialectFor maps a database/sql driver name to its dialect.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "sqlite3", "sqlite":
		return DialectSQLite, nil
	case "pgx", "postgres":
		return DialectPostgres, nil
	default:
		return "", fmt.Errorf("unsupported database driver: %s", driver)
	}
}

// Schema of the source items database. One statement per entry; the pgx
// driver does not accept several statements in one prepared exec.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS item (
		identifier TEXT PRIMARY KEY,
		classname TEXT NOT NULL,
		implementations TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS attribute (
		itemid TEXT NOT NULL,
		name TEXT NOT NULL,
		value TEXT,
		PRIMARY KEY (itemid, name)
	)`,
	`CREATE TABLE IF NOT EXISTS reference (
		itemid TEXT NOT NULL,
		name TEXT NOT NULL,
		refid TEXT NOT NULL,
		PRIMARY KEY (itemid, name)
	)`,
	// refids is a space-separated identifier list
	`CREATE TABLE IF NOT EXISTS referencelist (
		itemid TEXT NOT NULL,
		name TEXT NOT NULL,
		refids TEXT NOT NULL,
		PRIMARY KEY (itemid, name)
	)`,
	`CREATE TABLE IF NOT EXISTS load_run (
		run_id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		items INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'running'
	)`,
}

// itemTables hold the loaded items; Clear empties them before a fresh load.
var itemTables = []string{"item", "attribute", "reference", "referencelist"}

// Load run states.
const (
	RunRunning  = "running"
	RunComplete = "complete"
	RunFailed   = "failed"
)

// columnMigration adds a column to a table created by an older schema.
type columnMigration struct {
	Table  string
	Column string
	Def    string
}

// pendingMigrations handle tables that exist but are missing newer columns.
var pendingMigrations = []columnMigration{
	// runs recorded before status tracking all finished
	{"load_run", "status", "TEXT NOT NULL DEFAULT 'complete'"},
}

// sqlitePragmas trade durability for load speed; WAL keeps crash recovery.
var sqlitePragmas = []string{
	"PRAGMA busy_timeout = 5000",
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
}

const (
	insertItemSQL          = `INSERT INTO item (identifier, classname, implementations) VALUES (?, ?, ?)`
	insertAttributeSQL     = `INSERT INTO attribute (itemid, name, value) VALUES (?, ?, ?)`
	insertReferenceSQL     = `INSERT INTO reference (itemid, name, refid) VALUES (?, ?, ?)`
	insertReferenceListSQL = `INSERT INTO referencelist (itemid, name, refids) VALUES (?, ?, ?)`
)

// rebind rewrites ? placeholders as $1, $2, ... for Postgres.
// Queries here never contain a literal '?'.
func rebind(d Dialect, query string) string {
	if d != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
