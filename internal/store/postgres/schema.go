package postgres

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/sdemirror/internal/store"
)

const (
	createHash = `CREATE TABLE IF NOT EXISTS sde_hash (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    value TEXT NOT NULL,
    date TIMESTAMPTZ NOT NULL
)`

	createRefreshLog = `CREATE TABLE IF NOT EXISTS sde_refresh_log (
    run_id TEXT PRIMARY KEY,
    started_at TIMESTAMPTZ NOT NULL,
    finished_at TIMESTAMPTZ NOT NULL,
    token TEXT NOT NULL,
    forced BOOLEAN NOT NULL,
    status TEXT NOT NULL,
    rows_loaded BIGINT NOT NULL,
    error TEXT NOT NULL DEFAULT ''
)`

	createRefreshLogIndex = `CREATE INDEX IF NOT EXISTS idx_sde_refresh_log_started ON sde_refresh_log(started_at DESC)`
)

var sqlTypes = map[store.ColumnType]string{
	store.ColumnInt:   "BIGINT",
	store.ColumnText:  "TEXT",
	store.ColumnFloat: "DOUBLE PRECISION",
}

// createTableSQL renders the DDL of a mirror table. Foreign keys are
// DEFERRABLE INITIALLY IMMEDIATE: enforced per statement unless a
// transaction issues SET CONSTRAINTS ... DEFERRED.
func createTableSQL(t store.Table) string {
	lines := make([]string, 0, len(t.Columns)*2)
	for i, c := range t.Columns {
		line := fmt.Sprintf("    %s %s", quoteIdentifier(c.Name), sqlTypes[c.Type])
		if i == 0 {
			line += " PRIMARY KEY"
		}
		if !c.Nullable {
			line += " NOT NULL"
		}
		if c.NotEmpty {
			line += fmt.Sprintf(" CHECK (%s <> '')", quoteIdentifier(c.Name))
		}
		lines = append(lines, line)
	}

	for _, c := range t.Columns {
		ref, ok := store.Lookup(c.References)
		if c.References == "" || !ok {
			continue
		}
		lines = append(lines, fmt.Sprintf(
			"    CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s(%s) DEFERRABLE INITIALLY IMMEDIATE",
			quoteIdentifier(t.Name+"_"+c.Name+"_fkey"),
			quoteIdentifier(c.Name),
			quoteIdentifier(ref.Name),
			quoteIdentifier(ref.PrimaryKey()),
		))
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n%s\n)", quoteIdentifier(t.Name), strings.Join(lines, ",\n"))
}

func schemaStatements() []string {
	stmts := []string{createHash, createRefreshLog, createRefreshLogIndex}
	for _, t := range store.Catalog {
		stmts = append(stmts, createTableSQL(t))
	}
	return stmts
}

// quoteIdentifier safely quotes a PostgreSQL identifier.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
