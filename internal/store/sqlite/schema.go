package sqlite

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/sdemirror/internal/store"
)

// Bookkeeping tables. Mirror tables are generated from store.Catalog.
const (
	createHash = `CREATE TABLE IF NOT EXISTS sde_hash (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    value TEXT NOT NULL,
    date TEXT NOT NULL
);`

	createRefreshLog = `CREATE TABLE IF NOT EXISTS sde_refresh_log (
    run_id TEXT PRIMARY KEY,
    started_at TEXT NOT NULL,
    finished_at TEXT NOT NULL,
    token TEXT NOT NULL,
    forced INTEGER NOT NULL,
    status TEXT NOT NULL,
    rows_loaded INTEGER NOT NULL,
    error TEXT NOT NULL DEFAULT ''
);`

	createRefreshLogIndex = `CREATE INDEX IF NOT EXISTS idx_sde_refresh_log_started ON sde_refresh_log(started_at);`
)

var sqlTypes = map[store.ColumnType]string{
	store.ColumnInt:   "INTEGER",
	store.ColumnText:  "TEXT",
	store.ColumnFloat: "REAL",
}

// createTableSQL renders the DDL of a mirror table. Foreign keys are checked
// immediately unless a transaction defers them.
func createTableSQL(t store.Table) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", t.Name)

	for i, c := range t.Columns {
		fmt.Fprintf(&b, "    %s %s", c.Name, sqlTypes[c.Type])
		if i == 0 {
			b.WriteString(" PRIMARY KEY")
		}
		if !c.Nullable {
			b.WriteString(" NOT NULL")
		}
		if c.NotEmpty {
			fmt.Fprintf(&b, " CHECK (%s <> '')", c.Name)
		}
		b.WriteString(",\n")
	}

	var fks []string
	for _, c := range t.Columns {
		if c.References == "" {
			continue
		}
		ref, ok := store.Lookup(c.References)
		if !ok {
			continue
		}
		fks = append(fks, fmt.Sprintf("    FOREIGN KEY (%s) REFERENCES %s(%s)", c.Name, ref.Name, ref.PrimaryKey()))
	}

	sql := strings.TrimSuffix(b.String(), ",\n")
	if len(fks) > 0 {
		sql += ",\n" + strings.Join(fks, ",\n")
	}
	return sql + "\n);"
}

// schemaStatements returns every DDL statement in creation order.
func schemaStatements() []string {
	stmts := []string{createHash, createRefreshLog, createRefreshLogIndex}
	for _, t := range store.Catalog {
		stmts = append(stmts, createTableSQL(t))
	}
	return stmts
}
