package host

import (
	"fmt"
	"slices"

	_ "github.com/go-sql-driver/mysql" // MySQL backend
	_ "github.com/jackc/pgx/v5/stdlib" // Postgres backend
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // SQLite backend (cgo)
	_ "modernc.org/sqlite"          // SQLite backend (pure Go)
)

// Backend driver names accepted by Open.
const (
	BackendSQLite3  = "sqlite3"
	BackendSQLite   = "sqlite"
	BackendPostgres = "pgx"
	BackendMySQL    = "mysql"
)

// Backends lists the supported backend driver names.
var Backends = []string{BackendSQLite3, BackendSQLite, BackendPostgres, BackendMySQL}

func init() {
	sqlx.BindDriver(BackendSQLite, sqlx.QUESTION)
}

// Open connects to a backend database. An in-memory SQLite DSN is opened in
// shared-cache mode so every pooled connection sees the same database.
func Open(driverName, dsn string) (*sqlx.DB, error) {
	if !slices.Contains(Backends, driverName) {
		return nil, fmt.Errorf("unsupported backend %q, expected one of %v", driverName, Backends)
	}

	if (driverName == BackendSQLite3 || driverName == BackendSQLite) && (dsn == "" || dsn == ":memory:") {
		dsn = "file::memory:?cache=shared"
	}

	db, err := sqlx.Connect(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s backend: %w", driverName, err)
	}
	return db, nil
}
