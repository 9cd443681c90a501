package dbconn

import (
	"fmt"
	"strings"
)

// Engine identifies a supported relational database engine.
type Engine string

const (
	// EnginePostgres is PostgreSQL, driven through pgx's database/sql
	// adapter.
	EnginePostgres Engine = "postgres"

	// EngineSQLServer is Microsoft SQL Server (and Azure SQL), driven
	// through go-mssqldb.
	EngineSQLServer Engine = "sqlserver"

	// EngineMySQL is MySQL/MariaDB, driven through go-sql-driver.
	EngineMySQL Engine = "mysql"
)

// Validate checks that the engine is one of the supported values.
func (e Engine) Validate() error {
	switch e {
	case EnginePostgres, EngineSQLServer, EngineMySQL:
		return nil
	default:
		return fmt.Errorf("unsupported database engine: %q", e)
	}
}

// DriverName returns the database/sql driver name for the engine.
func (e Engine) DriverName() string {
	switch e {
	case EnginePostgres:
		return "pgx"
	case EngineSQLServer:
		return "sqlserver"
	case EngineMySQL:
		return "mysql"
	default:
		return ""
	}
}

// MaintenanceDatabase returns the administrative database used for
// create/inspect operations against other databases.
func (e Engine) MaintenanceDatabase() string {
	switch e {
	case EnginePostgres:
		return "postgres"
	case EngineSQLServer:
		return "master"
	case EngineMySQL:
		return "information_schema"
	default:
		return ""
	}
}

// Well-known ports per engine convention.
const (
	portPostgres  = "5432"
	portSQLServer = "1433"
	portMySQL     = "3306"
)

// GuessEngine infers the engine from a connection string or bare port
// hint. Explicit scheme or host-style markers win; a well-known port is
// the second choice; the caller-supplied fallback is last.
func GuessEngine(hint string, fallback Engine) Engine {
	h := strings.TrimSpace(strings.ToLower(hint))

	switch {
	case strings.HasPrefix(h, "postgres://"), strings.HasPrefix(h, "postgresql://"):
		return EnginePostgres
	case strings.HasPrefix(h, "sqlserver://"), strings.HasPrefix(h, "mssql://"):
		return EngineSQLServer
	case strings.HasPrefix(h, "mysql://"):
		return EngineMySQL
	}

	// ADO-style strings ("Server=...;Database=...") are a SQL Server
	// convention; libpq keyword strings ("host=... dbname=...") are a
	// Postgres one.
	if strings.Contains(h, "server=") || strings.Contains(h, "initial catalog=") {
		return EngineSQLServer
	}
	if strings.Contains(h, "host=") && strings.Contains(h, "dbname=") {
		return EnginePostgres
	}

	// Bare port hint or an embedded :port.
	switch {
	case h == portPostgres, strings.Contains(h, ":"+portPostgres):
		return EnginePostgres
	case h == portSQLServer, strings.Contains(h, ":"+portSQLServer), strings.Contains(h, ",1433"):
		return EngineSQLServer
	case h == portMySQL, strings.Contains(h, ":"+portMySQL):
		return EngineMySQL
	}

	return fallback
}
