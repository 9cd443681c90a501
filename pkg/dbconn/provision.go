package dbconn

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrPrivilege marks failures caused by the authenticated principal
// lacking a required database privilege. Callers branch with errors.Is.
var ErrPrivilege = errors.New("insufficient database privilege")

// Sizing carries engine-specific database sizing parameters. Engines
// without a sizing concept ignore it.
type Sizing struct {
	// InitialMB is the initial data file size in megabytes.
	InitialMB int `json:"initial_mb" yaml:"initial_mb"`

	// MaxMB caps the data file size; 0 means unlimited.
	MaxMB int `json:"max_mb" yaml:"max_mb"`

	// GrowthMB is the file growth increment in megabytes.
	GrowthMB int `json:"growth_mb" yaml:"growth_mb"`
}

// identifierRe bounds database names to conventional unquoted identifier
// characters. Quoting still applies on top; this is belt and braces for
// DDL, which cannot use parameter binding.
var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// ValidateDatabaseName rejects names unsuitable for identifier quoting.
func ValidateDatabaseName(name string) error {
	if !identifierRe.MatchString(name) {
		return fmt.Errorf("invalid database name %q: must match %s", name, identifierRe.String())
	}
	return nil
}

// QuoteIdentifier quotes an identifier for the engine's DDL dialect,
// doubling embedded quote characters.
func QuoteIdentifier(engine Engine, name string) string {
	switch engine {
	case EnginePostgres:
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	case EngineSQLServer:
		return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
	case EngineMySQL:
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	default:
		return name
	}
}

// CanCreateDatabase inspects whether the authenticated principal may
// create databases, without attempting a creation. The returned reason is
// user-safe.
func (c *Connector) CanCreateDatabase(ctx context.Context, engine Engine, adminDSN string) (bool, string, error) {
	if err := engine.Validate(); err != nil {
		return false, "", err
	}

	db, err := c.opener(engine.DriverName(), adminDSN)
	if err != nil {
		return false, "", fmt.Errorf("opening maintenance connection to %s: %w", MaskDSN(adminDSN), err)
	}
	defer db.Close()

	switch engine {
	case EnginePostgres:
		var can bool
		err = db.QueryRowContext(ctx,
			`SELECT rolcreatedb OR rolsuper FROM pg_roles WHERE rolname = current_user`,
		).Scan(&can)
		if err != nil {
			return false, "", fmt.Errorf("checking postgres role privileges: %w", err)
		}
		if !can {
			return false, "role lacks CREATEDB", nil
		}
		return true, "role has CREATEDB", nil

	case EngineSQLServer:
		var can int
		err = db.QueryRowContext(ctx,
			`SELECT CASE WHEN IS_SRVROLEMEMBER('sysadmin') = 1
			          OR IS_SRVROLEMEMBER('dbcreator') = 1
			          OR HAS_PERMS_BY_NAME(NULL, NULL, 'CREATE ANY DATABASE') = 1
			     THEN 1 ELSE 0 END`,
		).Scan(&can)
		if err != nil {
			return false, "", fmt.Errorf("checking server role membership: %w", err)
		}
		if can == 0 {
			return false, "login is not a member of dbcreator or sysadmin", nil
		}
		return true, "login may create databases", nil

	case EngineMySQL:
		var count int
		err = db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM information_schema.user_privileges
			 WHERE grantee = CONCAT('''', REPLACE(CURRENT_USER(), '@', '''@'''), '''')
			   AND privilege_type IN ('CREATE', 'ALL PRIVILEGES')`,
		).Scan(&count)
		if err != nil {
			return false, "", fmt.Errorf("checking mysql grants: %w", err)
		}
		if count == 0 {
			return false, "user lacks the CREATE privilege", nil
		}
		return true, "user holds the CREATE privilege", nil
	}

	return false, "", fmt.Errorf("unsupported engine %q", engine)
}

// Exists reports whether the named database exists, via the maintenance
// connection. The name is passed as a bound parameter, never interpolated.
func (c *Connector) Exists(ctx context.Context, engine Engine, adminDSN, dbName string) (bool, error) {
	if err := engine.Validate(); err != nil {
		return false, err
	}

	db, err := c.opener(engine.DriverName(), adminDSN)
	if err != nil {
		return false, fmt.Errorf("opening maintenance connection to %s: %w", MaskDSN(adminDSN), err)
	}
	defer db.Close()

	var query string
	switch engine {
	case EnginePostgres:
		query = `SELECT COUNT(*) FROM pg_database WHERE datname = $1`
	case EngineSQLServer:
		query = `SELECT COUNT(*) FROM sys.databases WHERE name = @p1`
	case EngineMySQL:
		query = `SELECT COUNT(*) FROM information_schema.schemata WHERE schema_name = ?`
	}

	var count int
	if err := db.QueryRowContext(ctx, query, dbName).Scan(&count); err != nil {
		return false, fmt.Errorf("checking existence of database %q: %w", dbName, err)
	}
	return count > 0, nil
}

// CreateDatabase creates the named database with engine-specific sizing
// where the engine supports it. DDL cannot bind identifiers, so the name
// is validated and quoted instead.
func (c *Connector) CreateDatabase(ctx context.Context, engine Engine, adminDSN, dbName string, sizing Sizing) error {
	if err := engine.Validate(); err != nil {
		return err
	}
	if err := ValidateDatabaseName(dbName); err != nil {
		return err
	}

	db, err := c.opener(engine.DriverName(), adminDSN)
	if err != nil {
		return fmt.Errorf("opening maintenance connection to %s: %w", MaskDSN(adminDSN), err)
	}
	defer db.Close()

	for _, stmt := range createDatabaseStatements(engine, dbName, sizing) {
		if err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating database %q: %w", dbName, err)
		}
	}

	c.log.Info().
		Str("engine", string(engine)).
		Str("database", dbName).
		Msg("database created")
	return nil
}

// createDatabaseStatements builds the DDL for a create, one statement per
// element. Sizing translates to file options on SQL Server and is a no-op
// extension point on Postgres and MySQL.
func createDatabaseStatements(engine Engine, dbName string, sizing Sizing) []string {
	quoted := QuoteIdentifier(engine, dbName)

	switch engine {
	case EngineSQLServer:
		stmts := []string{"CREATE DATABASE " + quoted}
		if sizing.InitialMB > 0 {
			opt := fmt.Sprintf("ALTER DATABASE %s MODIFY FILE (NAME = %s, SIZE = %dMB",
				quoted, QuoteIdentifier(engine, dbName), sizing.InitialMB)
			if sizing.MaxMB > 0 {
				opt += fmt.Sprintf(", MAXSIZE = %dMB", sizing.MaxMB)
			}
			if sizing.GrowthMB > 0 {
				opt += fmt.Sprintf(", FILEGROWTH = %dMB", sizing.GrowthMB)
			}
			stmts = append(stmts, opt+")")
		}
		return stmts

	default:
		return []string{"CREATE DATABASE " + quoted}
	}
}
