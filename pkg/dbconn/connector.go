package dbconn

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	// Engine drivers, selected by Engine.DriverName.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/microsoft/go-mssqldb"
)

// Database is the slice of database/sql behavior the connector needs.
// Tests substitute fakes; production code wraps *sql.DB.
type Database interface {
	PingContext(ctx context.Context) error
	QueryRowContext(ctx context.Context, query string, args ...any) Row
	ExecContext(ctx context.Context, query string, args ...any) error
	Close() error
}

// Row is a single-row query result.
type Row interface {
	Scan(dest ...any) error
}

// Opener opens a Database for a driver name and DSN.
type Opener func(driverName, dsn string) (Database, error)

// sqlDatabase adapts *sql.DB to the Database interface.
type sqlDatabase struct {
	db *sql.DB
}

func (s *sqlDatabase) PingContext(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlDatabase) QueryRowContext(ctx context.Context, query string, args ...any) Row {
	return s.db.QueryRowContext(ctx, query, args...)
}

func (s *sqlDatabase) ExecContext(ctx context.Context, query string, args ...any) error {
	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}

func (s *sqlDatabase) Close() error {
	return s.db.Close()
}

// defaultOpener opens a real database/sql connection.
func defaultOpener(driverName, dsn string) (Database, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(2)
	db.SetConnMaxLifetime(time.Minute)
	return &sqlDatabase{db: db}, nil
}

// Connector tests connections and provisions databases across engines.
type Connector struct {
	opener      Opener
	maxAttempts int
	baseBackoff time.Duration
	log         zerolog.Logger

	// onRetry is invoked once per retried attempt; the telemetry layer
	// hooks a counter here.
	onRetry func(engine Engine)
}

// Option configures a Connector.
type Option func(*Connector)

// WithOpener substitutes the database opener, used by tests.
func WithOpener(open Opener) Option {
	return func(c *Connector) { c.opener = open }
}

// WithMaxAttempts bounds connection test attempts.
func WithMaxAttempts(n int) Option {
	return func(c *Connector) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithBackoff sets the base backoff between attempts.
func WithBackoff(d time.Duration) Option {
	return func(c *Connector) {
		if d > 0 {
			c.baseBackoff = d
		}
	}
}

// WithRetryHook registers a callback fired on every retried attempt.
func WithRetryHook(fn func(engine Engine)) Option {
	return func(c *Connector) { c.onRetry = fn }
}

// NewConnector creates a connector with bounded retries.
func NewConnector(log zerolog.Logger, opts ...Option) *Connector {
	c := &Connector{
		opener:      defaultOpener,
		maxAttempts: 3,
		baseBackoff: 500 * time.Millisecond,
		log:         log.With().Str("component", "dbconn").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TestConnection verifies that the DSN is reachable and authenticates,
// within the given overall timeout. Attempts are bounded and separated by
// exponential backoff; the last failure is returned with the DSN masked.
func (c *Connector) TestConnection(ctx context.Context, engine Engine, dsn string, timeout time.Duration) error {
	if err := engine.Validate(); err != nil {
		return err
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			if c.onRetry != nil {
				c.onRetry(engine)
			}
			backoff := c.baseBackoff * time.Duration(1<<(attempt-2))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return fmt.Errorf("connection test to %s timed out after %d attempts: %w",
					MaskDSN(dsn), attempt-1, lastErr)
			}
		}

		lastErr = c.ping(ctx, engine, dsn)
		if lastErr == nil {
			c.log.Debug().
				Str("engine", string(engine)).
				Str("dsn", MaskDSN(dsn)).
				Int("attempt", attempt).
				Msg("connection test succeeded")
			return nil
		}

		c.log.Warn().
			Str("engine", string(engine)).
			Str("dsn", MaskDSN(dsn)).
			Int("attempt", attempt).
			Err(lastErr).
			Msg("connection test attempt failed")

		if ctx.Err() != nil {
			break
		}
	}

	return fmt.Errorf("could not connect to %s (%s) after %d attempts: %w",
		MaskDSN(dsn), engine, c.maxAttempts, lastErr)
}

func (c *Connector) ping(ctx context.Context, engine Engine, dsn string) error {
	db, err := c.opener(engine.DriverName(), dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.PingContext(ctx)
}
