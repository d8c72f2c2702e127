package tidb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	_ "github.com/go-sql-driver/mysql"
)

// Client is the top-level handle to a TiDB connection. A live client owns
// exactly one engine session, so session state such as the active database
// survives across calls; Database and Table handles share that session.
// The wrapper adds no concurrency of its own: callers serialize access to
// a shared client or connect once per goroutine.
//
// NewUnavailableClient returns a second implementation of this surface
// whose operations all fail with ErrUnavailable, for environments without
// a reachable cluster.
type Client interface {
	// CreateDatabase creates the named database. When the name is taken the
	// call fails with ErrAlreadyExists unless skipExists is set.
	CreateDatabase(ctx context.Context, name string, skipExists bool) error
	// DropDatabase removes the named database and everything in it. When
	// the name is absent the call fails with ErrNotFound unless skipMissing
	// is set.
	DropDatabase(ctx context.Context, name string, skipMissing bool) error
	// HasDatabase reports whether the named database exists.
	HasDatabase(ctx context.Context, name string) (bool, error)
	// DatabaseNames lists all databases in engine order.
	DatabaseNames(ctx context.Context) ([]string, error)
	// CurrentDatabase returns the active default database, or "" when none
	// is selected.
	CurrentDatabase(ctx context.Context) (string, error)
	// CurrentUser returns the authenticated user as the engine sees it.
	CurrentUser(ctx context.Context) (string, error)
	// UseDatabase switches the client's default database in place. Unknown
	// names fail with ErrNotFound.
	UseDatabase(ctx context.Context, name string) error

	// Database returns a handle for the named database. No I/O happens.
	Database(name string) *Database
	// Table returns a handle for the named table in the active database.
	// No I/O happens.
	Table(name string) *Table
	// TableNames lists the tables of the active database.
	TableNames(ctx context.Context) ([]string, error)
	// HasTable reports whether the named table exists in the active
	// database.
	HasTable(ctx context.Context, name string) (bool, error)
	// DropTable removes the named table. When it is absent the call fails
	// with ErrNotFound unless skipMissing is set.
	DropTable(ctx context.Context, name string, skipMissing bool) error

	// Execute runs a statement that returns no rows.
	Execute(ctx context.Context, stmt string, args ...any) (*ExecResult, error)
	// Query runs a query and materializes the full result.
	Query(ctx context.Context, query string, args ...any) (*Result, error)
	// WithSession runs fn inside a transaction, committing on a nil return
	// and rolling back otherwise.
	WithSession(ctx context.Context, fn func(*Session) error) error

	Ping(ctx context.Context) error
	// Disconnect releases the connection. Every later operation, including
	// those through handles, fails with ErrNotConnected.
	Disconnect() error
}

// Connection is the slice of a database session that statements run
// through. Both sql.Conn and sql.Tx satisfy it, and tests substitute
// recording fakes.
type Connection interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// engine is the slice of client behavior that Database and Table
// handles build on. Both the live and the unavailable client satisfy
// it, so handles work against either.
type engine interface {
	sess() (Connection, error)
	CreateDatabase(ctx context.Context, name string, skipExists bool) error
	DropDatabase(ctx context.Context, name string, skipMissing bool) error
	HasDatabase(ctx context.Context, name string) (bool, error)
	UseDatabase(ctx context.Context, name string) error
	HasTable(ctx context.Context, name string) (bool, error)
}

type client struct {
	log *slog.Logger
	cfg *Config

	db   *sql.DB
	conn *sql.Conn

	mu       sync.Mutex
	database string
	closed   bool
}

// Connect opens a session against the cluster described by cfg and
// verifies it with a ping; failures surface as ErrConnection. A nil cfg
// means the defaults (localhost:4000, root, database "test").
func Connect(ctx context.Context, log *slog.Logger, cfg *Config) (Client, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.EnsureDatabase {
		if err := ensureDatabase(ctx, log, cfg); err != nil {
			return nil, err
		}
	}

	db, conn, err := openPinned(ctx, cfg, cfg.Database)
	if err != nil {
		return nil, err
	}

	log.Info("tidb client connected",
		"addr", cfg.RedactedAddr(),
		"serverless", cfg.IsServerless(),
	)

	return &client{
		log:      log,
		cfg:      cfg,
		db:       db,
		conn:     conn,
		database: cfg.Database,
	}, nil
}

// openPinned opens a pool restricted to a single connection and checks out
// that connection for the client's lifetime. Pinning keeps session state
// like USE on one engine session instead of scattering it across a pool.
func openPinned(ctx context.Context, cfg *Config, database string) (*sql.DB, *sql.Conn, error) {
	dsnCfg := *cfg
	dsnCfg.Database = database
	db, err := sql.Open("mysql", dsnCfg.DSN())
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if cfg.IsServerless() {
		db.SetConnMaxLifetime(serverlessConnMaxLifetime)
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		db.Close()
		return nil, nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	return db, conn, nil
}

// ensureDatabase creates cfg.Database when it is missing, connecting
// without a default schema the way bootstrap tooling does.
func ensureDatabase(ctx context.Context, log *slog.Logger, cfg *Config) error {
	db, conn, err := openPinned(ctx, cfg, "")
	if err != nil {
		return err
	}
	defer db.Close()
	defer conn.Close()

	stmt := "CREATE DATABASE IF NOT EXISTS " + QuoteIdentifier(cfg.Database)
	if _, err := conn.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to ensure database %q: %w", cfg.Database, classifyEngineError(err))
	}
	log.Debug("ensured database exists", "database", cfg.Database)
	return nil
}

// sess returns the pinned connection for issuing statements, failing
// once the client is closed.
func (c *client) sess() (Connection, error) {
	return c.pinned()
}

func (c *client) pinned() (*sql.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrNotConnected
	}
	return c.conn, nil
}

func (c *client) CreateDatabase(ctx context.Context, name string, skipExists bool) error {
	conn, err := c.sess()
	if err != nil {
		return err
	}
	stmt := "CREATE DATABASE "
	if skipExists {
		stmt = "CREATE DATABASE IF NOT EXISTS "
	}
	if _, err := conn.ExecContext(ctx, stmt+QuoteIdentifier(name)); err != nil {
		return fmt.Errorf("failed to create database %q: %w", name, classifyEngineError(err))
	}
	return nil
}

func (c *client) DropDatabase(ctx context.Context, name string, skipMissing bool) error {
	conn, err := c.sess()
	if err != nil {
		return err
	}
	stmt := "DROP DATABASE "
	if skipMissing {
		stmt = "DROP DATABASE IF EXISTS "
	}
	if _, err := conn.ExecContext(ctx, stmt+QuoteIdentifier(name)); err != nil {
		return fmt.Errorf("failed to drop database %q: %w", name, classifyEngineError(err))
	}
	return nil
}

func (c *client) HasDatabase(ctx context.Context, name string) (bool, error) {
	conn, err := c.sess()
	if err != nil {
		return false, err
	}
	var count int
	row := conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM INFORMATION_SCHEMA.SCHEMATA WHERE SCHEMA_NAME = ?", name)
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check database %q: %w", name, classifyEngineError(err))
	}
	return count > 0, nil
}

func (c *client) DatabaseNames(ctx context.Context) ([]string, error) {
	conn, err := c.sess()
	if err != nil {
		return nil, err
	}
	rows, err := conn.QueryContext(ctx, "SHOW DATABASES")
	if err != nil {
		return nil, fmt.Errorf("failed to list databases: %w", classifyEngineError(err))
	}
	return scanNames(rows)
}

func (c *client) CurrentDatabase(ctx context.Context) (string, error) {
	conn, err := c.sess()
	if err != nil {
		return "", err
	}
	var name sql.NullString
	if err := conn.QueryRowContext(ctx, "SELECT DATABASE()").Scan(&name); err != nil {
		return "", fmt.Errorf("failed to get current database: %w", classifyEngineError(err))
	}
	return name.String, nil
}

func (c *client) CurrentUser(ctx context.Context) (string, error) {
	conn, err := c.sess()
	if err != nil {
		return "", err
	}
	var user string
	if err := conn.QueryRowContext(ctx, "SELECT CURRENT_USER()").Scan(&user); err != nil {
		return "", fmt.Errorf("failed to get current user: %w", classifyEngineError(err))
	}
	return user, nil
}

func (c *client) UseDatabase(ctx context.Context, name string) error {
	conn, err := c.sess()
	if err != nil {
		return err
	}
	if _, err := conn.ExecContext(ctx, "USE "+QuoteIdentifier(name)); err != nil {
		return fmt.Errorf("failed to use database %q: %w", name, classifyEngineError(err))
	}
	c.mu.Lock()
	c.database = name
	c.mu.Unlock()
	return nil
}

func (c *client) Database(name string) *Database {
	return &Database{name: name, client: c}
}

func (c *client) Table(name string) *Table {
	return &Table{name: name, client: c}
}

func (c *client) TableNames(ctx context.Context) ([]string, error) {
	conn, err := c.sess()
	if err != nil {
		return nil, err
	}
	rows, err := conn.QueryContext(ctx, "SHOW TABLES")
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", classifyEngineError(err))
	}
	return scanNames(rows)
}

func (c *client) HasTable(ctx context.Context, name string) (bool, error) {
	conn, err := c.sess()
	if err != nil {
		return false, err
	}
	return hasTable(ctx, conn, "", name)
}

func (c *client) DropTable(ctx context.Context, name string, skipMissing bool) error {
	conn, err := c.sess()
	if err != nil {
		return err
	}
	stmt := "DROP TABLE "
	if skipMissing {
		stmt = "DROP TABLE IF EXISTS "
	}
	if _, err := conn.ExecContext(ctx, stmt+QuoteIdentifier(name)); err != nil {
		return fmt.Errorf("failed to drop table %q: %w", name, classifyEngineError(err))
	}
	return nil
}

func (c *client) Execute(ctx context.Context, stmt string, args ...any) (*ExecResult, error) {
	conn, err := c.sess()
	if err != nil {
		return nil, err
	}
	res, err := conn.ExecContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute statement: %w", classifyEngineError(err))
	}
	return newExecResult(res), nil
}

func (c *client) Query(ctx context.Context, query string, args ...any) (*Result, error) {
	conn, err := c.sess()
	if err != nil {
		return nil, err
	}
	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", classifyEngineError(err))
	}
	return newResult(rows)
}

func (c *client) WithSession(ctx context.Context, fn func(*Session) error) error {
	conn, err := c.pinned()
	if err != nil {
		return err
	}
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin session: %w", classifyEngineError(err))
	}
	if err := fn(&Session{conn: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			c.log.Error("failed to roll back session", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit session: %w", classifyEngineError(err))
	}
	return nil
}

func (c *client) Ping(ctx context.Context) error {
	conn, err := c.pinned()
	if err != nil {
		return err
	}
	if err := conn.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	return nil
}

func (c *client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	connErr := c.conn.Close()
	if errors.Is(connErr, sql.ErrConnDone) {
		connErr = nil
	}
	if err := c.db.Close(); err != nil {
		return fmt.Errorf("failed to close pool: %w", err)
	}
	if connErr != nil {
		return fmt.Errorf("failed to close connection: %w", connErr)
	}
	return nil
}

// hasTable checks INFORMATION_SCHEMA for the table; an empty schema
// means the session's current database.
func hasTable(ctx context.Context, conn Connection, schema, name string) (bool, error) {
	query := "SELECT COUNT(*) FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?"
	args := []any{name}
	if schema != "" {
		query = "SELECT COUNT(*) FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?"
		args = []any{schema, name}
	}
	var count int
	if err := conn.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check table %q: %w", name, classifyEngineError(err))
	}
	return count > 0, nil
}

func scanNames(rows *sql.Rows) ([]string, error) {
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return names, nil
}
