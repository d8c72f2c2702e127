package tidb

import (
	"context"
	"fmt"
)

// Database is a named handle onto one database of the cluster. It shares
// the parent client's session; constructing one performs no I/O and does
// not require the database to exist.
type Database struct {
	name   string
	client engine
}

func (d *Database) Name() string { return d.name }

// Create creates the database, with the same skipExists contract as
// Client.CreateDatabase.
func (d *Database) Create(ctx context.Context, skipExists bool) error {
	return d.client.CreateDatabase(ctx, d.name, skipExists)
}

// Drop removes the database, with the same skipMissing contract as
// Client.DropDatabase.
func (d *Database) Drop(ctx context.Context, skipMissing bool) error {
	return d.client.DropDatabase(ctx, d.name, skipMissing)
}

// Exists reports whether the database exists.
func (d *Database) Exists(ctx context.Context) (bool, error) {
	return d.client.HasDatabase(ctx, d.name)
}

// Use makes this database the client's default scope. The switch applies
// to the shared session, so it is visible through the parent client and
// every other handle.
func (d *Database) Use(ctx context.Context) error {
	return d.client.UseDatabase(ctx, d.name)
}

// TableNames lists this database's tables without touching the client's
// default scope.
func (d *Database) TableNames(ctx context.Context) ([]string, error) {
	conn, err := d.client.sess()
	if err != nil {
		return nil, err
	}
	rows, err := conn.QueryContext(ctx,
		"SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA = ? ORDER BY TABLE_NAME", d.name)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables of %q: %w", d.name, classifyEngineError(err))
	}
	return scanNames(rows)
}

// HasTable reports whether the named table exists in this database.
func (d *Database) HasTable(ctx context.Context, name string) (bool, error) {
	conn, err := d.client.sess()
	if err != nil {
		return false, err
	}
	return hasTable(ctx, conn, d.name, name)
}

// Table returns a handle for the named table qualified by this database,
// so operations on it work regardless of the client's default scope.
func (d *Database) Table(name string) *Table {
	return &Table{db: d.name, name: name, client: d.client}
}
