package tidb

import (
	"context"
	"fmt"
)

// NewUnavailableClient returns a Client with no backing cluster. Every
// operation, on the client and on handles derived from it, fails with
// ErrUnavailable carrying the given reason. Test harnesses hand one out
// when the cluster is switched off so callers see the reason instead of
// a dial timeout.
func NewUnavailableClient(reason string) Client {
	return &unavailableClient{reason: reason}
}

type unavailableClient struct {
	reason string
}

func (u *unavailableClient) err() error {
	return fmt.Errorf("%w: %s", ErrUnavailable, u.reason)
}

func (u *unavailableClient) sess() (Connection, error) { return nil, u.err() }

func (u *unavailableClient) CreateDatabase(context.Context, string, bool) error { return u.err() }
func (u *unavailableClient) DropDatabase(context.Context, string, bool) error   { return u.err() }
func (u *unavailableClient) HasDatabase(context.Context, string) (bool, error)  { return false, u.err() }
func (u *unavailableClient) DatabaseNames(context.Context) ([]string, error)    { return nil, u.err() }
func (u *unavailableClient) CurrentDatabase(context.Context) (string, error)    { return "", u.err() }
func (u *unavailableClient) CurrentUser(context.Context) (string, error)        { return "", u.err() }
func (u *unavailableClient) UseDatabase(context.Context, string) error          { return u.err() }

func (u *unavailableClient) Database(name string) *Database {
	return &Database{name: name, client: u}
}

func (u *unavailableClient) Table(name string) *Table {
	return &Table{name: name, client: u}
}

func (u *unavailableClient) TableNames(context.Context) ([]string, error)   { return nil, u.err() }
func (u *unavailableClient) HasTable(context.Context, string) (bool, error) { return false, u.err() }
func (u *unavailableClient) DropTable(context.Context, string, bool) error  { return u.err() }

func (u *unavailableClient) Execute(context.Context, string, ...any) (*ExecResult, error) {
	return nil, u.err()
}

func (u *unavailableClient) Query(context.Context, string, ...any) (*Result, error) {
	return nil, u.err()
}

func (u *unavailableClient) WithSession(context.Context, func(*Session) error) error {
	return u.err()
}

func (u *unavailableClient) Ping(context.Context) error { return u.err() }
func (u *unavailableClient) Disconnect() error          { return u.err() }
