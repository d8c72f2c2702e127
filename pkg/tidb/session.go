package tidb

import (
	"context"
	"fmt"
)

// Session is the view of the client inside one transaction, handed to
// the callback of Client.WithSession. Statements run through it commit
// or roll back together.
type Session struct {
	conn Connection
}

// NewSession wraps an existing connection or transaction in a Session.
// Client.WithSession is the normal way to get one; fakes build their
// own.
func NewSession(conn Connection) *Session {
	return &Session{conn: conn}
}

// Execute runs a statement that returns no rows inside the session.
func (s *Session) Execute(ctx context.Context, stmt string, args ...any) (*ExecResult, error) {
	res, err := s.conn.ExecContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute statement: %w", classifyEngineError(err))
	}
	return newExecResult(res), nil
}

// Query runs a query inside the session and materializes the full
// result.
func (s *Session) Query(ctx context.Context, query string, args ...any) (*Result, error) {
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", classifyEngineError(err))
	}
	return newResult(rows)
}
