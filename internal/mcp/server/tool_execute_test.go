package server

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMCP_Server_ToolExecute_Register(t *testing.T) {
	t.Parallel()

	t.Run("registers tool successfully", func(t *testing.T) {
		t.Parallel()

		err := RegisterDBExecuteTool(testLogger(t), testMCPServer(), &mockClient{})
		require.NoError(t, err)
	})
}

func TestMCP_Server_ToolExecute_Handle(t *testing.T) {
	t.Parallel()

	t.Run("executes a single statement", func(t *testing.T) {
		t.Parallel()

		client := &mockClient{conn: &mockConn{rows: 1}}

		res, err := handleDBExecute(t.Context(), client, ExecuteInput{
			SQL: "DELETE FROM users WHERE id = 1",
		})
		require.NoError(t, err)
		require.Len(t, res.Results, 1)
		require.Equal(t, int64(1), res.Results[0].RowsAffected)
		require.Equal(t, []string{"DELETE FROM users WHERE id = 1"}, client.conn.stmts)
		require.True(t, client.committed)
	})

	t.Run("executes a batch in order", func(t *testing.T) {
		t.Parallel()

		client := &mockClient{conn: &mockConn{rows: 1}}

		res, err := handleDBExecute(t.Context(), client, ExecuteInput{
			Statements: []string{
				"INSERT INTO users (id) VALUES (1)",
				"INSERT INTO users (id) VALUES (2)",
				"UPDATE users SET state = 'active'",
			},
		})
		require.NoError(t, err)
		require.Len(t, res.Results, 3)
		require.Equal(t, []string{
			"INSERT INTO users (id) VALUES (1)",
			"INSERT INTO users (id) VALUES (2)",
			"UPDATE users SET state = 'active'",
		}, client.conn.stmts)
		require.True(t, client.committed)
	})

	t.Run("runs sql before statements", func(t *testing.T) {
		t.Parallel()

		client := &mockClient{conn: &mockConn{rows: 1}}

		res, err := handleDBExecute(t.Context(), client, ExecuteInput{
			SQL:        "CREATE TABLE t (id INT)",
			Statements: []string{"INSERT INTO t VALUES (1)"},
		})
		require.NoError(t, err)
		require.Len(t, res.Results, 2)
		require.Equal(t, []string{"CREATE TABLE t (id INT)", "INSERT INTO t VALUES (1)"}, client.conn.stmts)
	})

	t.Run("rolls back when a statement fails", func(t *testing.T) {
		t.Parallel()

		client := &mockClient{conn: &mockConn{err: errors.New("duplicate entry")}}

		_, err := handleDBExecute(t.Context(), client, ExecuteInput{
			Statements: []string{"INSERT INTO users (id) VALUES (1)"},
		})
		require.Error(t, err)
		require.Contains(t, err.Error(), "failed to execute statements")
		require.True(t, client.rolledBack)
		require.False(t, client.committed)
	})

	t.Run("requires at least one statement", func(t *testing.T) {
		t.Parallel()

		client := &mockClient{}

		_, err := handleDBExecute(t.Context(), client, ExecuteInput{})
		require.Error(t, err)
		require.Contains(t, err.Error(), "required")
		require.False(t, client.committed)
	})
}
