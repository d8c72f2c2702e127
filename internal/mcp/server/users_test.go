package server

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMCP_Server_ToolUsers_Register(t *testing.T) {
	t.Parallel()

	t.Run("registers tools successfully", func(t *testing.T) {
		t.Parallel()

		server := testMCPServer()
		require.NoError(t, RegisterCreateUserTool(testLogger(t), server, &mockClient{}, false))
		require.NoError(t, RegisterRemoveUserTool(testLogger(t), server, &mockClient{}, false))
	})
}

func TestMCP_Server_QualifyUsername(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		serverless  bool
		username    string
		currentUser string
		want        string
	}{
		{
			name:        "serverless bare name gets the cluster prefix",
			serverless:  true,
			username:    "appuser",
			currentUser: "4FJlG8zDpVrHbCy.root@%",
			want:        "4FJlG8zDpVrHbCy.appuser",
		},
		{
			name:       "serverless qualified name is untouched",
			serverless: true,
			username:   "4FJlG8zDpVrHbCy.appuser",
			want:       "4FJlG8zDpVrHbCy.appuser",
		},
		{
			name:        "dedicated cluster names are untouched",
			serverless:  false,
			username:    "appuser",
			currentUser: "root@%",
			want:        "appuser",
		},
		{
			name:        "current user without a prefix leaves the name bare",
			serverless:  true,
			username:    "appuser",
			currentUser: "root@%",
			want:        "appuser",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client := &mockClient{user: tt.currentUser}

			got, err := qualifyUsername(t.Context(), client, tt.serverless, tt.username)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}

	t.Run("propagates current user lookup failures", func(t *testing.T) {
		t.Parallel()

		client := &mockClient{err: errors.New("connection lost")}

		_, err := qualifyUsername(t.Context(), client, true, "appuser")
		require.Error(t, err)
		require.Contains(t, err.Error(), "failed to resolve current user")
	})

	t.Run("does not consult the engine for qualified names", func(t *testing.T) {
		t.Parallel()

		client := &mockClient{err: errors.New("connection lost")}

		got, err := qualifyUsername(t.Context(), client, true, "prefix.appuser")
		require.NoError(t, err)
		require.Equal(t, "prefix.appuser", got)
	})
}

func TestMCP_Server_CreateUser(t *testing.T) {
	t.Parallel()

	t.Run("creates a prefixed user on serverless", func(t *testing.T) {
		t.Parallel()

		client := &mockClient{user: "pref.root@%"}

		name, err := createUser(t.Context(), client, true, "bob", "s3cret")
		require.NoError(t, err)
		require.Equal(t, "pref.bob", name)
		require.Equal(t, []string{"CREATE USER 'pref.bob' IDENTIFIED BY 's3cret'"}, client.execStmts)
	})

	t.Run("quotes literals", func(t *testing.T) {
		t.Parallel()

		client := &mockClient{}

		_, err := createUser(t.Context(), client, false, "bob", "it's")
		require.NoError(t, err)
		require.Equal(t, []string{"CREATE USER 'bob' IDENTIFIED BY 'it''s'"}, client.execStmts)
	})

	t.Run("wraps engine failures", func(t *testing.T) {
		t.Parallel()

		client := &mockClient{err: errors.New("access denied")}

		_, err := createUser(t.Context(), client, false, "bob", "s3cret")
		require.Error(t, err)
		require.Contains(t, err.Error(), `failed to create user "bob"`)
	})

	t.Run("rejects an empty username", func(t *testing.T) {
		t.Parallel()

		client := &mockClient{}

		_, err := createUser(t.Context(), client, false, "", "s3cret")
		require.Error(t, err)
		require.Contains(t, err.Error(), "username is required")
		require.Empty(t, client.execStmts)
	})
}

func TestMCP_Server_RemoveUser(t *testing.T) {
	t.Parallel()

	t.Run("drops a prefixed user on serverless", func(t *testing.T) {
		t.Parallel()

		client := &mockClient{user: "pref.root@%"}

		name, err := removeUser(t.Context(), client, true, "bob")
		require.NoError(t, err)
		require.Equal(t, "pref.bob", name)
		require.Equal(t, []string{"DROP USER 'pref.bob'"}, client.execStmts)
	})

	t.Run("wraps engine failures", func(t *testing.T) {
		t.Parallel()

		client := &mockClient{err: errors.New("user missing")}

		_, err := removeUser(t.Context(), client, false, "bob")
		require.Error(t, err)
		require.Contains(t, err.Error(), `failed to remove user "bob"`)
	})

	t.Run("rejects an empty username", func(t *testing.T) {
		t.Parallel()

		client := &mockClient{}

		_, err := removeUser(t.Context(), client, false, "")
		require.Error(t, err)
		require.Contains(t, err.Error(), "username is required")
		require.Empty(t, client.execStmts)
	})
}
