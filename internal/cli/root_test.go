package cli

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCLI_RootCommand(t *testing.T) {
	cmd := newRootCommand()

	names := make([]string, 0, len(cmd.Commands()))
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	require.Subset(t, names, []string{"databases", "tables", "query", "exec", "ping"})
}

func TestCLI_ClientConfig(t *testing.T) {
	t.Setenv("TIDB_HOST", "db.internal")
	t.Setenv("TIDB_PORT", "4001")
	t.Setenv("TIDB_USERNAME", "root")
	t.Setenv("TIDB_PASSWORD", "secret")
	t.Setenv("TIDB_DATABASE", "test")
	t.Setenv("TIDB_ENABLE_SSL", "")

	t.Run("flag defaults come from the environment", func(t *testing.T) {
		cmd := newRootCommand()

		cfg, err := clientConfig(cmd)
		require.NoError(t, err)
		require.Equal(t, "db.internal", cfg.Host)
		require.Equal(t, "4001", cfg.Port)
		require.Equal(t, "root", cfg.Username)
		require.Equal(t, "secret", cfg.Password)
		require.Equal(t, "test", cfg.Database)
		require.Nil(t, cfg.EnableSSL)
	})

	t.Run("flags override the environment", func(t *testing.T) {
		cmd := newRootCommand()
		require.NoError(t, cmd.PersistentFlags().Set("host", "other.host"))
		require.NoError(t, cmd.PersistentFlags().Set("database", "analytics"))

		cfg, err := clientConfig(cmd)
		require.NoError(t, err)
		require.Equal(t, "other.host", cfg.Host)
		require.Equal(t, "analytics", cfg.Database)
		require.Equal(t, "root", cfg.Username)
	})

	t.Run("ssl stays on auto-detection unless the flag is given", func(t *testing.T) {
		cmd := newRootCommand()
		require.NoError(t, cmd.PersistentFlags().Set("ssl", "true"))

		cfg, err := clientConfig(cmd)
		require.NoError(t, err)
		require.NotNil(t, cfg.EnableSSL)
		require.True(t, *cfg.EnableSSL)
	})
}
