package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/pingcap/gotidb/pkg/tidb"
)

type ExitCode int

const (
	exitCodeSuccess = 0
	exitCodeError   = 1
)

func Run() ExitCode {
	// A .env next to the binary seeds the TIDB_* variables; a missing
	// file is fine.
	_ = godotenv.Load()

	if err := newRootCommand().Execute(); err != nil {
		return exitCodeError
	}

	return exitCodeSuccess
}

func newRootCommand() *cobra.Command {
	envCfg := tidb.NewConfigFromEnv()

	rootCmd := &cobra.Command{
		Use:   "tidb-cli",
		Short: "Command line client for TiDB databases.",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := cmd.Help()
			if err != nil {
				return fmt.Errorf("failed to show help: %w", err)
			}
			return nil
		},
	}

	var verbose bool
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "set debug logging level")
	rootCmd.PersistentFlags().String("host", envCfg.Host, "TiDB host (TIDB_HOST)")
	rootCmd.PersistentFlags().String("port", envCfg.Port, "TiDB port (TIDB_PORT)")
	rootCmd.PersistentFlags().StringP("username", "u", envCfg.Username, "TiDB username (TIDB_USERNAME)")
	rootCmd.PersistentFlags().StringP("password", "p", envCfg.Password, "TiDB password (TIDB_PASSWORD)")
	rootCmd.PersistentFlags().StringP("database", "d", envCfg.Database, "database to connect to (TIDB_DATABASE)")
	rootCmd.PersistentFlags().Bool("ssl", false, "force TLS; unset means auto-detection (TIDB_ENABLE_SSL)")

	rootCmd.AddCommand(
		NewDatabasesCmd().Command(),
		NewTablesCmd().Command(),
		NewQueryCmd().Command(),
		NewExecCmd().Command(),
		NewPingCmd().Command(),
	)

	return rootCmd
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
}

func loggerFromFlags(cmd *cobra.Command) (*slog.Logger, error) {
	verbose, err := cmd.Root().PersistentFlags().GetBool("verbose")
	if err != nil {
		return nil, fmt.Errorf("failed to get verbose flag: %w", err)
	}
	return newLogger(verbose), nil
}

// clientConfig builds the connection config from the persistent flags.
// Flag defaults come from the environment, so a bare invocation connects
// the same way the library would.
func clientConfig(cmd *cobra.Command) (*tidb.Config, error) {
	flags := cmd.Root().PersistentFlags()

	cfg := tidb.NewConfigFromEnv()

	host, err := flags.GetString("host")
	if err != nil {
		return nil, fmt.Errorf("failed to get host flag: %w", err)
	}
	cfg.Host = host

	port, err := flags.GetString("port")
	if err != nil {
		return nil, fmt.Errorf("failed to get port flag: %w", err)
	}
	cfg.Port = port

	username, err := flags.GetString("username")
	if err != nil {
		return nil, fmt.Errorf("failed to get username flag: %w", err)
	}
	cfg.Username = username

	password, err := flags.GetString("password")
	if err != nil {
		return nil, fmt.Errorf("failed to get password flag: %w", err)
	}
	cfg.Password = password

	database, err := flags.GetString("database")
	if err != nil {
		return nil, fmt.Errorf("failed to get database flag: %w", err)
	}
	cfg.Database = database

	// The ssl flag only overrides auto-detection when it was given.
	if flags.Changed("ssl") {
		ssl, err := flags.GetBool("ssl")
		if err != nil {
			return nil, fmt.Errorf("failed to get ssl flag: %w", err)
		}
		cfg.EnableSSL = &ssl
	}

	return cfg, nil
}

func connect(ctx context.Context, cmd *cobra.Command, log *slog.Logger) (tidb.Client, error) {
	cfg, err := clientConfig(cmd)
	if err != nil {
		return nil, err
	}
	client, err := tidb.Connect(ctx, log, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.RedactedAddr(), err)
	}
	return client, nil
}

func disconnect(log *slog.Logger, client tidb.Client) {
	if err := client.Disconnect(); err != nil {
		log.Error("failed to disconnect", "error", err)
	}
}
