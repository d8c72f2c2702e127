package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

type DatabasesCmd struct{}

func NewDatabasesCmd() *DatabasesCmd {
	return &DatabasesCmd{}
}

func (c *DatabasesCmd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "databases",
		Short: "Manage databases in the cluster",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := cmd.Help()
			if err != nil {
				return fmt.Errorf("failed to show help: %w", err)
			}
			return nil
		},
	}

	cmd.AddCommand(
		c.listCommand(),
		c.createCommand(),
		c.dropCommand(),
	)

	return cmd
}

func (c *DatabasesCmd) listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all databases",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := loggerFromFlags(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			client, err := connect(ctx, cmd, log)
			if err != nil {
				return err
			}
			defer disconnect(log, client)

			names, err := client.DatabaseNames(ctx)
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Println(name)
			}
			return nil
		},
	}
}

func (c *DatabasesCmd) createCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := loggerFromFlags(cmd)
			if err != nil {
				return err
			}
			skipExists, err := cmd.Flags().GetBool("skip-exists")
			if err != nil {
				return fmt.Errorf("failed to get skip-exists flag: %w", err)
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			client, err := connect(ctx, cmd, log)
			if err != nil {
				return err
			}
			defer disconnect(log, client)

			if err := client.CreateDatabase(ctx, args[0], skipExists); err != nil {
				return err
			}
			fmt.Printf("Database %q created\n", args[0])
			return nil
		},
	}

	cmd.Flags().Bool("skip-exists", false, "succeed when the database already exists")

	return cmd
}

func (c *DatabasesCmd) dropCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drop <name>",
		Short: "Drop a database and everything in it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := loggerFromFlags(cmd)
			if err != nil {
				return err
			}
			skipMissing, err := cmd.Flags().GetBool("skip-missing")
			if err != nil {
				return fmt.Errorf("failed to get skip-missing flag: %w", err)
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			client, err := connect(ctx, cmd, log)
			if err != nil {
				return err
			}
			defer disconnect(log, client)

			if err := client.DropDatabase(ctx, args[0], skipMissing); err != nil {
				return err
			}
			fmt.Printf("Database %q dropped\n", args[0])
			return nil
		},
	}

	cmd.Flags().Bool("skip-missing", false, "succeed when the database does not exist")

	return cmd
}
