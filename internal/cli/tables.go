package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

type TablesCmd struct{}

func NewTablesCmd() *TablesCmd {
	return &TablesCmd{}
}

func (c *TablesCmd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tables",
		Short: "List tables in the connected database",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := loggerFromFlags(cmd)
			if err != nil {
				return err
			}
			scope, err := cmd.Flags().GetString("in")
			if err != nil {
				return fmt.Errorf("failed to get in flag: %w", err)
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			client, err := connect(ctx, cmd, log)
			if err != nil {
				return err
			}
			defer disconnect(log, client)

			var names []string
			if scope != "" {
				names, err = client.Database(scope).TableNames(ctx)
			} else {
				names, err = client.TableNames(ctx)
			}
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Println(name)
			}
			return nil
		},
	}

	cmd.Flags().String("in", "", "list tables of this database instead of the connected one")

	return cmd
}
