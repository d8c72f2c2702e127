package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

type ExecCmd struct{}

func NewExecCmd() *ExecCmd {
	return &ExecCmd{}
}

func (c *ExecCmd) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "exec <sql>",
		Short: "Execute a statement and print the rows affected",
		Args:  cobra.ExactArgs(1),
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

			res, err := client.Execute(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Rows affected: %d\n", res.RowsAffected)
			if res.LastInsertID != 0 {
				fmt.Printf("Last insert ID: %d\n", res.LastInsertID)
			}
			return nil
		},
	}
}
