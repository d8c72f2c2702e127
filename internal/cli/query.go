package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

type QueryCmd struct{}

func NewQueryCmd() *QueryCmd {
	return &QueryCmd{}
}

func (c *QueryCmd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query <sql>",
		Short: "Run a query and print its rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := loggerFromFlags(cmd)
			if err != nil {
				return err
			}
			format, err := cmd.Flags().GetString("format")
			if err != nil {
				return fmt.Errorf("failed to get format flag: %w", err)
			}
			if format != "table" && format != "json" {
				return fmt.Errorf("invalid format: %s", format)
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			client, err := connect(ctx, cmd, log)
			if err != nil {
				return err
			}
			defer disconnect(log, client)

			res, err := client.Query(ctx, args[0])
			if err != nil {
				return err
			}

			if format == "json" {
				out, err := json.MarshalIndent(res.Maps(), "", "  ")
				if err != nil {
					return fmt.Errorf("failed to encode rows: %w", err)
				}
				fmt.Println(string(out))
				return nil
			}

			res.RenderTable(os.Stdout)
			fmt.Printf("(%d rows)\n", res.Count())
			return nil
		},
	}

	cmd.Flags().String("format", "table", "output format (table, json)")

	return cmd
}
