package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

type PingCmd struct{}

func NewPingCmd() *PingCmd {
	return &PingCmd{}
}

func (c *PingCmd) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the cluster is reachable",
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

			if err := client.Ping(ctx); err != nil {
				return err
			}
			fmt.Println("ok")
			return nil
		},
	}
}
