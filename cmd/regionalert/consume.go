package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/regionalert/internal/notify"
)

func newConsumeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "consume",
		Short: "Deliver queued notifications through the SMS provider",
		Long: `Consume notifications from the redis or kafka queue and send each one
through the configured SMS provider until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			if a.cfg.Queue.Backend == notify.BackendMemory {
				a.logger.Warn("memory queue is process-local; nothing will be published to this consumer")
			}

			ch, err := a.openChannel(ctx)
			if err != nil {
				return err
			}
			defer ch.Close()

			consumer, err := a.newConsumer(ch)
			if err != nil {
				return err
			}

			a.logger.Info("consuming",
				"queue_backend", a.cfg.Queue.Backend,
				"sms_provider", a.cfg.SMS.Provider,
				"workers", a.cfg.Queue.Workers,
			)
			err = consumer.Run(ctx)

			stats := consumer.Stats()
			fmt.Fprintf(cmd.OutOrStdout(), "delivered %d notifications, %d failed\n", stats.Sent, stats.Failed)
			return err
		},
	}
}
