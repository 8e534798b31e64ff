package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jholhewres/chatrelay/pkg/chatrelay/httpserver"
)

func newServeCmd() *cobra.Command {
	var addr, sweepSchedule string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "run the webhook server (serves /healthz and the three transport webhooks)",
		RunE: func(cmd *cobra.Command, args []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			yamlFile, _ := cmd.Flags().GetString("config")
			verbose, _ := cmd.Flags().GetBool("verbose")

			a, err := buildApp(envFile, yamlFile, verbose)
			if err != nil {
				return err
			}
			if a.dedupeBackup != nil {
				defer a.dedupeBackup.Close()
			}
			if err := a.sweeper.Start(sweepSchedule); err != nil {
				return err
			}
			defer a.sweeper.Stop()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a.logger.Info("chatrelay: serving", "addr", addr)
			srv := httpserver.New(a.router, addr, a.logger)
			return srv.Start(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8090", "listen address")
	cmd.Flags().StringVar(&sweepSchedule, "sweep-schedule", "*/5 * * * *", "cron schedule for the store compaction sweep")
	return cmd
}
