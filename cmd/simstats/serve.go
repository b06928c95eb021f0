package main

import (
	"context"
	"time"

	"simstats-backend/internal/components/chrono"
	"simstats-backend/internal/notify"
	"simstats-backend/internal/server"
	"simstats-backend/lib/serviceutil"
	libtelemetry "simstats-backend/lib/telemetry"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves the update and latest endpoints and runs the scheduled updates.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := serviceutil.SignalContext()

		t, err := libtelemetry.SetupFromEnv(ctx, "simstats")
		if err != nil {
			serviceutil.Fatal("setup telemetry", err)
		}
		defer t.Shutdown(context.Background())
		libtelemetry.InstrumentPerfStats(ctx, 30*time.Second)

		service, err := config.newService(tel)
		if err != nil {
			serviceutil.Fatal("failed to create service", err)
		}

		srv, err := server.New(service, server.Options{
			UpdateInterval: time.Duration(config.Http.UpdateIntervalSeconds) * time.Second,
			LatestTTL:      time.Duration(config.Http.LatestTtlSeconds) * time.Second,
			Notifier:       notify.New(config.Smtp, tel),
		}, tel)
		if err != nil {
			serviceutil.Fatal("failed to create server", err)
		}
		defer srv.Close()

		cron := chrono.NewStandardCron(tel)
		defer cron.Stop()
		err = srv.ScheduleUpdates(ctx, cron, config.cronSpecs())
		if err != nil {
			serviceutil.Fatal("failed to schedule updates", err)
		}

		err = serviceutil.StartHttpServer(ctx, config.Http.Port, srv.Handler(), 2*time.Minute)
		if err != nil {
			serviceutil.Fatal("http server stopped", err)
		}
	},
}
