package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"StakeLedger/internal/scheduler"
)

func newServeCmd(f *rootFlags) *cobra.Command {
	var runNow bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the daily report scheduler and the Telegram command bot",
		Args:  cobra.NoArgs,
		RunE: withApp(f, func(cmd *cobra.Command, _ []string, a *app) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return serve(ctx, a, runNow || os.Getenv("RUN_ON_START") == "true")
		}),
	}
	cmd.Flags().BoolVar(&runNow, "run-now", false, "Run the daily report once at startup")
	return cmd
}

// serve runs until ctx is done. Every goroutine it starts has finished when
// it returns, so the caller may close the store.
func serve(ctx context.Context, a *app, runNow bool) error {
	var n scheduler.Notifier
	if a.telegram != nil {
		n = a.telegram
	} else {
		slog.Warn("telegram is not configured, reports are logged only")
	}

	sched := scheduler.NewScheduler(ctx, a.ledger, n)
	if err := sched.RegisterAll(a.cfg.Schedule.DailyReportCron); err != nil {
		return err
	}

	if runNow {
		slog.Info("running daily report now")
		sched.RunDailyReportNow()
	}

	sched.Start()
	defer sched.Stop()

	var wg sync.WaitGroup
	defer wg.Wait()
	if a.telegram != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.telegram.StartPolling(ctx, sched.HandleCommand)
		}()
		slog.Info("telegram polling started")
	}

	slog.Info("StakeLedger is running. Press Ctrl+C to stop.", "cron", a.cfg.Schedule.DailyReportCron)
	<-ctx.Done()
	slog.Info("shutdown signal received, stopping...")
	return nil
}
