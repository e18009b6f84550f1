package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marbec/linkmesh/internal/scheduler"
	"github.com/marbec/linkmesh/internal/verify"
)

func init() {
	scheduleCmd.Flags().String("scores", "", "Cron expression for score recomputation (default from config)")
	scheduleCmd.Flags().String("verify", "", "Cron expression for domain verification (default from config)")
	rootCmd.AddCommand(scheduleCmd)
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the maintenance daemon",
	Long: `Run recurring maintenance in the foreground: per-platform score
recomputation and domain catalog verification on cron schedules. Stops on
SIGINT/SIGTERM after letting running jobs finish.`,
	RunE: runSchedule,
}

func runSchedule(cmd *cobra.Command, args []string) error {
	repoRoot := mustFindRepository()
	cfg := mustLoadConfig(repoRoot)

	scoreSpec, _ := cmd.Flags().GetString("scores")
	verifySpec, _ := cmd.Flags().GetString("verify")
	if scoreSpec == "" {
		scoreSpec = cfg.PageRankSchedule
	}
	if verifySpec == "" {
		verifySpec = cfg.VerifySchedule
	}

	db := mustOpenDatabase(repoRoot)
	defer db.Close()

	log := newLogger()
	verifierOpts := []verify.Option{
		verify.WithRateLimit(cfg.VerifyRateLimit),
		verify.WithLogger(log),
	}
	if cfg.UserAgent != "" {
		verifierOpts = append(verifierOpts, verify.WithUserAgent(cfg.UserAgent))
	}

	s := scheduler.New(db, newEngine(db, cfg), verify.New(db, verifierOpts...), scoreSpec, verifySpec, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if humanOutput {
		outputHuman("Scheduler running (scores: %s, verify: %s). Ctrl-C to stop.\n", scoreSpec, verifySpec)
	}
	if err := s.Run(ctx); err != nil && err != context.Canceled {
		exitWithError(ExitError, "scheduler: %v", err)
	}
	return nil
}
