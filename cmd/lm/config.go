package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marbec/linkmesh/internal/config"
)

func init() {
	rootCmd.AddCommand(configCmd)
}

// ConfigResult is the response for the config command.
type ConfigResult struct {
	Root   string         `json:"root"`
	Path   string         `json:"path"`
	Config *config.Config `json:"config"`
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long:  `Show the repository root and the effective configuration, defaults filled in.`,
	RunE:  runConfig,
}

func runConfig(cmd *cobra.Command, args []string) error {
	repoRoot := mustFindRepository()
	cfg := mustLoadConfig(repoRoot)

	if humanOutput {
		fmt.Printf("Root:   %s\n", repoRoot)
		fmt.Printf("Config: %s\n", config.ConfigPath(repoRoot))
		fmt.Printf("  damping:           %.2f\n", cfg.Damping)
		fmt.Printf("  max_iterations:    %d\n", cfg.MaxIterations)
		fmt.Printf("  tolerance:         %g\n", cfg.Tolerance)
		fmt.Printf("  workers:           %d\n", cfg.Workers)
		fmt.Printf("  verify_rate_limit: %.1f\n", cfg.VerifyRateLimit)
		if cfg.UserAgent != "" {
			fmt.Printf("  user_agent:        %s\n", cfg.UserAgent)
		}
		fmt.Printf("  pagerank_schedule: %s\n", cfg.PageRankSchedule)
		fmt.Printf("  verify_schedule:   %s\n", cfg.VerifySchedule)
	} else {
		outputJSON(ConfigResult{
			Root:   repoRoot,
			Path:   config.ConfigPath(repoRoot),
			Config: cfg,
		})
	}
	return nil
}
