package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marbec/linkmesh/internal/config"
	"github.com/marbec/linkmesh/internal/pagerank"
	"github.com/marbec/linkmesh/internal/storage"
)

func init() {
	rootCmd.AddCommand(pagerankCmd)

	topCmd.Flags().IntP("count", "n", 10, "Number of nodes to return")
	rootCmd.AddCommand(topCmd)

	bottomCmd.Flags().IntP("count", "n", 10, "Number of nodes to return")
	rootCmd.AddCommand(bottomCmd)
}

// newEngine builds a score engine from the repository config.
func newEngine(db *storage.DB, cfg *config.Config) *pagerank.Engine {
	return pagerank.NewEngine(db, pagerank.Options{
		Damping:       cfg.Damping,
		MaxIterations: cfg.MaxIterations,
		Tolerance:     cfg.Tolerance,
	})
}

var pagerankCmd = &cobra.Command{
	Use:   "pagerank <platform>",
	Short: "Recompute authority scores for a platform",
	Long: `Run the power-method computation over the platform's active internal
edges and replace the stored score snapshot. A run that hits the iteration
cap before converging still persists its scores and reports converged=false.`,
	Args: cobra.ExactArgs(1),
	RunE: runPagerank,
}

func runPagerank(cmd *cobra.Command, args []string) error {
	repoRoot := mustFindRepository()
	cfg := mustLoadConfig(repoRoot)

	db := mustOpenDatabase(repoRoot)
	defer db.Close()

	summary, err := newEngine(db, cfg).CalculateForPlatform(args[0])
	if err != nil {
		exitWithError(ExitError, "computing scores: %v", err)
	}

	if humanOutput {
		state := "converged"
		if !summary.Converged {
			state = "hit iteration cap"
		}
		fmt.Printf("Scored %d nodes on %s in %d iterations (%s)\n",
			summary.ScoresWritten, summary.Platform, summary.Iterations, state)
	} else {
		outputJSON(summary)
	}
	return nil
}

// ScoreListResult is the response for the top and bottom commands.
type ScoreListResult struct {
	Platform string          `json:"platform"`
	Scores   []storage.Score `json:"scores"`
}

var topCmd = &cobra.Command{
	Use:   "top <platform>",
	Short: "Highest-scored nodes on a platform",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScoreList(cmd, args[0], true)
	},
}

var bottomCmd = &cobra.Command{
	Use:   "bottom <platform>",
	Short: "Lowest-scored nodes on a platform",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScoreList(cmd, args[0], false)
	},
}

func runScoreList(cmd *cobra.Command, platform string, top bool) error {
	repoRoot := mustFindRepository()
	cfg := mustLoadConfig(repoRoot)
	n, _ := cmd.Flags().GetInt("count")

	db := mustOpenDatabase(repoRoot)
	defer db.Close()

	engine := newEngine(db, cfg)
	var scores []storage.Score
	var err error
	if top {
		scores, err = engine.TopK(platform, n)
	} else {
		scores, err = engine.BottomK(platform, n)
	}
	if err != nil {
		exitWithError(ExitError, "querying scores: %v", err)
	}

	if humanOutput {
		for i, s := range scores {
			fmt.Printf("%2d. %-30s %.6f\n", i+1, s.NodeID, s.Score)
		}
		if len(scores) == 0 {
			fmt.Printf("No scores for %s (run 'lm pagerank %s' first)\n", platform, platform)
		}
	} else {
		if scores == nil {
			scores = []storage.Score{}
		}
		outputJSON(ScoreListResult{Platform: platform, Scores: scores})
	}
	return nil
}
