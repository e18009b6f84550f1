package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marbec/linkmesh/internal/balance"
	"github.com/marbec/linkmesh/internal/injector"
	"github.com/marbec/linkmesh/internal/link"
)

func init() {
	reportCmd.Flags().StringP("language", "l", "", "Restrict the report to one language")
	rootCmd.AddCommand(reportCmd)

	repairCmd.Flags().StringP("language", "l", "", "Restrict the repair to one language")
	repairCmd.Flags().Bool("dry-run", false, "Plan repairs without persisting anything")
	rootCmd.AddCommand(repairCmd)

	rootCmd.AddCommand(suggestCmd)
}

// newAnalyzer wires the balance analyzer for a repository.
func newAnalyzer(repoRoot string) (*balance.Analyzer, func()) {
	cfg := mustLoadConfig(repoRoot)
	db := mustOpenDatabase(repoRoot)
	inj := injector.New(db, cfg.Workers, newLogger())
	return balance.New(db, inj), func() { db.Close() }
}

var reportCmd = &cobra.Command{
	Use:   "report <platform>",
	Short: "Link balance report for a platform",
	Long: `Aggregate the platform's link graph: orphan and dead-end counts, degree
averages, anchor-category distribution against its targets, and the
authority histogram of external links.`,
	Args: cobra.ExactArgs(1),
	RunE: runReport,
}

func runReport(cmd *cobra.Command, args []string) error {
	repoRoot := mustFindRepository()
	language, _ := cmd.Flags().GetString("language")

	analyzer, done := newAnalyzer(repoRoot)
	defer done()

	report, err := analyzer.PlatformReport(args[0], language)
	if err != nil {
		exitWithError(ExitError, "building report: %v", err)
	}

	if humanOutput {
		fmt.Printf("Platform:   %s\n", report.Platform)
		if report.Language != "" {
			fmt.Printf("Language:   %s\n", report.Language)
		}
		fmt.Printf("Nodes:      %d\n", report.Nodes)
		fmt.Printf("Orphans:    %d\n", report.Orphans)
		fmt.Printf("Dead ends:  %d\n", report.DeadEnds)
		fmt.Printf("Avg degree: %.2f in / %.2f out\n", report.AvgInDegree, report.AvgOutDegree)
		if report.DuplicateInternal > 0 || report.DuplicateExternal > 0 {
			fmt.Printf("Duplicates: %d internal, %d external\n", report.DuplicateInternal, report.DuplicateExternal)
		}
		fmt.Println("\nAnchor categories (actual% / target%):")
		for _, c := range link.Categories {
			stat := report.Distribution[c]
			fmt.Printf("  %-12s %3d%% / %3d%%  (%d links)\n", c, stat.Share, stat.Target, stat.Count)
		}
		fmt.Println("\nExternal authority:")
		for _, bucket := range []string{"0-19", "20-39", "40-59", "60-79", "80-100"} {
			fmt.Printf("  %-7s %d\n", bucket, report.AuthorityHistogram[bucket])
		}
	} else {
		outputJSON(report)
	}
	return nil
}

var repairCmd = &cobra.Command{
	Use:   "repair <platform>",
	Short: "Auto-repair orphans and dead ends",
	Long: `Run an improve-only injection pass over the platform's orphan and
dead-end nodes. Manual edges are never touched; only new automatic edges
are added, up to the rule's maximum bounds. With --dry-run the plan is
reported without persisting anything.`,
	Args: cobra.ExactArgs(1),
	RunE: runRepair,
}

func runRepair(cmd *cobra.Command, args []string) error {
	repoRoot := mustFindRepository()
	language, _ := cmd.Flags().GetString("language")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	analyzer, done := newAnalyzer(repoRoot)
	defer done()

	report, err := analyzer.AutoRepair(args[0], language, dryRun)
	if err != nil {
		exitWithError(ExitError, "repairing: %v", err)
	}

	if humanOutput {
		verb := "Added"
		if report.DryRun {
			verb = "Would add"
		}
		fmt.Printf("%s %d edges across %d orphans and %d dead ends\n",
			verb, report.Edges, len(report.Orphans), len(report.DeadEnds))
		for id, msg := range report.Failed {
			fmt.Printf("  %s: %s\n", id, msg)
		}
	} else {
		outputJSON(report)
	}
	return nil
}

var suggestCmd = &cobra.Command{
	Use:   "suggest <node-id>",
	Short: "Propose link improvements for a node",
	Long:  `Propose, without persisting, the edges an improve-only injection pass would add to a node.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runSuggest,
}

func runSuggest(cmd *cobra.Command, args []string) error {
	repoRoot := mustFindRepository()

	analyzer, done := newAnalyzer(repoRoot)
	defer done()

	result, err := analyzer.Suggest(args[0])
	if err != nil {
		exitWithError(ExitDataError, "suggesting improvements: %v", err)
	}

	if humanOutput {
		if len(result.PlannedInternal) == 0 && len(result.PlannedExternal) == 0 {
			fmt.Printf("%s: nothing to improve\n", result.NodeID)
			return nil
		}
		for _, e := range result.PlannedInternal {
			fmt.Printf("  internal -> %-30s [%s] paragraph %d\n", e.TargetID, e.Category, e.Paragraph)
		}
		for _, e := range result.PlannedExternal {
			fmt.Printf("  external -> %-30s [%s] authority %d\n", e.Domain, e.Type, e.Authority)
		}
	} else {
		outputJSON(result)
	}
	return nil
}
