package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marbec/linkmesh/internal/injector"
	"github.com/marbec/linkmesh/internal/storage"
)

func init() {
	for _, c := range []*cobra.Command{processCmd, batchCmd} {
		c.Flags().Bool("force", false, "Reprocess even if already processed")
		c.Flags().Bool("dry-run", false, "Plan edges without persisting anything")
		c.Flags().Bool("no-internal", false, "Skip the internal-link pass")
		c.Flags().Bool("no-external", false, "Skip the external-link pass")
		c.Flags().Bool("no-pillar", false, "Skip the pillar-link check")
	}
	rootCmd.AddCommand(processCmd)

	batchCmd.Flags().StringP("platform", "p", "", "Process every node on a platform instead of listing IDs")
	batchCmd.Flags().StringP("language", "l", "", "Language filter for --platform")
	rootCmd.AddCommand(batchCmd)

	rootCmd.AddCommand(healthCmd)
}

// processOptions builds injector options from the shared process/batch flags.
func processOptions(cmd *cobra.Command) injector.Options {
	opts := injector.DefaultOptions()
	opts.Force, _ = cmd.Flags().GetBool("force")
	opts.DryRun, _ = cmd.Flags().GetBool("dry-run")
	if off, _ := cmd.Flags().GetBool("no-internal"); off {
		opts.Internal = false
	}
	if off, _ := cmd.Flags().GetBool("no-external"); off {
		opts.External = false
	}
	if off, _ := cmd.Flags().GetBool("no-pillar"); off {
		opts.Pillar = false
	}
	return opts
}

var processCmd = &cobra.Command{
	Use:   "process <node-id>",
	Short: "Inject links into one node",
	Long: `Run the full injection pipeline on a node: internal links, external
authority links, and the pillar-link check, in that order. A node that was
already processed is skipped unless --force is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

func runProcess(cmd *cobra.Command, args []string) error {
	repoRoot := mustFindRepository()
	cfg := mustLoadConfig(repoRoot)

	db := mustOpenDatabase(repoRoot)
	defer db.Close()

	inj := injector.New(db, cfg.Workers, newLogger())
	result, err := inj.ProcessArticle(args[0], processOptions(cmd))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			exitWithError(ExitDataError, "node %q not found", args[0])
		}
		exitWithError(ExitError, "processing node: %v", err)
	}

	if humanOutput {
		printResultHuman(result)
	} else {
		outputJSON(result)
	}
	return nil
}

func printResultHuman(r injector.Result) {
	if r.Skipped {
		fmt.Printf("Skipped %s (already processed; use --force)\n", r.NodeID)
		return
	}
	fmt.Printf("Processed %s\n", r.NodeID)
	fmt.Printf("  Internal: %d added\n", r.AddedInternal)
	fmt.Printf("  External: %d added\n", r.AddedExternal)
	if len(r.PlannedInternal) > 0 || len(r.PlannedExternal) > 0 {
		fmt.Printf("  Planned:  %d internal, %d external (dry run)\n",
			len(r.PlannedInternal), len(r.PlannedExternal))
	}
	for _, w := range r.Warnings {
		fmt.Printf("  Warning:  %s\n", w)
	}
}

var batchCmd = &cobra.Command{
	Use:   "batch [node-id...]",
	Short: "Inject links into many nodes",
	Long: `Process a set of nodes through a shared injection session, so anchor
category selection converges toward the platform's distribution targets
across the whole batch. Nodes are processed concurrently.

Examples:
  lm batch node-1 node-2 node-3
  lm batch --platform cyclado --language fr`,
	RunE: runBatch,
}

func runBatch(cmd *cobra.Command, args []string) error {
	repoRoot := mustFindRepository()
	cfg := mustLoadConfig(repoRoot)
	platform, _ := cmd.Flags().GetString("platform")
	language, _ := cmd.Flags().GetString("language")

	db := mustOpenDatabase(repoRoot)
	defer db.Close()

	ids := args
	if platform != "" {
		var err error
		ids, err = db.ListNodeIDs(platform, language)
		if err != nil {
			exitWithError(ExitError, "listing nodes: %v", err)
		}
	}
	if len(ids) == 0 {
		exitWithError(ExitDataError, "no nodes to process (pass IDs or --platform)")
	}

	inj := injector.New(db, cfg.Workers, newLogger())
	summary := inj.ProcessBatch(ids, processOptions(cmd))

	if humanOutput {
		fmt.Printf("Batch done: %d processed, %d skipped, %d failed\n",
			summary.Processed, summary.Skipped, summary.Failed)
		for id, msg := range summary.Errors {
			fmt.Printf("  %s: %s\n", id, msg)
		}
	} else {
		outputJSON(summary)
	}
	return nil
}

var healthCmd = &cobra.Command{
	Use:   "health <node-id>",
	Short: "Check a node's links against current rules",
	Long: `Re-evaluate a node's existing edges against the platform's current
linking rules. Rules may have changed since injection; this reports
compliance without mutating anything.`,
	Args: cobra.ExactArgs(1),
	RunE: runHealth,
}

func runHealth(cmd *cobra.Command, args []string) error {
	repoRoot := mustFindRepository()
	cfg := mustLoadConfig(repoRoot)

	db := mustOpenDatabase(repoRoot)
	defer db.Close()

	inj := injector.New(db, cfg.Workers, newLogger())
	report, err := inj.CheckHealth(args[0])
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			exitWithError(ExitDataError, "node %q not found", args[0])
		}
		exitWithError(ExitError, "checking health: %v", err)
	}

	if humanOutput {
		if report.Compliant {
			fmt.Printf("%s: compliant\n", report.NodeID)
		} else {
			fmt.Printf("%s: %d violations\n", report.NodeID, len(report.Violations))
			for _, v := range report.Violations {
				fmt.Printf("  %s\n", v)
			}
		}
	} else {
		outputJSON(report)
	}
	return nil
}
