package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/marbec/linkmesh/internal/rule"
	"github.com/marbec/linkmesh/internal/storage"
)

func init() {
	rootCmd.AddCommand(ruleCmd)

	ruleCmd.AddCommand(ruleGetCmd)

	ruleSetCmd.Flags().StringP("file", "f", "", "YAML file with rule overrides (required)")
	ruleSetCmd.Flags().Bool("replace", false, "Overwrite an existing rule")
	ruleSetCmd.MarkFlagRequired("file")
	ruleCmd.AddCommand(ruleSetCmd)

	ruleValidateCmd.Flags().StringP("file", "f", "", "YAML file with rule overrides (required)")
	ruleValidateCmd.MarkFlagRequired("file")
	ruleCmd.AddCommand(ruleValidateCmd)

	ruleCmd.AddCommand(ruleDeleteCmd)
}

var ruleCmd = &cobra.Command{
	Use:   "rule",
	Short: "Manage per-platform linking rules",
	Long: `Commands for the linking rules that bound injection: link count ranges,
relevance and authority thresholds, anchor-category distribution targets,
exclusion zones, and source priorities. A platform without a stored rule
uses the built-in default.`,
}

var ruleGetCmd = &cobra.Command{
	Use:   "get <platform>",
	Short: "Show the resolved rule for a platform",
	Args:  cobra.ExactArgs(1),
	RunE:  runRuleGet,
}

func runRuleGet(cmd *cobra.Command, args []string) error {
	repoRoot := mustFindRepository()

	db := mustOpenDatabase(repoRoot)
	defer db.Close()

	r, err := db.GetRule(args[0])
	if err != nil {
		exitWithError(ExitError, "querying rule: %v", err)
	}
	stored, err := db.HasRule(args[0])
	if err != nil {
		exitWithError(ExitError, "querying rule: %v", err)
	}

	if humanOutput {
		source := "default"
		if stored {
			source = "stored"
		}
		fmt.Printf("Platform: %s (%s rule)\n", args[0], source)
		fmt.Printf("Internal:  %d-%d links, min relevance %d\n", r.MinInternal, r.MaxInternal, r.MinRelevance)
		fmt.Printf("External:  %d-%d links, min authority %d\n", r.MinExternal, r.MaxExternal, r.MinAuthority)
		fmt.Printf("Distribution: exact %d%% / long-tail %d%% / generic %d%% / cta %d%% / question %d%%\n",
			r.Distribution.ExactMatch, r.Distribution.LongTail, r.Distribution.Generic,
			r.Distribution.CTA, r.Distribution.Question)
		fmt.Printf("Per paragraph: %d, exclude intro: %t, exclude conclusion: %t\n",
			r.MaxPerParagraph, r.ExcludeIntro, r.ExcludeConclusion)
		fmt.Printf("Pillar link required: %t, cross-language: %t\n", r.RequirePillarLink, r.AllowCrossLanguage)
	} else {
		outputJSON(r)
	}
	return nil
}

// RuleSetResult is the response for the rule set command.
type RuleSetResult struct {
	Status   string `json:"status"`
	Platform string `json:"platform"`
}

var ruleSetCmd = &cobra.Command{
	Use:   "set <platform>",
	Short: "Store a rule for a platform",
	Long: `Store rule overrides from a YAML file. Unset fields keep their default
values. Setting a rule for a platform that already has one requires
--replace.

Example:
  lm rule set cyclado --file rules/cyclado.yml --replace`,
	Args: cobra.ExactArgs(1),
	RunE: runRuleSet,
}

func runRuleSet(cmd *cobra.Command, args []string) error {
	repoRoot := mustFindRepository()
	file, _ := cmd.Flags().GetString("file")
	replace, _ := cmd.Flags().GetBool("replace")

	stored, err := loadStoredRule(file, args[0])
	if err != nil {
		exitWithError(ExitDataError, "%v", err)
	}

	db := mustOpenDatabase(repoRoot)
	defer db.Close()

	if err := db.PutRule(stored, replace); err != nil {
		if errors.Is(err, storage.ErrRuleExists) {
			exitWithError(ExitDataError, "rule for %q already exists (use --replace)", args[0])
		}
		exitWithError(ExitDataError, "storing rule: %v", err)
	}

	if humanOutput {
		outputHuman("Stored rule for %s\n", args[0])
	} else {
		outputJSON(RuleSetResult{Status: "stored", Platform: args[0]})
	}
	return nil
}

// RuleValidateResult is the response for the rule validate command.
type RuleValidateResult struct {
	Valid      bool     `json:"valid"`
	Violations []string `json:"violations,omitempty"`
}

var ruleValidateCmd = &cobra.Command{
	Use:   "validate <platform>",
	Short: "Validate a rule file without storing it",
	Args:  cobra.ExactArgs(1),
	RunE:  runRuleValidate,
}

func runRuleValidate(cmd *cobra.Command, args []string) error {
	file, _ := cmd.Flags().GetString("file")

	stored, err := loadStoredRule(file, args[0])
	if err != nil {
		exitWithError(ExitDataError, "%v", err)
	}

	violations := rule.Merge(stored).Validate()
	result := RuleValidateResult{Valid: len(violations) == 0}
	for _, v := range violations {
		result.Violations = append(result.Violations, v.String())
	}

	if humanOutput {
		if result.Valid {
			outputHuman("Rule is valid\n")
		} else {
			outputHuman("Rule has %d violations:\n", len(result.Violations))
			for _, v := range result.Violations {
				outputHuman("  %s\n", v)
			}
		}
	} else {
		outputJSON(result)
	}

	if !result.Valid {
		os.Exit(ExitDataError)
	}
	return nil
}

var ruleDeleteCmd = &cobra.Command{
	Use:   "delete <platform>",
	Short: "Delete a platform's stored rule",
	Long:  `Delete the stored rule; the platform falls back to the default rule.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runRuleDelete,
}

func runRuleDelete(cmd *cobra.Command, args []string) error {
	repoRoot := mustFindRepository()

	db := mustOpenDatabase(repoRoot)
	defer db.Close()

	if err := db.DeleteRule(args[0]); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			exitWithError(ExitDataError, "no stored rule for %q", args[0])
		}
		exitWithError(ExitError, "deleting rule: %v", err)
	}

	if humanOutput {
		outputHuman("Deleted rule for %s\n", args[0])
	} else {
		outputJSON(StatusResponse{Status: "deleted"})
	}
	return nil
}

// loadStoredRule reads rule overrides from a YAML file and pins the platform.
func loadStoredRule(file, platform string) (rule.Stored, error) {
	var stored rule.Stored

	data, err := os.ReadFile(file)
	if err != nil {
		return stored, fmt.Errorf("reading rule file: %w", err)
	}
	if err := yaml.Unmarshal(data, &stored); err != nil {
		return stored, fmt.Errorf("parsing rule file: %w", err)
	}
	stored.Platform = platform
	return stored, nil
}
