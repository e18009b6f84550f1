package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marbec/linkmesh/internal/link"
	"github.com/marbec/linkmesh/internal/storage"
	"github.com/marbec/linkmesh/internal/verify"
)

func init() {
	rootCmd.AddCommand(domainCmd)

	domainListCmd.Flags().Bool("all", false, "Include deactivated domains")
	domainCmd.AddCommand(domainListCmd)

	domainAddCmd.Flags().StringP("type", "t", "", "Source type: government, organization, reference, news, authority (required)")
	domainAddCmd.Flags().IntP("authority", "a", 0, "Authority score 0-100 (required)")
	domainAddCmd.Flags().String("countries", "", "Comma-separated applicable countries (empty = everywhere)")
	domainAddCmd.Flags().String("topics", "", "Comma-separated applicable topics (empty = all)")
	domainAddCmd.MarkFlagRequired("type")
	domainAddCmd.MarkFlagRequired("authority")
	domainCmd.AddCommand(domainAddCmd)

	domainVerifyCmd.Flags().Float64("rate", 0, "Override requests-per-second cap")
	domainCmd.AddCommand(domainVerifyCmd)
}

var domainCmd = &cobra.Command{
	Use:   "domain",
	Short: "Manage the authority domain catalog",
	Long: `Commands for the catalog of external domains that injection links to.
Domains carry an authority score, a source-type classification, and
optional country/topic applicability. Repeated verification failures
deactivate a domain until a check succeeds again.`,
}

// DomainListResult is the response for the domain list command.
type DomainListResult struct {
	Domains []link.AuthorityDomain `json:"domains"`
	Count   int                    `json:"count"`
}

var domainListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog domains",
	RunE:  runDomainList,
}

func runDomainList(cmd *cobra.Command, args []string) error {
	repoRoot := mustFindRepository()
	all, _ := cmd.Flags().GetBool("all")

	db := mustOpenDatabase(repoRoot)
	defer db.Close()

	domains, err := db.ListDomains(!all)
	if err != nil {
		exitWithError(ExitError, "querying domains: %v", err)
	}

	if humanOutput {
		for _, d := range domains {
			marker := " "
			if !d.Active {
				marker = "!"
			}
			fmt.Printf("%s %-35s %-12s authority %3d", marker, d.Domain, d.Type, d.Authority)
			if len(d.Countries) > 0 {
				fmt.Printf("  [%s]", strings.Join(d.Countries, ","))
			}
			fmt.Println()
		}
		fmt.Printf("\nTotal: %d domains\n", len(domains))
	} else {
		if domains == nil {
			domains = []link.AuthorityDomain{}
		}
		outputJSON(DomainListResult{Domains: domains, Count: len(domains)})
	}
	return nil
}

// DomainAddResult is the response for the domain add command.
type DomainAddResult struct {
	Status string               `json:"status"`
	Domain link.AuthorityDomain `json:"domain"`
}

var domainAddCmd = &cobra.Command{
	Use:   "add <domain>",
	Short: "Add a domain to the catalog",
	Long: `Add an external authority domain.

Examples:
  lm domain add legifrance.gouv.fr --type government --authority 95 --countries FR
  lm domain add uci.org --type organization --authority 85 --topics cycling`,
	Args: cobra.ExactArgs(1),
	RunE: runDomainAdd,
}

func runDomainAdd(cmd *cobra.Command, args []string) error {
	repoRoot := mustFindRepository()
	typeStr, _ := cmd.Flags().GetString("type")
	authority, _ := cmd.Flags().GetInt("authority")
	countries, _ := cmd.Flags().GetString("countries")
	topics, _ := cmd.Flags().GetString("topics")

	d := link.AuthorityDomain{
		Domain:    args[0],
		Type:      link.SourceType(typeStr),
		Authority: authority,
		Countries: parseList(countries),
		Topics:    parseList(topics),
		Active:    true,
	}
	if err := d.ValidateForCreate(); err != nil {
		exitWithError(ExitDataError, "invalid domain: %v", err)
	}

	db := mustOpenDatabase(repoRoot)
	defer db.Close()

	if err := db.PutDomain(&d); err != nil {
		exitWithError(ExitDataError, "storing domain: %v", err)
	}

	if humanOutput {
		outputHuman("Added domain %s (%s, authority %d)\n", d.Domain, d.Type, d.Authority)
	} else {
		outputJSON(DomainAddResult{Status: "added", Domain: d})
	}
	return nil
}

var domainVerifyCmd = &cobra.Command{
	Use:   "verify [domain]",
	Short: "Verify domain liveness",
	Long: `Check that catalog domains still respond. With no argument the whole
catalog is swept, deactivated entries included. Every external edge
pointing at a checked domain gets its status and timestamp updated.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDomainVerify,
}

func runDomainVerify(cmd *cobra.Command, args []string) error {
	repoRoot := mustFindRepository()
	cfg := mustLoadConfig(repoRoot)
	rps, _ := cmd.Flags().GetFloat64("rate")
	if rps == 0 {
		rps = cfg.VerifyRateLimit
	}

	db := mustOpenDatabase(repoRoot)
	defer db.Close()

	opts := []verify.Option{verify.WithRateLimit(rps), verify.WithLogger(newLogger())}
	if cfg.UserAgent != "" {
		opts = append(opts, verify.WithUserAgent(cfg.UserAgent))
	}
	v := verify.New(db, opts...)
	ctx := context.Background()

	if len(args) == 1 {
		if _, err := db.GetDomain(args[0]); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				exitWithError(ExitDataError, "domain %q not in catalog", args[0])
			}
			exitWithError(ExitError, "querying domain: %v", err)
		}
		result, err := v.VerifyDomain(ctx, args[0])
		if err != nil {
			exitWithError(ExitError, "verifying domain: %v", err)
		}
		if humanOutput {
			printDomainResultHuman(result)
		} else {
			outputJSON(result)
		}
		return nil
	}

	report, err := v.VerifyAll(ctx)
	if err != nil {
		exitWithError(ExitError, "verifying domains: %v", err)
	}

	if humanOutput {
		for _, r := range report.Results {
			printDomainResultHuman(r)
		}
		fmt.Printf("\nChecked %d: %d alive, %d broken\n", report.Checked, report.Alive, report.Broken)
	} else {
		outputJSON(report)
	}
	return nil
}

func printDomainResultHuman(r verify.DomainResult) {
	if r.Alive {
		fmt.Printf("ok   %s (%d)\n", r.Domain, r.Status)
	} else if r.Error != "" {
		fmt.Printf("dead %s: %s\n", r.Domain, r.Error)
	} else {
		fmt.Printf("dead %s (%d)\n", r.Domain, r.Status)
	}
}
