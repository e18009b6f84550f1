package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	for _, c := range []*cobra.Command{orphansCmd, deadendsCmd} {
		c.Flags().StringP("platform", "p", "", "Platform to inspect (required)")
		c.Flags().StringP("language", "l", "", "Filter by language")
		c.Flags().IntP("limit", "n", 0, "Maximum nodes to return (0 = all)")
		c.Flags().Int("offset", 0, "Pagination offset")
		c.MarkFlagRequired("platform")
		rootCmd.AddCommand(c)
	}
}

// UnlinkedResult is the response for the orphans and deadends commands.
type UnlinkedResult struct {
	Platform string   `json:"platform"`
	Nodes    []string `json:"nodes"`
	Count    int      `json:"count"`
}

var orphansCmd = &cobra.Command{
	Use:   "orphans",
	Short: "List nodes with no inbound internal links",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runUnlinked(cmd, "orphans")
	},
}

var deadendsCmd = &cobra.Command{
	Use:   "deadends",
	Short: "List nodes with no outbound internal links",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runUnlinked(cmd, "deadends")
	},
}

func runUnlinked(cmd *cobra.Command, kind string) error {
	repoRoot := mustFindRepository()
	platform, _ := cmd.Flags().GetString("platform")
	language, _ := cmd.Flags().GetString("language")
	limit, _ := cmd.Flags().GetInt("limit")
	offset, _ := cmd.Flags().GetInt("offset")

	db := mustOpenDatabase(repoRoot)
	defer db.Close()

	var ids []string
	var err error
	if kind == "orphans" {
		ids, err = db.Orphans(platform, language, limit, offset)
	} else {
		ids, err = db.DeadEnds(platform, language, limit, offset)
	}
	if err != nil {
		exitWithError(ExitError, "querying %s: %v", kind, err)
	}

	if humanOutput {
		for _, id := range ids {
			fmt.Println(id)
		}
		fmt.Printf("\nTotal: %d\n", len(ids))
	} else {
		if ids == nil {
			ids = []string{}
		}
		outputJSON(UnlinkedResult{Platform: platform, Nodes: ids, Count: len(ids)})
	}
	return nil
}
