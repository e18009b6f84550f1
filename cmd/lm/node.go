package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marbec/linkmesh/internal/node"
	"github.com/marbec/linkmesh/internal/storage"
)

func init() {
	rootCmd.AddCommand(nodeCmd)

	nodeCmd.AddCommand(nodeImportCmd)
	nodeCmd.AddCommand(nodeGetCmd)

	nodeListCmd.Flags().StringP("platform", "p", "", "Platform to list (required)")
	nodeListCmd.Flags().StringP("language", "l", "", "Filter by language")
	nodeListCmd.MarkFlagRequired("platform")
	nodeCmd.AddCommand(nodeListCmd)
}

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Manage content nodes",
	Long:  `Commands for loading and inspecting content nodes. Nodes are produced by the content pipeline; lm only links them.`,
}

// NodeImportResult is the response for the node import command.
type NodeImportResult struct {
	Status   string `json:"status"`
	Imported int    `json:"imported"`
}

var nodeImportCmd = &cobra.Command{
	Use:   "import <file.json>",
	Short: "Import nodes from a JSON file",
	Long: `Import content nodes from a JSON array. Existing nodes with the same
id are overwritten.

Example:
  lm node import content/export.json`,
	Args: cobra.ExactArgs(1),
	RunE: runNodeImport,
}

func runNodeImport(cmd *cobra.Command, args []string) error {
	repoRoot := mustFindRepository()

	data, err := os.ReadFile(args[0])
	if err != nil {
		exitWithError(ExitDataError, "reading nodes file: %v", err)
	}

	var nodes []node.Node
	if err := json.Unmarshal(data, &nodes); err != nil {
		exitWithError(ExitDataError, "parsing nodes file: %v", err)
	}

	for i := range nodes {
		if err := nodes[i].ValidateForCreate(); err != nil {
			exitWithError(ExitDataError, "node %d (%q): %v", i, nodes[i].ID, err)
		}
	}

	db := mustOpenDatabase(repoRoot)
	defer db.Close()

	for i := range nodes {
		if err := db.PutNode(&nodes[i]); err != nil {
			exitWithError(ExitDataError, "storing node %q: %v", nodes[i].ID, err)
		}
	}

	if humanOutput {
		outputHuman("Imported %d nodes\n", len(nodes))
	} else {
		outputJSON(NodeImportResult{Status: "imported", Imported: len(nodes)})
	}
	return nil
}

var nodeGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Get a node by ID",
	Args:  cobra.ExactArgs(1),
	RunE:  runNodeGet,
}

func runNodeGet(cmd *cobra.Command, args []string) error {
	repoRoot := mustFindRepository()

	db := mustOpenDatabase(repoRoot)
	defer db.Close()

	n, err := db.GetNode(args[0])
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			exitWithError(ExitDataError, "node %q not found", args[0])
		}
		exitWithError(ExitError, "querying node: %v", err)
	}

	if humanOutput {
		fmt.Printf("Node:     %s\n", n.ID)
		fmt.Printf("Platform: %s\n", n.Platform)
		fmt.Printf("Language: %s\n", n.Language)
		fmt.Printf("Type:     %s\n", n.Type)
		fmt.Printf("Status:   %s\n", n.Status)
		if len(n.Themes) > 0 {
			fmt.Printf("Themes:   %s\n", strings.Join(n.Themes, ", "))
		}
		if n.PillarID != "" {
			fmt.Printf("Pillar:   %s\n", n.PillarID)
		}
		if n.Processed() {
			fmt.Printf("Processed: %s\n", n.ProcessedAt)
		}
	} else {
		outputJSON(n)
	}
	return nil
}

// NodeListResult is the response for the node list command.
type NodeListResult struct {
	Nodes []node.Node `json:"nodes"`
	Count int         `json:"count"`
}

var nodeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List nodes on a platform",
	RunE:  runNodeList,
}

func runNodeList(cmd *cobra.Command, args []string) error {
	repoRoot := mustFindRepository()
	platform, _ := cmd.Flags().GetString("platform")
	language, _ := cmd.Flags().GetString("language")

	db := mustOpenDatabase(repoRoot)
	defer db.Close()

	nodes, err := db.ListNodes(platform, language)
	if err != nil {
		exitWithError(ExitError, "querying nodes: %v", err)
	}

	if humanOutput {
		for _, n := range nodes {
			marker := " "
			if n.Processed() {
				marker = "*"
			}
			fmt.Printf("%s %-30s %-10s %s\n", marker, n.ID, n.Language, n.Type)
		}
		fmt.Printf("\nTotal: %d nodes\n", len(nodes))
	} else {
		if nodes == nil {
			nodes = []node.Node{}
		}
		outputJSON(NodeListResult{Nodes: nodes, Count: len(nodes)})
	}
	return nil
}
