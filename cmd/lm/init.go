package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/marbec/linkmesh/internal/config"
)

func init() {
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a linkmesh repository",
	Long:  `Create a .linkmesh directory with a default config.yml and an empty database in the current directory.`,
	RunE:  runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		exitWithError(ExitError, "getting current directory: %v", err)
	}

	if err := config.Init(cwd); err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}

	// Opening creates the database and its schema.
	db := mustOpenDatabase(cwd)
	db.Close()

	if humanOutput {
		outputHuman("Initialized linkmesh repository in %s\n", config.LinkmeshPath(cwd))
	} else {
		outputJSON(StatusResponse{Status: "initialized", Path: config.LinkmeshPath(cwd)})
	}
	return nil
}
