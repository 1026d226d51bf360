// Command sheetctl is the operator and developer CLI for the analysis API.
package main

import (
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sheetctl",
		Short: "Operate the sheetlens analysis API",
		Long: `sheetctl mints development tokens, migrates the database and
drives spreadsheet analyses against a running API.

Available subcommands:
  token   - Issue a signed bearer token for a user
  migrate - Apply database migrations
  analyze - Parse a spreadsheet, render its chart and save it`,
		SilenceUsage: true,
	}
	root.AddCommand(newTokenCmd(), newMigrateCmd(), newAnalyzeCmd())
	return root
}
