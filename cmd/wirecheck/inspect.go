package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/raulpineda/wirecheck/pkg/inspect"
	"github.com/raulpineda/wirecheck/pkg/report"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <run-id | report.json>",
	Short: "Open an interactive session over a saved differential report",
	Long: `Inspect loads a saved report and starts a REPL for triage:
walk the event streams of both paths, read the raw error text, and see
how the verdict was derived. Pass a run ID under .wirecheck/runs/ or a
path to a report.json.`,
	Args: cobra.ExactArgs(1),
	RunE: runInspectCmd,
}

func runInspectCmd(cmd *cobra.Command, args []string) error {
	path := args[0]
	if filepath.Ext(path) != ".json" {
		path = filepath.Join(".wirecheck", "runs", path, "report.json")
	}

	res, err := report.LoadResult(path)
	if err != nil {
		return fmt.Errorf("load report: %w", err)
	}
	return inspect.New(res, os.Stdout).Run()
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
