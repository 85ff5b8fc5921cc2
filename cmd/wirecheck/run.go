package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/raulpineda/wirecheck/pkg/engine"
	"github.com/raulpineda/wirecheck/pkg/executor"
	"github.com/raulpineda/wirecheck/pkg/report"
	"github.com/raulpineda/wirecheck/pkg/scenario"
)

var (
	runEndpoint string
	runScript   string
	runTimeout  time.Duration
	runRetries  int
	runBackoff  time.Duration
	runMarkers  []string
	runNoWrite  bool
	runMarkdown bool
)

var runCmd = &cobra.Command{
	Use:   "run [scenario.yaml]",
	Short: "Run a scenario through both paths and report the verdict",
	Long: `Run executes the scenario twice — once directly against the in-process
engine and once through the remote endpoint's serialization boundary —
then classifies the pair of outcomes.

The exit status is 0 for any completed run regardless of verdict;
nonzero means the run itself could not be set up.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	s, errs := scenario.ValidateFile(args[0])
	if len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "  [%s] %s\n", e.Phase, e.Message)
		}
		return fmt.Errorf("scenario validation failed with %d error(s)", len(errs))
	}

	sc, err := engine.LoadScript(runScript)
	if err != nil {
		return err
	}

	classifier, err := executor.NewClassifier(runMarkers, nil)
	if err != nil {
		return err
	}

	r := &executor.Runner{
		Engine:     engine.NewScripted(sc),
		Endpoint:   runEndpoint,
		Timeout:    runTimeout,
		Classifier: classifier,
		Retries:    runRetries,
		Backoff:    runBackoff,
	}

	started := time.Now()
	inProc, remote := r.Run(context.Background(), s)
	res := report.New(s.Meta.Name, report.GenerateRunID(), started, inProc, remote)

	if runMarkdown {
		fmt.Println(report.Markdown(res))
	} else {
		fmt.Print(report.Render(res))
	}

	if !runNoWrite {
		runDir, err := report.WriteArtifacts(".", res)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: write artifacts: %v\n", err)
		} else {
			fmt.Printf("\n  report: %s\n", runDir)
		}
	}
	return nil
}

func init() {
	runCmd.Flags().StringVar(&runEndpoint, "endpoint", envOr("WIRECHECK_ENDPOINT", "http://localhost:4111"), "remote entry point base URL")
	runCmd.Flags().StringVar(&runScript, "script", "script.yaml", "engine script file for the in-process path")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", executor.DefaultTimeout, "per-path timeout")
	runCmd.Flags().IntVar(&runRetries, "retries", 0, "transport retry budget for the remote path")
	runCmd.Flags().DurationVar(&runBackoff, "backoff", time.Second, "pause between transport retries")
	runCmd.Flags().StringSliceVar(&runMarkers, "schema-marker", nil, "substring marking a schema-validation failure (repeatable; overrides defaults)")
	runCmd.Flags().BoolVar(&runNoWrite, "no-artifacts", false, "skip writing .wirecheck/runs artifacts")
	runCmd.Flags().BoolVar(&runMarkdown, "markdown", false, "emit a markdown summary instead of the styled table")

	rootCmd.AddCommand(runCmd)
}
