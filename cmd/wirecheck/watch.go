package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/raulpineda/wirecheck/pkg/engine"
	"github.com/raulpineda/wirecheck/pkg/executor"
	"github.com/raulpineda/wirecheck/pkg/report"
	"github.com/raulpineda/wirecheck/pkg/scenario"
	"github.com/raulpineda/wirecheck/pkg/tui"
)

var (
	watchEndpoint string
	watchScript   string
)

var watchCmd = &cobra.Command{
	Use:   "watch [scenario.yaml]",
	Short: "Run a scenario with a live dual-pane event view",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatchCmd,
}

func runWatchCmd(cmd *cobra.Command, args []string) error {
	s, errs := scenario.ValidateFile(args[0])
	if len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "  [%s] %s\n", e.Phase, e.Message)
		}
		return fmt.Errorf("scenario validation failed with %d error(s)", len(errs))
	}

	sc, err := engine.LoadScript(watchScript)
	if err != nil {
		return err
	}
	r := &executor.Runner{
		Engine:   engine.NewScripted(sc),
		Endpoint: watchEndpoint,
	}

	res, err := tui.Watch(r, s)
	if err != nil {
		return err
	}
	if res != nil {
		fmt.Print(report.Render(res))
	}
	return nil
}

func init() {
	watchCmd.Flags().StringVar(&watchEndpoint, "endpoint", envOr("WIRECHECK_ENDPOINT", "http://localhost:4111"), "remote entry point base URL")
	watchCmd.Flags().StringVar(&watchScript, "script", "script.yaml", "engine script file for the in-process path")
	rootCmd.AddCommand(watchCmd)
}
