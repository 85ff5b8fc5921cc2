// Package inspect implements the interactive REPL for triaging saved
// differential reports: walk both outcomes, read the raw error text, and
// see why the verdict came out the way it did.
package inspect

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"github.com/raulpineda/wirecheck/pkg/executor"
	"github.com/raulpineda/wirecheck/pkg/report"
)

// Inspector drives the REPL over one loaded report.
type Inspector struct {
	result *report.DifferentialResult
	output io.Writer
}

// New creates an inspector for the given result, printing to output.
func New(res *report.DifferentialResult, output io.Writer) *Inspector {
	return &Inspector{result: res, output: output}
}

// Run starts the interactive REPL loop.
func (in *Inspector) Run() error {
	commands := []string{"summary", "verdict", "events in-process", "events remote",
		"error in-process", "error remote", "value", "help", "quit"}

	var completer = readline.NewPrefixCompleter()
	for _, cmd := range commands {
		completer.Children = append(completer.Children, readline.PcItem(cmd))
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          in.buildPrompt(),
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	defer rl.Close()

	fmt.Fprintf(in.output, "wirecheck inspect — scenario %q, verdict %s\n", in.result.Scenario, in.result.Verdict)
	fmt.Fprintf(in.output, "Type 'help' for available commands, 'summary' for the report.\n\n")

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.Fields(line)

		switch parts[0] {
		case "summary", "s":
			fmt.Fprintln(in.output, renderMarkdown(report.Markdown(in.result)))
		case "verdict", "v":
			in.handleVerdict()
		case "events", "e":
			in.handleEvents(parts)
		case "error":
			in.handleError(parts)
		case "value":
			in.handleValue()
		case "help", "?":
			in.handleHelp()
		case "quit", "q":
			fmt.Fprintf(in.output, "Exiting inspect.\n")
			return nil
		default:
			fmt.Fprintf(in.output, "Unknown command: %q. Type 'help' for available commands.\n", parts[0])
		}
	}
}

func (in *Inspector) buildPrompt() string {
	return fmt.Sprintf("wirecheck[%s]> ", in.result.Verdict)
}

// handleVerdict explains the verdict in terms of the table row that
// produced it.
func (in *Inspector) handleVerdict() {
	fmt.Fprintf(in.output, "verdict: %s\n", in.result.Verdict)
	fmt.Fprintf(in.output, "  in-process: %s\n", statusLine(in.result.InProcess))
	fmt.Fprintf(in.output, "  remote:     %s\n", statusLine(in.result.Remote))
}

func statusLine(out *executor.Outcome) string {
	if out == nil {
		return "missing"
	}
	if out.Success {
		return "success"
	}
	if out.Failure == nil {
		return "failure (no detail recorded)"
	}
	return fmt.Sprintf("failure (%s)", out.Failure.Class)
}

func (in *Inspector) pick(parts []string) *executor.Outcome {
	if len(parts) < 2 {
		fmt.Fprintf(in.output, "Which path? (in-process | remote)\n")
		return nil
	}
	switch parts[1] {
	case executor.PathInProcess, "in", "i":
		return in.result.InProcess
	case executor.PathRemote, "r":
		return in.result.Remote
	}
	fmt.Fprintf(in.output, "Unknown path %q.\n", parts[1])
	return nil
}

func (in *Inspector) handleEvents(parts []string) {
	out := in.pick(parts)
	if out == nil {
		return
	}
	if len(out.Events) == 0 {
		fmt.Fprintf(in.output, "no events recorded\n")
		return
	}
	for i, ev := range out.Events {
		fmt.Fprintf(in.output, "  %2d. %s %s\n", i+1, ev.Kind, string(ev.Payload))
	}
}

func (in *Inspector) handleError(parts []string) {
	out := in.pick(parts)
	if out == nil {
		return
	}
	if out.Failure == nil {
		fmt.Fprintf(in.output, "path succeeded — no error\n")
		return
	}
	fmt.Fprintf(in.output, "class:   %s\n", out.Failure.Class)
	if out.Failure.Code != "" {
		fmt.Fprintf(in.output, "code:    %s\n", out.Failure.Code)
	}
	fmt.Fprintf(in.output, "message: %s\n", out.Failure.Message)
}

func (in *Inspector) handleValue() {
	for _, out := range []*executor.Outcome{in.result.InProcess, in.result.Remote} {
		if out == nil || !out.Success {
			continue
		}
		var pretty map[string]any
		if err := json.Unmarshal(out.Value, &pretty); err == nil {
			data, _ := json.MarshalIndent(pretty, "  ", "  ")
			fmt.Fprintf(in.output, "%s value:\n  %s\n", out.Path, data)
			continue
		}
		fmt.Fprintf(in.output, "%s value: %s\n", out.Path, out.Value)
	}
}

func (in *Inspector) handleHelp() {
	fmt.Fprint(in.output, `Commands:
  summary                      render the full report
  verdict                      show the verdict and the statuses behind it
  events <in-process|remote>   list the recorded event stream
  error <in-process|remote>    show the raw error detail
  value                        show final values from successful paths
  quit                         exit
`)
}
