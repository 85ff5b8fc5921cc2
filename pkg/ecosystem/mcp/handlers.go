// Package mcp exposes wirecheck to AI agents over the Model Context
// Protocol: validate scenarios, run differentials, export the schema.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/raulpineda/wirecheck/pkg/engine"
	"github.com/raulpineda/wirecheck/pkg/executor"
	"github.com/raulpineda/wirecheck/pkg/report"
	"github.com/raulpineda/wirecheck/pkg/scenario"
)

// HandleValidate implements the wirecheck/validate MCP tool.
func HandleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path, _ := args["path"].(string)
	if path == "" {
		return errorResult("path argument is required"), nil
	}

	s, errs := scenario.ValidateFile(path)
	if hasErrors(errs) {
		return errorResult(formatErrors(errs)), nil
	}
	return textResult(fmt.Sprintf("✓ %s is valid (%d turns)", s.Meta.Name, len(s.Turns))), nil
}

// HandleSchema implements the wirecheck/schema MCP tool.
func HandleSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := scenario.GenerateJSONSchema()
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(string(data)), nil
}

// HandleRun implements the wirecheck/run MCP tool. The response is the
// full differential result as JSON; IsError marks bug-confirmed and
// anomalous verdicts so callers notice without parsing.
func HandleRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path, _ := args["path"].(string)
	if path == "" {
		return errorResult("path argument is required"), nil
	}

	s, errs := scenario.ValidateFile(path)
	if hasErrors(errs) {
		return errorResult(formatErrors(errs)), nil
	}

	scriptPath, _ := args["script"].(string)
	if scriptPath == "" {
		scriptPath = "script.yaml"
	}
	sc, err := engine.LoadScript(scriptPath)
	if err != nil {
		return errorResult(fmt.Sprintf("load script: %s", err)), nil
	}

	endpoint, _ := args["endpoint"].(string)
	if endpoint == "" {
		endpoint = os.Getenv("WIRECHECK_ENDPOINT")
	}
	if endpoint == "" {
		endpoint = "http://localhost:4111"
	}

	r := &executor.Runner{
		Engine:   engine.NewScripted(sc),
		Endpoint: endpoint,
	}
	started := time.Now()
	inProc, remote := r.Run(ctx, s)
	res := report.New(s.Meta.Name, report.GenerateRunID(), started, inProc, remote)

	data, _ := json.MarshalIndent(res, "", "  ")

	isErr := res.Verdict == report.VerdictBugConfirmed || res.Verdict == report.VerdictAnomalous
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(string(data))},
		IsError: isErr,
	}, nil
}

func hasErrors(errs []*scenario.ValidationError) bool {
	for _, e := range errs {
		if e.Severity == "error" {
			return true
		}
	}
	return false
}

func formatErrors(errs []*scenario.ValidationError) string {
	var msgs []string
	for _, e := range errs {
		if e.Severity == "error" {
			msgs = append(msgs, fmt.Sprintf("[%s] %s", e.Phase, e.Message))
		}
	}
	return strings.Join(msgs, "; ")
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(msg),
		},
		IsError: true,
	}
}
