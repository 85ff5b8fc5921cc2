package report

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/raulpineda/wirecheck/pkg/executor"
)

// GenerateRunID creates a run ID in format YYYYMMDDTHHmmss-xxxx.
func GenerateRunID() string {
	ts := time.Now().Format("20060102T150405")
	suffix := make([]byte, 4)
	rand.Read(suffix)
	return fmt.Sprintf("%s-%x", ts, suffix)
}

// WriteArtifacts persists a run under .wirecheck/runs/<run-id>/:
// report.json with the full differential result, plus one events.jsonl
// trace per path. Returns the run directory.
func WriteArtifacts(baseDir string, res *DifferentialResult) (string, error) {
	if res.RunID == "" {
		res.RunID = GenerateRunID()
	}
	runDir := filepath.Join(baseDir, ".wirecheck", "runs", res.RunID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", fmt.Errorf("create run directory: %w", err)
	}

	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(filepath.Join(runDir, "report.json"), data, 0644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}

	for _, out := range []*executor.Outcome{res.InProcess, res.Remote} {
		if out == nil {
			continue
		}
		if err := writeEvents(filepath.Join(runDir, out.Path+"-events.jsonl"), out); err != nil {
			return "", err
		}
	}
	return runDir, nil
}

func writeEvents(path string, out *executor.Outcome) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("open trace file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, ev := range out.Events {
		if err := enc.Encode(ev); err != nil {
			return fmt.Errorf("encode trace event: %w", err)
		}
	}
	return nil
}

// LoadResult reads a saved report.json back into a DifferentialResult.
func LoadResult(path string) (*DifferentialResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	var res DifferentialResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("parse report: %w", err)
	}
	return &res, nil
}
