// Package report derives the differential verdict from a pair of execution
// outcomes and renders it for humans and for machines.
package report

import (
	"time"

	"github.com/raulpineda/wirecheck/pkg/executor"
)

// Verdict classifies a dual-path result.
type Verdict string

const (
	// VerdictBugConfirmed: the in-process path succeeded and the remote
	// path was rejected by the schema layer — the failure is specific to
	// the serialization boundary.
	VerdictBugConfirmed Verdict = "bug-confirmed"
	// VerdictBugAbsent: both paths succeeded.
	VerdictBugAbsent Verdict = "bug-absent"
	// VerdictUnrelatedFailure: both paths failed the same way; whatever is
	// broken is upstream of the boundary.
	VerdictUnrelatedFailure Verdict = "unrelated-failure"
	// VerdictAnomalous: any combination the table does not explain —
	// flagged for manual investigation, never silently absorbed into
	// another verdict.
	VerdictAnomalous Verdict = "anomalous"
)

// DifferentialResult pairs the two outcomes for one scenario with the
// derived verdict. Both raw outcomes travel with the verdict so a human
// can audit the classification.
type DifferentialResult struct {
	Scenario  string            `json:"scenario"`
	RunID     string            `json:"run_id,omitempty"`
	Verdict   Verdict           `json:"verdict"`
	InProcess *executor.Outcome `json:"in_process"`
	Remote    *executor.Outcome `json:"remote"`
	StartedAt time.Time         `json:"started_at,omitempty"`
}

// Classify derives the verdict. It is a pure function of the two terminal
// statuses and their failure classifications; it never errors.
func Classify(inProc, remote *executor.Outcome) Verdict {
	switch {
	case inProc == nil || remote == nil:
		return VerdictAnomalous
	case inProc.Success && remote.Success:
		return VerdictBugAbsent
	case inProc.Success && !remote.Success:
		if remote.Failure != nil && remote.Failure.Class == executor.ClassSchemaValidation {
			return VerdictBugConfirmed
		}
		return VerdictAnomalous
	case !inProc.Success && !remote.Success:
		if inProc.Failure != nil && remote.Failure != nil && inProc.Failure.Class == remote.Failure.Class {
			return VerdictUnrelatedFailure
		}
		return VerdictAnomalous
	default: // in-process failed, remote succeeded
		return VerdictAnomalous
	}
}

// New builds a DifferentialResult for a scenario run. startedAt is the
// moment the dual run began, captured by the caller before launching the
// paths.
func New(scenarioName, runID string, startedAt time.Time, inProc, remote *executor.Outcome) *DifferentialResult {
	return &DifferentialResult{
		Scenario:  scenarioName,
		RunID:     runID,
		Verdict:   Classify(inProc, remote),
		InProcess: inProc,
		Remote:    remote,
		StartedAt: startedAt,
	}
}
