package domain

import "strings"

// RunStatus is the outcome recorded for a pipeline run.
type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

var runStatusLabels = map[RunStatus]string{
	RunCompleted: "Completed",
	RunFailed:    "Failed",
}

// RunStatusLabel returns a human-readable label for a run status.
func RunStatusLabel(status RunStatus) string {
	if label, ok := runStatusLabels[status]; ok {
		return label
	}

	return "Unknown"
}

// ParseRunStatus returns the status for a given label (case-insensitive).
func ParseRunStatus(label string) (RunStatus, bool) {
	s := RunStatus(strings.ToLower(strings.TrimSpace(label)))
	_, ok := runStatusLabels[s]

	return s, ok
}
