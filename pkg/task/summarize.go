package task

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// SummaryKind classifies what a terminal task means for the user.
type SummaryKind string

const (
	// KindAssistantReply carries the task result verbatim as the reply.
	KindAssistantReply SummaryKind = "assistant_reply"
	// KindSystem is an informational notice without a result.
	KindSystem SummaryKind = "system"
	// KindError reports a hard failure.
	KindError SummaryKind = "error"
)

// Summary is the single user-visible interpretation of a terminal task.
type Summary struct {
	Kind         SummaryKind
	ReplyText    string
	StatusNotice string
}

// controlledStopReasons is the closed set of stop reasons the runtime uses
// to signal graceful non-success. Anything else on a failed task is a hard
// failure.
var controlledStopReasons = map[string]struct{}{
	"tool_budget_exhausted":       {},
	"step_limit_segment_continue": {},
	"model_step_budget_exhausted": {},
	"continuation_limit_reached":  {},
	"tool_policy_blocked":         {},
	"intent_execution_failed":     {},
}

// Summarize maps a terminal task snapshot to exactly one tagged summary.
// Callers must not pass snapshots that are still pending or running.
func Summarize(snap Snapshot) Summary {
	switch snap.Status {
	case StatusSuccess:
		if snap.Result != nil {
			return Summary{
				Kind:         KindAssistantReply,
				ReplyText:    *snap.Result,
				StatusNotice: fmt.Sprintf("Reply received (%d chars)", utf8.RuneCountInString(*snap.Result)),
			}
		}
		return Summary{Kind: KindSystem, StatusNotice: "Task succeeded with empty result."}

	case StatusFailed:
		if exec := snap.execution(); exec != nil && exec.Completed != nil && !*exec.Completed {
			if _, controlled := controlledStopReasons[exec.StopReason]; controlled {
				notice := "Task not completed: " + strings.ReplaceAll(exec.StopReason, "_", " ")
				if stats := executionStats(exec); stats != "" {
					notice += " (" + stats + ")"
				}
				return Summary{Kind: KindSystem, StatusNotice: notice}
			}
		}
		msg := "Unknown error"
		if snap.Error != nil && snap.Error.Message != "" {
			msg = snap.Error.Message
		}
		return Summary{Kind: KindError, StatusNotice: "Task failed: " + msg}

	case StatusCancelled:
		return Summary{Kind: KindSystem, StatusNotice: "Task was cancelled."}

	default:
		return Summary{Kind: KindSystem, StatusNotice: fmt.Sprintf("Task completed with unexpected status: %s", snap.Status)}
	}
}

func (s Snapshot) execution() *Execution {
	if s.Metadata == nil {
		return nil
	}
	return s.Metadata.Execution
}

// executionStats renders the numeric execution counters that are present,
// in a fixed order, joined by ", ".
func executionStats(exec *Execution) string {
	var parts []string
	if exec.TotalToolCalls != nil {
		parts = append(parts, fmt.Sprintf("tools %d", *exec.TotalToolCalls))
	}
	if exec.TotalModelSteps != nil {
		parts = append(parts, fmt.Sprintf("model steps %d", *exec.TotalModelSteps))
	}
	if exec.SegmentCount != nil {
		parts = append(parts, fmt.Sprintf("segments %d", *exec.SegmentCount))
	}
	return strings.Join(parts, ", ")
}
