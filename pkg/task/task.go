// Package task defines the runtime task shapes shared by every channel:
// snapshots returned by the task runtime and the terminal-state summary
// shown to users.
package task

// TypeMessageGatewayInput is the task type submitted for every inbound
// channel message.
const TypeMessageGatewayInput = "message_gateway.input"

// Status is the lifecycle state of a runtime task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// StillRunning reports whether a task has not yet reached a terminal state.
func StillRunning(s Status) bool {
	return s == StatusPending || s == StatusRunning
}

// Snapshot is the runtime's view of one task at a point in time.
//
// Result distinguishes absent (nil) from present-but-empty (""): a task that
// succeeded with an empty string still counts as having produced a reply.
type Snapshot struct {
	ID       string    `json:"id"`
	Type     string    `json:"type,omitempty"`
	Status   Status    `json:"status"`
	Result   *string   `json:"result,omitempty"`
	Error    *Error    `json:"error,omitempty"`
	Metadata *Metadata `json:"metadata,omitempty"`
}

// Error is the failure payload attached to a failed task.
type Error struct {
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

// Metadata carries optional execution describers the runtime attaches to a
// snapshot.
type Metadata struct {
	Execution *Execution `json:"execution,omitempty"`
}

// Execution describes how far a task got before stopping. Pointer fields
// distinguish "absent" from zero values.
type Execution struct {
	Completed       *bool  `json:"completed,omitempty"`
	StopReason      string `json:"stopReason,omitempty"`
	SegmentCount    *int   `json:"segmentCount,omitempty"`
	TotalToolCalls  *int   `json:"totalToolCalls,omitempty"`
	TotalModelSteps *int   `json:"totalModelSteps,omitempty"`
	RetrySuppressed *bool  `json:"retrySuppressed,omitempty"`
}
