// Package history holds the execution history types shared by the agent
// loop and its consumers (notebook generation, artifact writing, storage).
package history

import (
	"time"

	"mlagent/internal/sandbox"
)

// Record 每次代码执行的不可变记录
// Record is the immutable log entry for one executed fragment. Indices are
// contiguous from 0 and never reused within a run.
type Record struct {
	Index    int
	Code     string
	Stdout   string
	Error    string
	Figures  []sandbox.Figure
	Success  bool
	Duration time.Duration
}
