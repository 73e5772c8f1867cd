// Package executor walks a compiled DAG (pkg/dag.CompiledGraph) for one
// session execution: entry selection, gather-with-transform, split
// forking, router pruning, and exit collection, per spec.md §4.7.
package executor

import "fmt"

// CancelledError is returned when the execution's cancellation token fires
// mid-walk, per spec.md §7's Timeouts & cancellation classification.
type CancelledError struct{}

func (CancelledError) Error() string { return "executor: execution cancelled" }

// TimeoutError is returned when the execution's deadline elapses mid-walk.
type TimeoutError struct {
	ElapsedMs int64
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("executor: execution timeout after %dms", e.ElapsedMs)
}

// UnknownBranchTargetError reports a split branch naming a node id that
// does not exist in the compiled graph.
type UnknownBranchTargetError struct {
	BranchID string
}

func (e *UnknownBranchTargetError) Error() string {
	return fmt.Sprintf("executor: split branch references unknown node %q", e.BranchID)
}
