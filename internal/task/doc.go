// Package task defines the Task, the unit of work owned by a project, and
// its state machine:
//
//	unrealized -> configured -> executing -> executed | failed | skipped
//
// A configured task may also move straight to skipped. Configuration is
// driven by the registry; the executing and terminal states are entered only
// by the execution engine and are final.
package task
