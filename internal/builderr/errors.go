// Package builderr defines the error kinds surfaced by the build core.
//
// Configuration-phase errors (ConfigurationError, UnknownTaskError,
// DuplicateTaskError, CyclicDependencyError) abort a run before any task
// executes. BuildFailedError is returned after execution when at least one
// task failed.
package builderr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrConfiguration = errors.New("configuration error")
	ErrUnknownTask   = errors.New("unknown task")
	ErrDuplicateTask = errors.New("duplicate task")
	ErrCycle         = errors.New("cyclic dependency")
	ErrBuildFailed   = errors.New("build failed")
)

// ConfigurationError reports a bad project tree or build declaration.
type ConfigurationError struct {
	// Subject names what was being configured, e.g. a file or a project path.
	Subject string
	Msg     string
	Err     error
}

func (e *ConfigurationError) Error() string {
	var sb strings.Builder
	sb.WriteString("configuration error")
	if e.Subject != "" {
		fmt.Fprintf(&sb, " in %s", e.Subject)
	}
	if e.Msg != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Msg)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// Configf builds a ConfigurationError with a formatted message.
func Configf(subject, format string, args ...any) error {
	return &ConfigurationError{Subject: subject, Msg: fmt.Sprintf(format, args...)}
}

// UnknownTaskError reports a lookup of a task name that a project does not own.
type UnknownTaskError struct {
	Project string
	Name    string
	// Reason is set when the lookup failed before reaching the task
	// container, e.g. because the project itself does not exist.
	Reason string
}

func (e *UnknownTaskError) Error() string {
	id := e.Project + ":" + e.Name
	if e.Project == ":" {
		id = ":" + e.Name
	}
	if e.Reason != "" {
		return fmt.Sprintf("task '%s' not found: %s", id, e.Reason)
	}
	return fmt.Sprintf("task '%s' not found in project '%s'", id, e.Project)
}

func (e *UnknownTaskError) Is(target error) bool { return target == ErrUnknownTask }

// DuplicateTaskError reports a second registration of the same task name.
type DuplicateTaskError struct {
	Project string
	Name    string
}

func (e *DuplicateTaskError) Error() string {
	return fmt.Sprintf("task '%s' is already registered in project '%s'", e.Name, e.Project)
}

func (e *DuplicateTaskError) Is(target error) bool { return target == ErrDuplicateTask }

// CyclicDependencyError carries one minimal cycle. The first and last
// elements of Cycle are the same task.
type CyclicDependencyError struct {
	Cycle []string
}

func (e *CyclicDependencyError) Error() string {
	return "circular dependency between tasks: " + strings.Join(e.Cycle, " -> ")
}

func (e *CyclicDependencyError) Is(target error) bool { return target == ErrCycle }

// BuildFailedError lists the tasks whose own actions failed.
type BuildFailedError struct {
	Failed []string
	// Cause is the error of the first failed task in plan order.
	Cause error
}

func (e *BuildFailedError) Error() string {
	return fmt.Sprintf("execution failed for %s: %v", strings.Join(e.Failed, ", "), e.Cause)
}

func (e *BuildFailedError) Unwrap() error { return e.Cause }

func (e *BuildFailedError) Is(target error) bool { return target == ErrBuildFailed }
