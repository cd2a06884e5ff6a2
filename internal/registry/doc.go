// Package registry holds the task definitions of every project in a build.
//
// Each project owns a Container of tasks keyed by name. Tasks are registered
// either eagerly, in which case their configuration runs synchronously during
// Register, or lazily, in which case configuration is deferred until the task
// is first needed: looked up through Get, realized explicitly, or selected
// into an execution plan.
//
// Containers also hold reactive rules, (predicate, action) pairs evaluated
// synchronously for every task registered after the rule.
package registry
