// Package dag turns a set of requested tasks into an execution plan.
//
// Build walks the declared dependencies of the requested tasks, realizing
// lazy tasks only as they are reached, and produces an immutable Plan: the
// reachable subgraph in a topological order. Tasks that are not ordered
// relative to each other appear in registration order. Cycles are rejected
// before anything runs.
package dag
