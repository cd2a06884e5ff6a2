// Package scheduler provides the ready queue used to decide which task runs
// next. Items are popped in ascending priority, so ties between tasks that
// are ready at the same time are always broken the same way.
package scheduler
