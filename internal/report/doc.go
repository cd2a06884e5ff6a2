// Package report turns an execution summary into the end-of-run outputs: a
// YAML build report file and the console summary.
package report
