// Package action provides the task actions a build script can attach:
// running a process, printing a message, failing on purpose and removing a
// directory. Actions write their output to the writer stored in the context.
package action
