/*
Package projectpath provides a structured representation for logical project
paths, based on the canonical colon-delimited format.

The root project is `:`. Nested projects append one segment per level,
e.g. `:ios:some-other-subproject`. Task references combine a project path and
a task name: `:core:build`.

This package centralizes all formatting and parsing logic for paths and task
references.
*/
package projectpath
