// Package plugin holds the built-in build script plugins.
//
// A plugin pre-processes a project's build script before its own
// declarations are registered, typically by prepending conventional tasks.
// A script opts in with `plugins = ["base"]`.
package plugin
