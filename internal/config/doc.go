// Package config defines the format-agnostic declaration model for a build,
// along with the Loader interface for reading declarations from a source.
//
// The model is the single source of truth for the project resolver and the
// builder that populates the task registry. Concrete implementations of the
// Loader, such as for HCL, are provided in separate packages.
package config
