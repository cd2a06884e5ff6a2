// Package inmemorystore provides a thread-safe, in-memory implementation
// of the nodestore.Store interface. It is suitable for any run where task
// results do not need to outlive the process.
package inmemorystore
