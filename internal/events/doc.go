// Package events carries task lifecycle notifications out of the execution
// engine. The engine calls a Listener as the run progresses; listeners
// include an in-memory Recorder and a Socket.IO publisher that streams the
// events to a remote dashboard.
package events
