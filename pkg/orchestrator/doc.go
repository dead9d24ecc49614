// Package orchestrator wires transport, metadata cache, form engine and request
// lifecycle into one goal generation session, providing dependency injection
// friendly helpers for consumers that prefer a single entry point.
package orchestrator
