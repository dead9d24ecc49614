// Package transport performs JSON requests against the goal generation
// backend with a hard per-call timeout and classifies every failure into one
// of four kinds: timeout, network, HTTP status or caller cancellation.
package transport
