// Package lifecycle implements the goal request state machine
// (Idle, Validating, Loading, Success, Failed). Each submit bumps a generation
// counter and cancels its predecessor; completions from older generations are
// dropped. Responses are normalized from either wire shape and failures are
// mapped to a displayable ErrorInfo.
package lifecycle
