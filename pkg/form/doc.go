// Package form implements the goal form engine: typed mutators over a
// model.Selection that keep the scale/level dependency consistent, an
// asynchronous organization focus lookup guarded against stale completions,
// validation into a model.GenerationRequest and reset.
package form
