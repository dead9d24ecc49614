// Package model defines the values shared by the metadata cache, the form
// engine and the request lifecycle: the reference metadata served by
// /api/metadata, the tri-state organization choice, the working Selection,
// the immutable GenerationRequest built at submit time and the canonical
// two-part GenerationResult. Levels are always scoped to their owning scale;
// callers resolve them through ReferenceMetadata.LevelsFor and never compare a
// level string without its scale.
package model
