// Package metadata owns the reference metadata of a session. The first call
// to Cache.Metadata fetches /api/metadata with a bounded retry policy and the
// outcome, success or failure, is kept for the life of the Cache. Focus-area
// lookups for organizations go through the same retry policy but are never
// cached.
package metadata
