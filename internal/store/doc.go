// Package store defines the persistence contract for per-user analysis
// results and the JSON codec shared by its implementations. Implementations
// live in sub-packages; this package must not import database drivers.
package store
