// Package store defines the persistence interfaces the engine runs against.
// The postgres subpackage provides the production implementation; tests use
// in-memory substitutes with the same conditional-update semantics.
package store

import "errors"

// ErrNotFound is returned by lookups when no row matches.
var ErrNotFound = errors.New("not found")
