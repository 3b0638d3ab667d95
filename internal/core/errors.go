package core

import "errors"

// ErrEmptyIndex is returned when a vector index with no entries is searched.
// The generation step needs at least one context item to behave sensibly, so
// this is surfaced as an error instead of a silent empty result.
var ErrEmptyIndex = errors.New("vector index is empty")

// ErrDimensionMismatch is returned when a vector's dimension differs from the
// dimension the index was created with. Caught before any search runs.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")
