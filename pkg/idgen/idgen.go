// Package idgen provides an injectable fresh-id generator for entries and
// tap trace ids, so tests can assert on deterministic identifiers.
package idgen

import (
	"strconv"

	"github.com/google/uuid"
)

// Generator produces fresh opaque ids.
type Generator interface {
	New() string
}

// Real is the production Generator backed by google/uuid.
type Real struct{}

// New returns a random UUID string.
func (Real) New() string { return uuid.New().String() }

// Sequential is a Generator for tests that returns "<prefix>-<n>" ids in order.
type Sequential struct {
	Prefix string
	n      int
}

// NewSequential creates a Sequential generator with the given prefix.
func NewSequential(prefix string) *Sequential {
	return &Sequential{Prefix: prefix}
}

// New returns the next sequential id.
func (s *Sequential) New() string {
	s.n++
	return s.Prefix + "-" + strconv.Itoa(s.n)
}
