// Package overrides persists manual accept/reject decisions per output identifier.
//
// Stores are append-only: a run may add identifiers but never removes earlier
// entries. Keeping the two sets consistent is the decision engine's job.
package overrides

import (
	"context"
	"fmt"
	"slices"
)

// Kind is the direction of a manual override.
type Kind string

const (
	KindAccept Kind = "accept"
	KindReject Kind = "reject"
)

// ParseKind maps "accept"/"a" and "reject"/"r" to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "accept", "a":
		return KindAccept, nil
	case "reject", "r":
		return KindReject, nil
	default:
		return "", fmt.Errorf("unknown override kind %q", s)
	}
}

// Set holds the persisted overrides of one output identifier.
type Set struct {
	Accepted map[int]struct{}
	Rejected map[int]struct{}
}

// NewSet returns an empty Set.
func NewSet() Set {
	return Set{Accepted: make(map[int]struct{}), Rejected: make(map[int]struct{})}
}

// Add records id under kind.
func (s Set) Add(kind Kind, id int) {
	switch kind {
	case KindAccept:
		s.Accepted[id] = struct{}{}
	case KindReject:
		s.Rejected[id] = struct{}{}
	}
}

// Has reports whether id is recorded under kind.
func (s Set) Has(kind Kind, id int) bool {
	var ok bool
	switch kind {
	case KindAccept:
		_, ok = s.Accepted[id]
	case KindReject:
		_, ok = s.Rejected[id]
	}
	return ok
}

// Conflicts returns the ids present in both sets, sorted.
func (s Set) Conflicts() []int {
	var ids []int
	for id := range s.Accepted {
		if _, ok := s.Rejected[id]; ok {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// Len returns the total number of entries.
func (s Set) Len() int {
	return len(s.Accepted) + len(s.Rejected)
}

// IDs returns the sorted ids recorded under kind.
func (s Set) IDs(kind Kind) []int {
	src := s.Accepted
	if kind == KindReject {
		src = s.Rejected
	}
	ids := make([]int, 0, len(src))
	for id := range src {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Store loads and appends overrides keyed by output identifier.
type Store interface {
	// Load returns the persisted set. Recoverable problems such as malformed
	// entries are returned as warnings; the error is reserved for failures
	// that make the set unusable.
	Load(ctx context.Context, outputID string) (set Set, warnings []error, err error)
	// Append adds ids under kind without checking the opposite set.
	Append(ctx context.Context, outputID string, kind Kind, ids []int) error
	// Close releases the backend.
	Close() error
}
