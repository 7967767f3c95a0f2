// Package party identifies the participants of an FTSA round.
//
// The spec's wire formats (spec.md §4.5, §6) encode user identifiers as
// big-endian uint16 values, so ID is a uint16 rather than the string type
// the teacher protocol (luxfi/threshold) uses for its curve-based parties.
package party

import "sort"

// ID identifies a single client (user) participating in a scenario.
// Identifiers are assigned 1..n; 0 is reserved for the server/aggregator
// role and is never a valid client ID.
type ID uint16

// Server is the reserved identifier of the aggregator.
const Server ID = 0

// IDSlice is a sortable list of party IDs.
type IDSlice []ID

func (p IDSlice) Len() int           { return len(p) }
func (p IDSlice) Less(i, j int) bool { return p[i] < p[j] }
func (p IDSlice) Swap(i, j int)      { p[i], p[j] = p[j], p[i] }

// Sorted returns a sorted copy of p.
func (p IDSlice) Sorted() IDSlice {
	out := make(IDSlice, len(p))
	copy(out, p)
	sort.Sort(out)
	return out
}

// Contains reports whether id is present in p.
func (p IDSlice) Contains(id ID) bool {
	for _, x := range p {
		if x == id {
			return true
		}
	}
	return false
}

// Set is a lookup-friendly set of party IDs.
type Set map[ID]struct{}

// NewSet builds a Set from a slice of IDs.
func NewSet(ids ...ID) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Contains reports whether id is a member of s.
func (s Set) Contains(id ID) bool {
	_, ok := s[id]
	return ok
}

// Slice returns the (unsorted) elements of s as an IDSlice.
func (s Set) Slice() IDSlice {
	out := make(IDSlice, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	return out
}

// Minus returns the elements of s not present in other.
func (s Set) Minus(other Set) IDSlice {
	out := make(IDSlice, 0)
	for id := range s {
		if !other.Contains(id) {
			out = append(out, id)
		}
	}
	return out.Sorted()
}
