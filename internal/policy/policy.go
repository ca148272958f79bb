// Package policy holds the immutable field selection policy applied to one
// document build.
package policy

import (
	"runtime"
	"sort"
	"strings"

	"github.com/Aman-CERP/fieldcrawl/internal/content"
)

// KeySet is an immutable set of field keys. A key is either a field name or
// a field id; ids are stored in canonical form so that differently written
// forms of the same id compare equal. Names are matched exactly.
type KeySet struct {
	keys map[string]struct{}
}

// NewKeySet builds a KeySet. Blank keys are dropped.
func NewKeySet(keys ...string) KeySet {
	ks := KeySet{keys: make(map[string]struct{}, len(keys))}
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		ks.keys[content.CanonicalKey(k)] = struct{}{}
	}
	return ks
}

// Len returns the number of keys.
func (s KeySet) Len() int { return len(s.keys) }

// Empty reports whether the set has no keys, meaning "none specified".
func (s KeySet) Empty() bool { return len(s.keys) == 0 }

// Contains reports whether key is in the set. Keys that parse as field ids
// are canonicalised before lookup.
func (s KeySet) Contains(key string) bool {
	if len(s.keys) == 0 {
		return false
	}
	_, ok := s.keys[content.CanonicalKey(key)]
	return ok
}

// ContainsField reports whether the field's name or id is in the set.
func (s KeySet) ContainsField(f content.Field) bool {
	if len(s.keys) == 0 {
		return false
	}
	if _, ok := s.keys[f.Name()]; ok {
		return true
	}
	_, ok := s.keys[f.ID().String()]
	return ok
}

// ContainsName reports whether the field's name, and only its name, is in
// the set.
func (s KeySet) ContainsName(f content.Field) bool {
	_, ok := s.keys[f.Name()]
	return ok
}

// Without returns the keys not present in exclude, sorted for a stable
// processing order.
func (s KeySet) Without(exclude map[string]struct{}) []string {
	out := make([]string, 0, len(s.keys))
	for k := range s.keys {
		if _, skip := exclude[k]; skip {
			continue
		}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Keys returns all keys sorted.
func (s KeySet) Keys() []string {
	return s.Without(nil)
}

// ParallelOptions bounds the parallel build. Cancellation is carried by the
// context passed to the build.
type ParallelOptions struct {
	// MaxDegree caps concurrent field workers. Zero or negative means
	// runtime.NumCPU().
	MaxDegree int
}

// Degree returns the effective concurrency cap.
func (o ParallelOptions) Degree() int {
	if o.MaxDegree <= 0 {
		return runtime.NumCPU()
	}
	return o.MaxDegree
}

// Policy decides which fields of an item are indexed. A Policy is read-only
// once built and may be shared by concurrent builds.
type Policy struct {
	IndexAllFields   bool
	Included         KeySet
	Excluded         KeySet
	ExcludedTemplate KeySet
	ExcludedMedia    KeySet
	StopOnFieldError bool
	Parallel         bool
	ParallelOptions  ParallelOptions
}

// HasIncludedFields reports whether an include list was specified.
func (p *Policy) HasIncludedFields() bool {
	return !p.Included.Empty()
}
