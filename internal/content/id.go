// Package content defines the content item and field capabilities consumed
// by the document builder, plus an in-memory item model used by the item
// file loader and tests.
package content

import (
	"strings"

	"github.com/google/uuid"
)

// FieldID is the stable identifier of a field definition.
type FieldID uuid.UUID

// NilFieldID is the zero identifier.
var NilFieldID FieldID

// ParseFieldID parses s as a field identifier.
// Braced ({...}), bare, compact hex and urn:uuid: forms are accepted.
// A malformed string yields false rather than an error.
func ParseFieldID(s string) (FieldID, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return NilFieldID, false
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return NilFieldID, false
	}
	return FieldID(u), true
}

// MustParseFieldID is like ParseFieldID but panics on malformed input.
// Intended for fixtures and package-level constants.
func MustParseFieldID(s string) FieldID {
	id, ok := ParseFieldID(s)
	if !ok {
		panic("content: malformed field id " + s)
	}
	return id
}

// NewFieldID returns a random identifier.
func NewFieldID() FieldID {
	return FieldID(uuid.New())
}

// String returns the canonical brace-wrapped uppercase form,
// e.g. {0DE95AE4-41AB-4D01-9EB0-67441B7C2450}.
func (id FieldID) String() string {
	return "{" + strings.ToUpper(uuid.UUID(id).String()) + "}"
}

// IsNil reports whether id is the zero identifier.
func (id FieldID) IsNil() bool {
	return id == NilFieldID
}

// CanonicalKey returns the canonical id string when key parses as a field
// id, and key unchanged otherwise. Used to compare policy keys against
// field ids regardless of the form they were written in.
func CanonicalKey(key string) string {
	if id, ok := ParseFieldID(key); ok {
		return id.String()
	}
	return key
}
