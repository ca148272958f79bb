package content

import (
	"context"
	"strings"
	"sync"

	"github.com/Aman-CERP/fieldcrawl/internal/fallback"
)

// Field is a named, typed unit of content data attached to an item.
type Field interface {
	// ID returns the stable field identifier.
	ID() FieldID

	// Name returns the human key. Blank names are invalid for indexing.
	Name() string

	// TypeKey declares the serialization kind. Blank type keys are invalid
	// for indexing.
	TypeKey() string

	// Value resolves the field value. Implementations honour the fallback
	// mode carried on ctx.
	Value(ctx context.Context) (string, error)
}

// Item is a content item with a dynamic field set.
type Item interface {
	// UniqueID returns the opaque item identity.
	UniqueID() string

	// IsTemplate reports whether the item is a template definition.
	IsTemplate() bool

	// IsMedia reports whether the item is a media library item.
	IsMedia() bool

	// Fields returns a snapshot of the currently loaded fields.
	Fields() []Field

	// LoadAllFields populates every declared field. Idempotent.
	LoadAllFields()

	// FieldByID looks up a declared field whether or not it is loaded.
	FieldByID(id FieldID) (Field, bool)
}

// ValidForIndexing reports whether f is non-nil with a non-blank name and
// type key.
func ValidForIndexing(f Field) bool {
	if f == nil {
		return false
	}
	return strings.TrimSpace(f.Name()) != "" && strings.TrimSpace(f.TypeKey()) != ""
}

// MemoryField is a Field held in memory.
type MemoryField struct {
	id       FieldID
	name     string
	typeKey  string
	value    string
	fallback string
}

// NewMemoryField creates a field with the given identity and value.
func NewMemoryField(id FieldID, name, typeKey, value string) *MemoryField {
	return &MemoryField{id: id, name: name, typeKey: typeKey, value: value}
}

// WithFallback sets the value used when the field has no value of its own
// and language fallback is enabled on the read context.
func (f *MemoryField) WithFallback(value string) *MemoryField {
	f.fallback = value
	return f
}

// ID implements Field.
func (f *MemoryField) ID() FieldID { return f.id }

// Name implements Field.
func (f *MemoryField) Name() string { return f.name }

// TypeKey implements Field.
func (f *MemoryField) TypeKey() string { return f.typeKey }

// Value implements Field.
func (f *MemoryField) Value(ctx context.Context) (string, error) {
	if f.value == "" && f.fallback != "" && fallback.Enabled(ctx) {
		return f.fallback, nil
	}
	return f.value, nil
}

// MemoryItem is an Item backed by a typed map of declared fields and an
// ordered loaded subset.
type MemoryItem struct {
	uniqueID string
	revision string
	template bool
	media    bool

	mu       sync.Mutex
	declared []*MemoryField
	byID     map[FieldID]*MemoryField
	loaded   []*MemoryField
	isLoaded map[FieldID]bool
	loadAll  int
}

// NewMemoryItem creates an empty item.
func NewMemoryItem(uniqueID string) *MemoryItem {
	return &MemoryItem{
		uniqueID: uniqueID,
		byID:     make(map[FieldID]*MemoryField),
		isLoaded: make(map[FieldID]bool),
	}
}

// AsTemplate marks the item as a template definition.
func (it *MemoryItem) AsTemplate(v bool) *MemoryItem {
	it.template = v
	return it
}

// AsMedia marks the item as a media library item.
func (it *MemoryItem) AsMedia(v bool) *MemoryItem {
	it.media = v
	return it
}

// WithRevision sets the revision tag used for crawl de-duplication.
func (it *MemoryItem) WithRevision(rev string) *MemoryItem {
	it.revision = rev
	return it
}

// Declare adds a field definition. Loaded fields are visible through
// Fields immediately; the rest only after LoadAllFields or via FieldByID.
// Declaring an id twice replaces the earlier definition in place.
func (it *MemoryItem) Declare(f *MemoryField, loaded bool) *MemoryItem {
	it.mu.Lock()
	defer it.mu.Unlock()

	if prev, ok := it.byID[f.id]; ok {
		for i, d := range it.declared {
			if d == prev {
				it.declared[i] = f
			}
		}
		for i, l := range it.loaded {
			if l == prev {
				it.loaded[i] = f
			}
		}
	} else {
		it.declared = append(it.declared, f)
	}
	it.byID[f.id] = f

	if loaded && !it.isLoaded[f.id] {
		it.loaded = append(it.loaded, f)
		it.isLoaded[f.id] = true
	}
	return it
}

// UniqueID implements Item.
func (it *MemoryItem) UniqueID() string { return it.uniqueID }

// Revision returns the revision tag, empty when unknown.
func (it *MemoryItem) Revision() string { return it.revision }

// IsTemplate implements Item.
func (it *MemoryItem) IsTemplate() bool { return it.template }

// IsMedia implements Item.
func (it *MemoryItem) IsMedia() bool { return it.media }

// Fields implements Item.
func (it *MemoryItem) Fields() []Field {
	it.mu.Lock()
	defer it.mu.Unlock()

	out := make([]Field, len(it.loaded))
	for i, f := range it.loaded {
		out[i] = f
	}
	return out
}

// LoadAllFields implements Item. Declared fields not yet loaded are
// appended in declaration order.
func (it *MemoryItem) LoadAllFields() {
	it.mu.Lock()
	defer it.mu.Unlock()

	it.loadAll++
	for _, f := range it.declared {
		if !it.isLoaded[f.id] {
			it.loaded = append(it.loaded, f)
			it.isLoaded[f.id] = true
		}
	}
}

// LoadAllCalls returns how many times LoadAllFields has been invoked.
func (it *MemoryItem) LoadAllCalls() int {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.loadAll
}

// FieldByID implements Item.
func (it *MemoryItem) FieldByID(id FieldID) (Field, bool) {
	it.mu.Lock()
	defer it.mu.Unlock()

	f, ok := it.byID[id]
	if !ok {
		return nil, false
	}
	return f, true
}

var (
	_ Item  = (*MemoryItem)(nil)
	_ Field = (*MemoryField)(nil)
)
