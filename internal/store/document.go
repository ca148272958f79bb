// Package store holds index documents and the index backends they are
// committed to.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Aman-CERP/fieldcrawl/internal/content"
)

// ItemIDField is the reserved document field carrying the source item id.
const ItemIDField = "_item_id"

var (
	// ErrReservedFieldName is returned for a field whose normalized name is
	// ItemIDField.
	ErrReservedFieldName = errors.New("field name is reserved")

	// ErrFieldNameConflict is returned when a field's normalized name is
	// already held by a different field of the document.
	ErrFieldNameConflict = errors.New("field name already used by another field")
)

// FieldValue is one converted field stored in a Document.
type FieldValue struct {
	FieldID string
	Name    string
	TypeKey string
	Value   any
	Text    string
}

// Document is an index document under construction. It receives admitted
// fields from the document builder and is safe for concurrent AddField
// calls.
type Document struct {
	ID     string
	ItemID string

	mu     sync.Mutex
	fields map[string]FieldValue
}

// NewDocument creates an empty document for the given item. The document id
// is the item id.
func NewDocument(itemID string) *Document {
	return &Document{
		ID:     itemID,
		ItemID: itemID,
		fields: make(map[string]FieldValue),
	}
}

// AddField reads the field value through ctx, converts it according to the
// field's type key and stores it under the normalized field name. Empty
// values are accepted and not stored. Adding the same field again replaces
// its value; a different field normalizing to a stored name is rejected with
// ErrFieldNameConflict.
func (d *Document) AddField(ctx context.Context, f content.Field) error {
	key := IndexFieldName(f.Name())
	if key == ItemIDField {
		return fmt.Errorf("%w: %q", ErrReservedFieldName, f.Name())
	}

	raw, err := f.Value(ctx)
	if err != nil {
		return fmt.Errorf("read value: %w", err)
	}

	v, err := Convert(f.TypeKey(), raw)
	if err != nil {
		return err
	}
	if v == nil {
		return nil
	}

	id := f.ID().String()

	d.mu.Lock()
	defer d.mu.Unlock()
	if held, ok := d.fields[key]; ok && held.FieldID != id {
		return fmt.Errorf("%w: %q collides with %q (%s)", ErrFieldNameConflict, f.Name(), held.Name, held.FieldID)
	}
	d.fields[key] = FieldValue{
		FieldID: id,
		Name:    f.Name(),
		TypeKey: f.TypeKey(),
		Value:   v,
		Text:    raw,
	}
	return nil
}

// Len returns the number of stored fields.
func (d *Document) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.fields)
}

// Get returns the stored field under its normalized name.
func (d *Document) Get(name string) (FieldValue, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.fields[IndexFieldName(name)]
	return v, ok
}

// Fields returns the stored fields sorted by normalized name.
func (d *Document) Fields() []FieldValue {
	d.mu.Lock()
	defer d.mu.Unlock()

	names := make([]string, 0, len(d.fields))
	for n := range d.fields {
		names = append(names, n)
	}
	sort.Strings(names)

	out := make([]FieldValue, len(names))
	for i, n := range names {
		out[i] = d.fields[n]
	}
	return out
}

// Map returns the document as a flat map keyed by normalized field name,
// plus the item id under ItemIDField.
func (d *Document) Map() map[string]any {
	d.mu.Lock()
	defer d.mu.Unlock()

	m := make(map[string]any, len(d.fields)+1)
	for n, fv := range d.fields {
		m[n] = fv.Value
	}
	m[ItemIDField] = d.ItemID
	return m
}

// IndexFieldName normalizes a field name for use as an index field:
// lowercased, with runs of whitespace replaced by a single underscore.
func IndexFieldName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "_")
}
