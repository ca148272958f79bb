package errors

import (
	"fmt"
	"strings"
)

// FieldAddError reports a failure while adding one admitted field's value
// into an index document.
type FieldAddError struct {
	ItemID    string
	FieldID   string
	FieldName string
	Cause     error
}

// NewFieldAddError wraps cause with the identity of the failing field.
func NewFieldAddError(itemID, fieldID, fieldName string, cause error) *FieldAddError {
	return &FieldAddError{ItemID: itemID, FieldID: fieldID, FieldName: fieldName, Cause: cause}
}

// Error implements the error interface.
func (e *FieldAddError) Error() string {
	return fmt.Sprintf("[%s] could not add field %s : %s for item %s: %v",
		ErrCodeFieldAdd, e.FieldID, e.FieldName, e.ItemID, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *FieldAddError) Unwrap() error {
	return e.Cause
}

// AggregateFieldError collects every FieldAddError raised by one parallel
// build phase.
type AggregateFieldError struct {
	ItemID string
	Errors []error
}

// NewAggregateFieldError returns nil when errs is empty.
func NewAggregateFieldError(itemID string, errs []error) *AggregateFieldError {
	if len(errs) == 0 {
		return nil
	}
	cp := make([]error, len(errs))
	copy(cp, errs)
	return &AggregateFieldError{ItemID: itemID, Errors: cp}
}

// Error implements the error interface.
func (e *AggregateFieldError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %d field(s) failed for item %s", ErrCodeFieldAggregate, len(e.Errors), e.ItemID)
	for _, err := range e.Errors {
		sb.WriteString("\n  - ")
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (e *AggregateFieldError) Unwrap() []error {
	return e.Errors
}

// FieldIDs returns the id of every failed field, in collection order.
func (e *AggregateFieldError) FieldIDs() []string {
	ids := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		if fe, ok := err.(*FieldAddError); ok {
			ids = append(ids, fe.FieldID)
		}
	}
	return ids
}
