package errors

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// FormatForCLI formats an error for CLI output.
// Uses a concise format suitable for terminal display.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	var sb strings.Builder

	switch e := err.(type) {
	case *AggregateFieldError:
		sb.WriteString(fmt.Sprintf("Error: %d field(s) failed for item %s\n", len(e.Errors), e.ItemID))
		for _, inner := range e.Errors {
			if fe, ok := inner.(*FieldAddError); ok {
				sb.WriteString(fmt.Sprintf("  - %s (%s): %v\n", fe.FieldName, fe.FieldID, fe.Cause))
				continue
			}
			sb.WriteString(fmt.Sprintf("  - %v\n", inner))
		}
		sb.WriteString(fmt.Sprintf("  Code: %s\n", ErrCodeFieldAggregate))
		return sb.String()
	case *FieldAddError:
		sb.WriteString(fmt.Sprintf("Error: field %s (%s) of item %s: %v\n", e.FieldName, e.FieldID, e.ItemID, e.Cause))
		sb.WriteString(fmt.Sprintf("  Code: %s\n", ErrCodeFieldAdd))
		return sb.String()
	}

	ce, ok := err.(*CrawlError)
	if !ok {
		ce = Wrap(ErrCodeInternal, err)
	}

	sb.WriteString(fmt.Sprintf("Error: %s\n", ce.Message))
	if ce.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("  Hint: %s\n", ce.Suggestion))
	}
	sb.WriteString(fmt.Sprintf("  Code: %s\n", ce.Code))

	return sb.String()
}

// jsonError is the JSON representation of an error.
type jsonError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Category   string            `json:"category"`
	Severity   string            `json:"severity"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	Cause      string            `json:"cause,omitempty"`
	Fields     []string          `json:"failed_fields,omitempty"`
}

// FormatJSON returns a JSON representation of the error.
func FormatJSON(err error) ([]byte, error) {
	if err == nil {
		return json.Marshal(nil)
	}

	if agg, ok := err.(*AggregateFieldError); ok {
		return json.Marshal(jsonError{
			Code:     ErrCodeFieldAggregate,
			Message:  fmt.Sprintf("%d field(s) failed", len(agg.Errors)),
			Category: string(CategoryInternal),
			Severity: string(SeverityFatal),
			Details:  map[string]string{"item_id": agg.ItemID},
			Fields:   agg.FieldIDs(),
		})
	}

	ce, ok := err.(*CrawlError)
	if !ok {
		ce = Wrap(ErrCodeInternal, err)
	}

	je := jsonError{
		Code:       ce.Code,
		Message:    ce.Message,
		Category:   string(ce.Category),
		Severity:   string(ce.Severity),
		Details:    ce.Details,
		Suggestion: ce.Suggestion,
	}
	if ce.Cause != nil {
		je.Cause = ce.Cause.Error()
	}

	return json.Marshal(je)
}

// LogAttrs formats an error as slog attributes for structured logging.
func LogAttrs(err error) []slog.Attr {
	if err == nil {
		return nil
	}

	switch e := err.(type) {
	case *FieldAddError:
		return []slog.Attr{
			slog.String("error_code", ErrCodeFieldAdd),
			slog.String("item_id", e.ItemID),
			slog.String("field_id", e.FieldID),
			slog.String("field_name", e.FieldName),
			slog.String("error", fmt.Sprint(e.Cause)),
		}
	case *AggregateFieldError:
		return []slog.Attr{
			slog.String("error_code", ErrCodeFieldAggregate),
			slog.String("item_id", e.ItemID),
			slog.Int("failed_fields", len(e.Errors)),
		}
	}

	ce, ok := err.(*CrawlError)
	if !ok {
		return []slog.Attr{slog.String("error", err.Error())}
	}

	attrs := []slog.Attr{
		slog.String("error_code", ce.Code),
		slog.String("message", ce.Message),
		slog.String("category", string(ce.Category)),
	}
	if ce.Cause != nil {
		attrs = append(attrs, slog.String("cause", ce.Cause.Error()))
	}
	for k, v := range ce.Details {
		attrs = append(attrs, slog.String("detail_"+k, v))
	}
	return attrs
}
