package store

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// dateLayouts are tried in order when converting date and datetime fields.
var dateLayouts = []string{
	time.RFC3339,
	"20060102T150405Z",
	"20060102T150405",
	"2006-01-02",
}

// Convert turns a raw field value into the value stored in the index.
//
//   - integer: int64
//   - number: float64
//   - checkbox: bool ("1"/"true" or ""/"0"/"false")
//   - date, datetime: time.Time
//   - anything else: the raw string
//
// An empty raw value converts to nil for every type except checkbox, where
// it means false. A raw value that does not parse for its type is an error.
func Convert(typeKey, raw string) (any, error) {
	kind := strings.ToLower(strings.TrimSpace(typeKey))
	trimmed := strings.TrimSpace(raw)

	switch kind {
	case "checkbox":
		switch strings.ToLower(trimmed) {
		case "", "0", "false":
			return false, nil
		case "1", "true":
			return true, nil
		}
		return nil, fmt.Errorf("checkbox value %q is not a boolean", raw)
	}

	if trimmed == "" {
		return nil, nil
	}

	switch kind {
	case "integer":
		n, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("integer value %q: %w", raw, err)
		}
		return n, nil
	case "number":
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return nil, fmt.Errorf("number value %q: %w", raw, err)
		}
		return f, nil
	case "date", "datetime":
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, trimmed); err == nil {
				return t.UTC(), nil
			}
		}
		return nil, fmt.Errorf("%s value %q is not a recognised date", kind, raw)
	}

	return raw, nil
}
