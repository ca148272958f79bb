package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/Aman-CERP/fieldcrawl/internal/store"
)

// maxValueWidth truncates field values in hit listings.
const maxValueWidth = 80

// HitsRenderer prints search results.
type HitsRenderer struct {
	out    io.Writer
	styles Styles
}

// NewHitsRenderer creates a hits renderer.
func NewHitsRenderer(cfg Config) *HitsRenderer {
	return &HitsRenderer{out: cfg.Output, styles: GetStyles(cfg.NoColor)}
}

// Render prints hits, best first, with their stored fields.
func (r *HitsRenderer) Render(query string, hits []*store.Hit) {
	if len(hits) == 0 {
		_, _ = fmt.Fprintf(r.out, "No results for %q\n", query)
		return
	}

	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render(fmt.Sprintf("%d result(s) for %q", len(hits), query)))
	for i, h := range hits {
		_, _ = fmt.Fprintf(r.out, "%2d. %s %s\n", i+1,
			r.styles.Accent.Render(h.DocID),
			r.styles.Dim.Render(fmt.Sprintf("score %.3f", h.Score)))

		names := make([]string, 0, len(h.Fields))
		for name := range h.Fields {
			if name == store.ItemIDField {
				continue
			}
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			_, _ = fmt.Fprintf(r.out, "    %s %s\n",
				r.styles.Label.Render(name+":"),
				truncate(fmt.Sprint(h.Fields[name]), maxValueWidth))
		}
	}
}

// RenderJSON prints hits as indented JSON.
func (r *HitsRenderer) RenderJSON(hits []*store.Hit) error {
	type hitJSON struct {
		DocID  string         `json:"doc_id"`
		Score  float64        `json:"score"`
		Fields map[string]any `json:"fields,omitempty"`
	}
	out := make([]hitJSON, 0, len(hits))
	for _, h := range hits {
		out = append(out, hitJSON{DocID: h.DocID, Score: h.Score, Fields: h.Fields})
	}
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
