package ui

import (
	"encoding/json"
	"fmt"
	"io"
)

// StatusInfo describes an index on disk.
type StatusInfo struct {
	Backend   string `json:"backend"`
	Path      string `json:"path"`
	Exists    bool   `json:"exists"`
	Documents uint64 `json:"documents"`
	SizeBytes int64  `json:"size_bytes"`
	Locked    bool   `json:"locked"`
}

// StatusRenderer displays index status.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(cfg Config) *StatusRenderer {
	return &StatusRenderer{out: cfg.Output, styles: GetStyles(cfg.NoColor)}
}

// Render displays status info to terminal.
func (r *StatusRenderer) Render(info StatusInfo) {
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("Index Status"))
	_, _ = fmt.Fprintf(r.out, "  Backend:    %s\n", info.Backend)
	_, _ = fmt.Fprintf(r.out, "  Path:       %s\n", info.Path)
	if !info.Exists {
		_, _ = fmt.Fprintf(r.out, "  State:      %s\n", r.styles.Warning.Render("not created, run 'fieldcrawl crawl'"))
		return
	}
	_, _ = fmt.Fprintf(r.out, "  Documents:  %d\n", info.Documents)
	_, _ = fmt.Fprintf(r.out, "  Size:       %s\n", FormatBytes(info.SizeBytes))
	if info.Locked {
		_, _ = fmt.Fprintf(r.out, "  State:      %s\n", r.styles.Warning.Render("crawl in progress"))
	} else {
		_, _ = fmt.Fprintf(r.out, "  State:      %s\n", r.styles.Success.Render("ready"))
	}
}

// RenderJSON outputs status as JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(info)
}

// FormatBytes formats bytes to human-readable format.
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
