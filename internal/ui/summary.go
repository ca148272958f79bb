package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Aman-CERP/fieldcrawl/internal/crawl"
	crawlerrors "github.com/Aman-CERP/fieldcrawl/internal/errors"
)

// SummaryRenderer prints crawl results.
type SummaryRenderer struct {
	out    io.Writer
	styles Styles
}

// NewSummaryRenderer creates a summary renderer.
func NewSummaryRenderer(cfg Config) *SummaryRenderer {
	return &SummaryRenderer{out: cfg.Output, styles: GetStyles(cfg.NoColor)}
}

// Render prints a human-readable summary.
func (r *SummaryRenderer) Render(sum *crawl.Summary) {
	if sum == nil {
		return
	}

	status := r.styles.Success.Render("Crawl complete")
	if !sum.OK() {
		status = r.styles.Warning.Render("Crawl complete with failures")
	}
	_, _ = fmt.Fprintf(r.out, "%s %s\n\n", status, r.styles.Dim.Render("("+FormatDuration(sum.Duration)+")"))

	r.line("Items", fmt.Sprintf("%d", sum.Items))
	r.line("Crawled", fmt.Sprintf("%d", sum.Crawled))
	if sum.Unchanged > 0 {
		r.line("Unchanged", fmt.Sprintf("%d", sum.Unchanged))
	}
	failed := fmt.Sprintf("%d", sum.Failed)
	if sum.Failed > 0 {
		failed = r.styles.Error.Render(failed)
	}
	r.line("Failed", failed)
	r.line("Fields added", fmt.Sprintf("%d", sum.FieldsAdded))
	r.line("Fields skipped", fmt.Sprintf("%d", sum.FieldsSkipped))
	if sum.Swallowed > 0 {
		r.line("Field errors", r.styles.Warning.Render(fmt.Sprintf("%d (logged, item kept)", sum.Swallowed)))
	}

	if len(sum.Failures) == 0 {
		return
	}
	_, _ = fmt.Fprintf(r.out, "\n%s\n", r.styles.Header.Render("Failures"))
	for _, f := range sum.Failures {
		_, _ = fmt.Fprintf(r.out, "  %s\n", r.styles.Accent.Render(f.ItemID))
		for _, l := range strings.Split(strings.TrimRight(crawlerrors.FormatForCLI(f.Err), "\n"), "\n") {
			_, _ = fmt.Fprintf(r.out, "    %s\n", l)
		}
	}
}

func (r *SummaryRenderer) line(label, value string) {
	pad := 15 - len(label) - 1
	if pad < 0 {
		pad = 0
	}
	_, _ = fmt.Fprintf(r.out, "  %s%s %s\n", r.styles.Label.Render(label+":"), strings.Repeat(" ", pad), value)
}

// summaryJSON is the JSON form of a crawl summary.
type summaryJSON struct {
	Items         int           `json:"items"`
	Crawled       int           `json:"crawled"`
	Unchanged     int           `json:"unchanged"`
	Failed        int           `json:"failed"`
	FieldsAdded   int           `json:"fields_added"`
	FieldsSkipped int           `json:"fields_skipped"`
	FieldErrors   int           `json:"field_errors"`
	DurationMS    int64         `json:"duration_ms"`
	Failures      []failureJSON `json:"failures,omitempty"`
}

type failureJSON struct {
	ItemID string `json:"item_id"`
	Code   string `json:"code,omitempty"`
	Error  string `json:"error"`
}

// RenderJSON prints the summary as indented JSON.
func (r *SummaryRenderer) RenderJSON(sum *crawl.Summary) error {
	out := summaryJSON{
		Items:         sum.Items,
		Crawled:       sum.Crawled,
		Unchanged:     sum.Unchanged,
		Failed:        sum.Failed,
		FieldsAdded:   sum.FieldsAdded,
		FieldsSkipped: sum.FieldsSkipped,
		FieldErrors:   sum.Swallowed,
		DurationMS:    sum.Duration.Milliseconds(),
	}
	for _, f := range sum.Failures {
		out.Failures = append(out.Failures, failureJSON{
			ItemID: f.ItemID,
			Code:   crawlerrors.GetCode(f.Err),
			Error:  f.Err.Error(),
		})
	}
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// ProgressLine formats one progress snapshot, e.g. "[  3/10]  30%".
func ProgressLine(s crawl.ProgressSnapshot) string {
	width := len(fmt.Sprintf("%d", s.ItemsTotal))
	line := fmt.Sprintf("[%*d/%d] %3.0f%%", width, s.ItemsProcessed, s.ItemsTotal, s.ProgressPct)
	if s.ItemsFailed > 0 {
		line += fmt.Sprintf(" (%d failed)", s.ItemsFailed)
	}
	return line
}

// ProgressPrinter writes progress lines. On a terminal the line is
// rewritten in place; otherwise nothing is printed.
type ProgressPrinter struct {
	out io.Writer
	tty bool
}

// NewProgressPrinter creates a printer for out.
func NewProgressPrinter(out io.Writer) *ProgressPrinter {
	return &ProgressPrinter{out: out, tty: IsTTY(out)}
}

// Update prints s.
func (p *ProgressPrinter) Update(s crawl.ProgressSnapshot) {
	if !p.tty {
		return
	}
	_, _ = fmt.Fprintf(p.out, "\r%s", ProgressLine(s))
}

// Done ends the progress line.
func (p *ProgressPrinter) Done() {
	if p.tty {
		_, _ = fmt.Fprint(p.out, "\r\033[K")
	}
}

// FormatDuration formats d for display.
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return d.Round(time.Second).String()
	}
}
