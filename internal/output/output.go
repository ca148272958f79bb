// Package output prints one-line CLI status messages.
package output

import (
	"fmt"
	"io"

	"github.com/Aman-CERP/fieldcrawl/internal/ui"
)

// Writer provides formatted output for CLI.
type Writer struct {
	out    io.Writer
	styles ui.Styles
}

// New creates a Writer for out. Color is used only when out is a terminal.
func New(out io.Writer) *Writer {
	return NewWithConfig(ui.NewConfig(out))
}

// NewWithConfig creates a Writer from a ui config.
func NewWithConfig(cfg ui.Config) *Writer {
	return &Writer{out: cfg.Output, styles: ui.GetStyles(cfg.NoColor)}
}

// Status prints a message with a marker. An empty marker indents the line.
// Errors from writing are ignored for console output.
func (w *Writer) Status(marker, msg string) {
	if marker != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", marker, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "  %s\n", msg)
	}
}

// Statusf prints a formatted status message.
func (w *Writer) Statusf(marker, format string, args ...any) {
	w.Status(marker, fmt.Sprintf(format, args...))
}

// Success prints a success message.
func (w *Writer) Success(msg string) {
	w.Status(w.styles.Success.Render("✓"), msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status(w.styles.Warning.Render("!"), msg)
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status(w.styles.Error.Render("✗"), msg)
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// KeyValue prints an indented "key: value" line.
func (w *Writer) KeyValue(key, value string) {
	w.Status("", w.styles.Label.Render(key+":")+" "+value)
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}
