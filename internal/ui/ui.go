// Package ui renders crawl summaries, search hits and index status for the
// terminal. Output is styled with lipgloss on a TTY and plain otherwise.
package ui

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// Config configures a renderer.
type Config struct {
	Output  io.Writer
	NoColor bool
}

// NewConfig returns a Config for out, disabling color when out is not a
// terminal, when NO_COLOR is set or when running in CI.
func NewConfig(out io.Writer) Config {
	return Config{
		Output:  out,
		NoColor: !IsTTY(out) || DetectNoColor() || DetectCI(),
	}
}

// IsTTY checks if output is a terminal.
func IsTTY(w io.Writer) bool {
	if w == nil {
		return false
	}
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// DetectNoColor checks if NO_COLOR environment variable is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// DetectCI checks if running in a CI environment.
func DetectCI() bool {
	ciVars := []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"}
	for _, v := range ciVars {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}
