// Package logging configures the process logger for fieldcrawl.
//
// Human-readable text goes to stderr. When a log file is configured (always
// with --debug), the same records are written as JSON to a size-rotated file
// under ~/.fieldcrawl/logs/.
package logging
