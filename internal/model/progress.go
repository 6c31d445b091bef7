package model

import "strings"

// ProgressLine is one human-readable line of workflow output. Lines form a
// strictly ordered, single-consumer, finite sequence terminated by exactly one
// sentinel line (IsTerminal). Stderr marks lines that the remote tool printed
// on its error stream.
type ProgressLine struct {
	Text   string `json:"message"`
	Stderr bool   `json:"stderr,omitempty"`
}

// Sentinel prefixes for the terminal line of a progress sequence.
const (
	SentinelSuccess = "SUCCESS"
	SentinelError   = "ERROR"
)

// IsTerminal reports whether the line is a workflow-terminating sentinel.
func (l ProgressLine) IsTerminal() bool {
	return strings.HasPrefix(l.Text, SentinelSuccess+":") || strings.HasPrefix(l.Text, SentinelError+":")
}

// Failed reports whether the line is the error sentinel.
func (l ProgressLine) Failed() bool {
	return strings.HasPrefix(l.Text, SentinelError+":")
}
