package model

// CommandResult is the ephemeral outcome of one remote command: captured
// output streams and the numeric exit status. Success is exit-status-zero.
// Produced per invocation and consumed immediately; never persisted.
type CommandResult struct {
	Success  bool   `json:"success"`
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"output"`
	Stderr   string `json:"error,omitempty"`
}
