package orchestrator

import (
	"sort"
	"strings"
)

// remoteCommand composes the single shell line executed on the remote host.
// Every argument passes through shell quoting; the command is never built by
// ad hoc string concatenation at call sites.
type remoteCommand struct {
	dir        string            // scratch directory; cd target and chmod scope
	env        map[string]string // overrides exported before the script runs
	script     string            // script filename relative to dir
	args       []string
	confirmYes bool // pipe an affirmative answer into the script's stdin
}

func (c remoteCommand) String() string {
	var b strings.Builder
	b.WriteString("cd ")
	b.WriteString(shellQuote(c.dir))
	b.WriteString(" && chmod +x *.sh")

	b.WriteString(" && ")
	if c.confirmYes {
		b.WriteString("printf 'y\\n' | ")
	}

	// The assignments must sit directly on the bash invocation: an env
	// prefix before a pipeline binds to the first command, not the script.
	keys := make([]string, 0, len(c.env))
	for k := range c.env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(shellQuote(c.env[k]))
		b.WriteString(" ")
	}

	b.WriteString("bash ")
	b.WriteString(shellQuote(c.script))
	for _, a := range c.args {
		b.WriteString(" ")
		b.WriteString(shellQuote(a))
	}
	return b.String()
}

// shellQuote wraps s in single quotes, escaping embedded single quotes so the
// result is safe to splice into a POSIX shell command line.
func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// normalizeLineEndings rewrites CRLF line endings to LF. Helper scripts may
// originate on a platform whose editors save CRLF, which breaks the remote
// shell's shebang handling.
func normalizeLineEndings(data []byte) []byte {
	return []byte(strings.ReplaceAll(string(data), "\r\n", "\n"))
}
