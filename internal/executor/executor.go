// Package executor runs backup and restore helper scripts as local child
// processes and forwards their output as an ordered progress stream. The
// stream contract matches the remote path: ANSI decoration stripped, blank
// lines dropped, and exactly one terminal SUCCESS/ERROR sentinel derived
// from the exit status.
package executor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/cwarner/backhaul/internal/model"
)

var ansiRe = regexp.MustCompile(`\x1B(?:[@-Z\\-_]|\[[0-?]*[ -/]*[@-~])`)

// StripANSI removes terminal color and cursor escape sequences.
func StripANSI(s string) string {
	return ansiRe.ReplaceAllString(s, "")
}

// Runner invokes helper scripts from a fixed scripts directory.
type Runner struct {
	scriptsDir string
	logger     zerolog.Logger
}

func New(scriptsDir string, logger zerolog.Logger) *Runner {
	return &Runner{
		scriptsDir: scriptsDir,
		logger:     logger.With().Str("component", "executor").Logger(),
	}
}

// BackupOptions selects the backup script and its arguments.
type BackupOptions struct {
	Type           string
	Container      string
	IncludeVolumes bool
	IncludeLogs    bool
}

// Validate rejects unknown backup types before any command is composed.
func (o BackupOptions) Validate() error {
	switch o.Type {
	case model.BackupTypeNative, model.BackupTypeDocker, model.BackupTypeEnhanced:
		return nil
	default:
		return fmt.Errorf("unknown backup type %q", o.Type)
	}
}

// Script returns the helper script filename for this backup type.
func (o BackupOptions) Script() string {
	if o.Type == model.BackupTypeEnhanced {
		return "docker_backup.sh"
	}
	return "backup_n8n.sh"
}

// Args builds the script argument list. Arguments are always composed as a
// typed list, never concatenated into a shell string.
func (o BackupOptions) Args() []string {
	var args []string
	if o.Type == model.BackupTypeEnhanced {
		if o.Container != "" {
			args = append(args, o.Container)
		}
		if o.IncludeVolumes {
			args = append(args, "--include-volumes")
		}
		if o.IncludeLogs {
			args = append(args, "--include-logs")
		}
		return args
	}
	args = append(args, o.Type)
	if o.Container != "" && o.Type == model.BackupTypeDocker {
		args = append(args, o.Container)
	}
	return args
}

// RestoreOptions selects the restore script and its arguments.
type RestoreOptions struct {
	Type              string
	Archive           string
	Container         string
	RecreateContainer bool
}

// Validate rejects incomplete restore requests before any command is composed.
func (o RestoreOptions) Validate() error {
	if o.Archive == "" {
		return errors.New("restore requires an archive name")
	}
	if strings.ContainsAny(o.Archive, "/\\") {
		return fmt.Errorf("archive name %q must not contain path separators", o.Archive)
	}
	switch o.Type {
	case model.BackupTypeNative, model.BackupTypeDocker, model.BackupTypeEnhanced:
		return nil
	default:
		return fmt.Errorf("unknown restore type %q", o.Type)
	}
}

func (o RestoreOptions) Script() string {
	if o.Type == model.BackupTypeEnhanced {
		return "docker_restore.sh"
	}
	return "restore_n8n.sh"
}

func (o RestoreOptions) Args() []string {
	var args []string
	if o.Type == model.BackupTypeEnhanced {
		args = append(args, o.Archive)
		if o.Container != "" {
			args = append(args, o.Container)
		}
		if o.RecreateContainer {
			args = append(args, "--recreate-container")
		}
		return args
	}
	args = append(args, o.Type, o.Archive)
	if o.Container != "" && o.Type == model.BackupTypeDocker {
		args = append(args, o.Container)
	}
	return args
}

// Backup runs a local backup and streams progress. The channel is closed
// after the terminal sentinel; the caller must drain it.
func (r *Runner) Backup(ctx context.Context, opts BackupOptions) <-chan model.ProgressLine {
	if err := opts.Validate(); err != nil {
		return failedStream(err)
	}
	return r.run(ctx, "Backup", opts.Script(), opts.Args(), false)
}

// Restore runs a local restore and streams progress. Restore scripts prompt
// for confirmation, so an affirmative answer is piped to stdin.
func (r *Runner) Restore(ctx context.Context, opts RestoreOptions) <-chan model.ProgressLine {
	if err := opts.Validate(); err != nil {
		return failedStream(err)
	}
	return r.run(ctx, "Restore", opts.Script(), opts.Args(), true)
}

func failedStream(err error) <-chan model.ProgressLine {
	out := make(chan model.ProgressLine, 1)
	out <- model.ProgressLine{Text: fmt.Sprintf("%s: %s", model.SentinelError, err)}
	close(out)
	return out
}

func (r *Runner) run(ctx context.Context, op, scriptName string, args []string, confirm bool) <-chan model.ProgressLine {
	out := make(chan model.ProgressLine)
	go func() {
		defer close(out)

		scriptPath := filepath.Join(r.scriptsDir, scriptName)
		if _, err := os.Stat(scriptPath); err != nil {
			out <- model.ProgressLine{Text: fmt.Sprintf("%s: Script not found: %s", model.SentinelError, scriptPath)}
			return
		}

		cmd := exec.CommandContext(ctx, "bash", append([]string{scriptPath}, args...)...)
		cmd.Dir = filepath.Dir(r.scriptsDir)
		if confirm {
			cmd.Stdin = strings.NewReader("y\n")
		}

		// stderr is merged into the stream so consumers see one ordered
		// sequence, mirroring the remote execution path.
		pr, pw := io.Pipe()
		cmd.Stdout = pw
		cmd.Stderr = pw

		if err := cmd.Start(); err != nil {
			out <- model.ProgressLine{Text: fmt.Sprintf("%s: Failed to execute %s: %s", model.SentinelError, strings.ToLower(op), err)}
			return
		}

		waitDone := make(chan error, 1)
		go func() {
			err := cmd.Wait()
			pw.Close()
			waitDone <- err
		}()

		scanner := bufio.NewScanner(pr)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(StripANSI(scanner.Text()))
			if line == "" {
				continue
			}
			pl := model.ProgressLine{Text: line}
			if pl.IsTerminal() {
				// The stream's single sentinel is derived from the
				// exit status, not echoed from script output.
				continue
			}
			out <- pl
		}
		waitErr := <-waitDone

		if waitErr == nil {
			out <- model.ProgressLine{Text: fmt.Sprintf("%s: %s completed successfully!", model.SentinelSuccess, op)}
			return
		}
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		r.logger.Warn().Str("script", scriptName).Int("exit_code", exitCode).Msg("local script failed")
		out <- model.ProgressLine{Text: fmt.Sprintf("%s: %s failed with exit code %d", model.SentinelError, op, exitCode)}
	}()
	return out
}
