// Package orchestrator composes the registry, vault, and SSH transport into
// the remote backup and restore workflows. Each invocation is one sequential
// state machine that reports progress as an ordered line stream and always
// attempts remote cleanup, whatever the outcome.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cwarner/backhaul/internal/config"
	"github.com/cwarner/backhaul/internal/executor"
	"github.com/cwarner/backhaul/internal/metrics"
	"github.com/cwarner/backhaul/internal/model"
	"github.com/cwarner/backhaul/internal/platform"
	"github.com/cwarner/backhaul/internal/registry"
	"github.com/cwarner/backhaul/internal/transport"
)

// markerPrefix announces the produced artifact in a helper script's output.
// This is a text-scraping contract shared with the scripts; changing it on
// either side breaks artifact discovery silently.
const markerPrefix = "BACKUP_FILE: "

// Session is the per-invocation transport surface.
type Session interface {
	Exec(ctx context.Context, command string, timeout time.Duration) (model.CommandResult, error)
	ExecStream(ctx context.Context, command string, timeout time.Duration, onLine func(line string, stderr bool)) (model.CommandResult, error)
	Upload(localPath, remotePath string) error
	UploadBytes(data []byte, remotePath string) error
	Download(remotePath, localPath string) error
	Close() error
}

// Dialer opens an authenticated Session to a host.
type Dialer interface {
	Connect(host model.Host, secret model.Secret) (Session, error)
}

type sshDialer struct{ d *transport.Dialer }

func (s sshDialer) Connect(host model.Host, secret model.Secret) (Session, error) {
	return s.d.Connect(host, secret)
}

// NewSSHDialer adapts the concrete transport dialer to the Dialer interface.
func NewSSHDialer(d *transport.Dialer) Dialer { return sshDialer{d: d} }

// HostStore resolves host records.
type HostStore interface {
	Get(id string) (model.HostSummary, error)
}

// SecretSource resolves decrypted secrets. Absence, including decryption
// failure, is reported as not-found rather than as an error.
type SecretSource interface {
	Get(hostID string) (model.Secret, bool)
}

type Orchestrator struct {
	hosts          HostStore
	secrets        SecretSource
	dialer         Dialer
	scriptsDir     string
	artifactsDir   string
	instanceFilter string
	cmdTimeout     time.Duration
	opTimeout      time.Duration
	logger         zerolog.Logger
}

func New(hosts HostStore, secrets SecretSource, dialer Dialer, cfg *config.Config, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		hosts:          hosts,
		secrets:        secrets,
		dialer:         dialer,
		scriptsDir:     cfg.ScriptsDir,
		artifactsDir:   cfg.ArtifactsDir,
		instanceFilter: cfg.InstanceFilter,
		cmdTimeout:     cfg.CommandTimeout,
		opTimeout:      cfg.OperationTimeout,
		logger:         logger.With().Str("component", "orchestrator").Logger(),
	}
}

// Backup runs the remote backup workflow against the given host and streams
// progress. The channel carries ordered lines ending in exactly one terminal
// sentinel and is closed afterwards; the caller must drain it.
func (o *Orchestrator) Backup(ctx context.Context, hostID string, opts executor.BackupOptions) <-chan model.ProgressLine {
	out := make(chan model.ProgressLine)
	go func() {
		defer close(out)
		start := time.Now()
		result := metrics.ResultFailure
		defer func() { metrics.ObserveOperation("backup", result, time.Since(start)) }()

		w := &workflow{out: out, logger: o.logger.With().Str("host_id", hostID).Logger()}

		if err := opts.Validate(); err != nil {
			w.fail("%s", err)
			return
		}
		scriptPath := filepath.Join(o.scriptsDir, opts.Script())
		if _, err := os.Stat(scriptPath); err != nil {
			w.fail("Script not found: %s", scriptPath)
			return
		}

		host, secret, ok := o.resolve(w, hostID)
		if !ok {
			return
		}

		w.emit("Connecting to %s (%s)...", host.Name, host.Host)
		sess, err := o.dialer.Connect(host, secret)
		if err != nil {
			w.fail("Connection failed: %s", err)
			return
		}
		defer sess.Close()

		scratch := scratchDir()
		w.emit("Uploading helper scripts to %s...", scratch)
		if err := o.uploadScripts(sess, scratch); err != nil {
			o.cleanup(w, sess, scratch)
			w.fail("Upload failed: %s", err)
			return
		}

		w.emit("Running %s backup...", opts.Type)
		cmd := remoteCommand{
			dir:    scratch,
			env:    map[string]string{"BACKUP_DIR": scratch},
			script: opts.Script(),
			args:   opts.Args(),
		}
		var artifactPath string
		res, err := sess.ExecStream(ctx, cmd.String(), o.opTimeout, func(line string, stderr bool) {
			line = strings.TrimSpace(executor.StripANSI(line))
			if line == "" {
				return
			}
			if strings.HasPrefix(line, markerPrefix) {
				artifactPath = strings.TrimSpace(strings.TrimPrefix(line, markerPrefix))
			}
			pl := model.ProgressLine{Text: line, Stderr: stderr}
			if pl.IsTerminal() {
				// The stream's single sentinel is derived from the
				// exit status, not echoed from script output.
				return
			}
			w.forward(pl)
		})
		if err != nil {
			o.cleanup(w, sess, scratch, artifactPath)
			w.fail("Remote execution failed: %s", err)
			return
		}
		if !res.Success {
			o.cleanup(w, sess, scratch, artifactPath)
			w.fail("Backup failed with exit code %d", res.ExitCode)
			return
		}
		if artifactPath == "" {
			// Exit 0 without a marker line is ambiguous success, which
			// is treated as failure.
			o.cleanup(w, sess, scratch)
			w.fail("Backup script exited 0 but reported no artifact path")
			return
		}

		name := path.Base(artifactPath)
		localPath := filepath.Join(o.artifactsDir, name)
		w.emit("Downloading %s...", name)
		if err := sess.Download(artifactPath, localPath); err != nil {
			o.cleanup(w, sess, scratch, artifactPath)
			w.fail("Download failed: %s", err)
			return
		}

		o.cleanup(w, sess, scratch, artifactPath)
		result = metrics.ResultSuccess
		w.done("Backup completed: %s", name)
	}()
	return out
}

// Restore runs the remote restore workflow, pushing a local artifact to the
// host and replaying it there. Same streaming contract as Backup.
func (o *Orchestrator) Restore(ctx context.Context, hostID string, opts executor.RestoreOptions) <-chan model.ProgressLine {
	out := make(chan model.ProgressLine)
	go func() {
		defer close(out)
		start := time.Now()
		result := metrics.ResultFailure
		defer func() { metrics.ObserveOperation("restore", result, time.Since(start)) }()

		w := &workflow{out: out, logger: o.logger.With().Str("host_id", hostID).Logger()}

		if err := opts.Validate(); err != nil {
			w.fail("%s", err)
			return
		}
		archivePath := filepath.Join(o.artifactsDir, opts.Archive)
		info, err := os.Stat(archivePath)
		if err != nil {
			w.fail("Backup not found: %s", opts.Archive)
			return
		}
		if info.IsDir() {
			w.fail("Backup %s is a directory and cannot be pushed to a remote host", opts.Archive)
			return
		}

		host, secret, ok := o.resolve(w, hostID)
		if !ok {
			return
		}

		w.emit("Connecting to %s (%s)...", host.Name, host.Host)
		sess, err := o.dialer.Connect(host, secret)
		if err != nil {
			w.fail("Connection failed: %s", err)
			return
		}
		defer sess.Close()

		scratch := scratchDir()
		w.emit("Uploading %s and helper scripts to %s...", opts.Archive, scratch)
		if err := o.uploadScripts(sess, scratch); err != nil {
			o.cleanup(w, sess, scratch)
			w.fail("Upload failed: %s", err)
			return
		}
		if err := sess.Upload(archivePath, path.Join(scratch, opts.Archive)); err != nil {
			o.cleanup(w, sess, scratch)
			w.fail("Upload failed: %s", err)
			return
		}

		w.emit("Running %s restore...", opts.Type)
		cmd := remoteCommand{
			dir:        scratch,
			env:        map[string]string{"BACKUP_DIR": scratch},
			script:     opts.Script(),
			args:       opts.Args(),
			confirmYes: true,
		}
		res, err := sess.ExecStream(ctx, cmd.String(), o.opTimeout, func(line string, stderr bool) {
			line = strings.TrimSpace(executor.StripANSI(line))
			if line == "" {
				return
			}
			pl := model.ProgressLine{Text: line, Stderr: stderr}
			if pl.IsTerminal() {
				return
			}
			w.forward(pl)
		})
		if err != nil {
			o.cleanup(w, sess, scratch)
			w.fail("Remote execution failed: %s", err)
			return
		}
		if !res.Success {
			o.cleanup(w, sess, scratch)
			w.fail("Restore failed with exit code %d", res.ExitCode)
			return
		}

		o.cleanup(w, sess, scratch)
		result = metrics.ResultSuccess
		w.done("Restore completed: %s", opts.Archive)
	}()
	return out
}

// resolve loads the host record and its secret for a workflow, reporting
// failure on the progress stream.
func (o *Orchestrator) resolve(w *workflow, hostID string) (model.Host, model.Secret, bool) {
	host, secret, err := o.resolveHost(hostID)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			w.fail("Host not found: %s", hostID)
		} else {
			w.fail("Resolving host %s: %s", hostID, err)
		}
		return model.Host{}, model.Secret{}, false
	}
	return host, secret, true
}

// resolveHost loads the host record and its secret. A missing or
// undecryptable secret resolves to the zero value; the transport reports the
// precise missing field when building its auth method.
func (o *Orchestrator) resolveHost(hostID string) (model.Host, model.Secret, error) {
	summary, err := o.hosts.Get(hostID)
	if err != nil {
		return model.Host{}, model.Secret{}, err
	}
	secret, _ := o.secrets.Get(hostID)
	return summary.Host, secret, nil
}

// uploadScripts pushes every helper script into the remote scratch directory,
// normalizing line endings on the way.
func (o *Orchestrator) uploadScripts(sess Session, scratch string) error {
	entries, err := os.ReadDir(o.scriptsDir)
	if err != nil {
		return fmt.Errorf("read scripts dir: %w", err)
	}
	uploaded := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sh") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(o.scriptsDir, e.Name()))
		if err != nil {
			return fmt.Errorf("read script %s: %w", e.Name(), err)
		}
		if err := sess.UploadBytes(normalizeLineEndings(data), path.Join(scratch, e.Name())); err != nil {
			return fmt.Errorf("upload script %s: %w", e.Name(), err)
		}
		uploaded++
	}
	if uploaded == 0 {
		return fmt.Errorf("no helper scripts found in %s", o.scriptsDir)
	}
	return nil
}

// cleanup removes the scratch directory and any remote artifact copy. Always
// best-effort: failures are logged and reported as plain progress lines,
// never promoted to workflow failure. Runs on its own context so a canceled
// workflow still cleans up.
func (o *Orchestrator) cleanup(w *workflow, sess Session, scratch string, extra ...string) {
	targets := []string{scratch}
	for _, p := range extra {
		if p != "" && !strings.HasPrefix(p, scratch+"/") {
			targets = append(targets, p)
		}
	}
	quoted := make([]string, len(targets))
	for i, t := range targets {
		quoted[i] = shellQuote(t)
	}
	cmd := "rm -rf " + strings.Join(quoted, " ")

	res, err := sess.Exec(context.Background(), cmd, o.cmdTimeout)
	if err != nil || !res.Success {
		w.logger.Warn().Err(err).Str("command", cmd).Msg("remote cleanup failed")
		w.emit("Cleanup of remote files failed (ignored)")
		return
	}
	w.emit("Cleaned up remote files")
}

func scratchDir() string {
	return "/tmp/backhaul-" + platform.NewID()[:8]
}

// workflow wraps the progress channel with the line vocabulary shared by
// both workflows.
type workflow struct {
	out    chan<- model.ProgressLine
	logger zerolog.Logger
}

func (w *workflow) emit(format string, a ...any) {
	w.out <- model.ProgressLine{Text: fmt.Sprintf(format, a...)}
}

func (w *workflow) forward(pl model.ProgressLine) {
	w.out <- pl
}

func (w *workflow) fail(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	w.logger.Error().Msg(msg)
	w.out <- model.ProgressLine{Text: model.SentinelError + ": " + msg}
}

func (w *workflow) done(format string, a ...any) {
	w.out <- model.ProgressLine{Text: model.SentinelSuccess + ": " + fmt.Sprintf(format, a...)}
}
