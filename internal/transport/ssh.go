// Package transport opens authenticated SSH sessions to remote hosts and
// exposes command execution with timeout and exit-status capture plus
// whole-file transfer over SFTP. One Session is scoped to a single workflow
// invocation and must be closed on every exit path.
package transport

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
	"golang.org/x/sync/errgroup"

	"github.com/cwarner/backhaul/internal/model"
)

// Dialer establishes SSH sessions with a bounded connection timeout.
type Dialer struct {
	connectTimeout time.Duration
	logger         zerolog.Logger
}

// NewDialer creates a Dialer. connectTimeout bounds connection
// establishment only; each command carries its own execution timeout.
func NewDialer(connectTimeout time.Duration, logger zerolog.Logger) *Dialer {
	return &Dialer{
		connectTimeout: connectTimeout,
		logger:         logger.With().Str("component", "transport").Logger(),
	}
}

// Connect opens an authenticated session to the host, selecting password or
// key-file material per the host's declared auth mode.
func (d *Dialer) Connect(host model.Host, secret model.Secret) (*Session, error) {
	auth, err := authMethod(host, secret)
	if err != nil {
		return nil, err
	}

	cfg := &ssh.ClientConfig{
		User: host.Username,
		Auth: []ssh.AuthMethod{auth},
		// Trust-on-first-contact: new hosts are accepted without
		// verification. A usability/security trade-off, not a defense
		// against active network attackers.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         d.connectTimeout,
	}

	addr := net.JoinHostPort(host.Host, strconv.Itoa(host.Port))
	client, err := ssh.Dial("tcp", addr, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", addr, err)
	}

	d.logger.Debug().Str("addr", addr).Str("user", host.Username).Msg("SSH session established")
	return &Session{client: client, logger: d.logger}, nil
}

func authMethod(host model.Host, secret model.Secret) (ssh.AuthMethod, error) {
	switch host.AuthType {
	case model.AuthTypeKey:
		if secret.KeyPath == "" {
			return nil, fmt.Errorf("host %s uses key auth but no key path is stored", host.ID)
		}
		pemBytes, err := os.ReadFile(secret.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("read key file: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(pemBytes)
		if err != nil {
			return nil, fmt.Errorf("parse key file %s: %w", secret.KeyPath, err)
		}
		return ssh.PublicKeys(signer), nil
	case model.AuthTypePassword, "":
		if secret.Password == "" {
			return nil, fmt.Errorf("host %s uses password auth but no password is stored", host.ID)
		}
		return ssh.Password(secret.Password), nil
	default:
		return nil, fmt.Errorf("unknown auth type %q", host.AuthType)
	}
}

// Session is one authenticated SSH connection.
type Session struct {
	client *ssh.Client
	logger zerolog.Logger
}

// Exec runs one shell command line and returns its captured output and exit
// status. The error return covers transport-level failures and timeouts;
// a nonzero exit status is reported through the result, not the error.
func (s *Session) Exec(ctx context.Context, command string, timeout time.Duration) (model.CommandResult, error) {
	return s.ExecStream(ctx, command, timeout, nil)
}

// ExecStream is Exec with a line callback invoked for each output line as it
// arrives. Callback invocations are serialized; stderr lines are flagged.
func (s *Session) ExecStream(ctx context.Context, command string, timeout time.Duration, onLine func(line string, stderr bool)) (model.CommandResult, error) {
	sess, err := s.client.NewSession()
	if err != nil {
		return model.CommandResult{}, fmt.Errorf("open exec channel: %w", err)
	}
	defer sess.Close()

	stdout, err := sess.StdoutPipe()
	if err != nil {
		return model.CommandResult{}, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := sess.StderrPipe()
	if err != nil {
		return model.CommandResult{}, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := sess.Start(command); err != nil {
		return model.CommandResult{}, fmt.Errorf("start remote command: %w", err)
	}

	var mu sync.Mutex
	var outBuf, errBuf strings.Builder
	collect := func(r io.Reader, buf *strings.Builder, isStderr bool) func() error {
		return func() error {
			scanner := bufio.NewScanner(r)
			scanner.Buffer(make([]byte, 64*1024), 1024*1024)
			for scanner.Scan() {
				line := scanner.Text()
				mu.Lock()
				buf.WriteString(line)
				buf.WriteByte('\n')
				if onLine != nil {
					onLine(line, isStderr)
				}
				mu.Unlock()
			}
			return scanner.Err()
		}
	}

	g := new(errgroup.Group)
	g.Go(collect(stdout, &outBuf, false))
	g.Go(collect(stderr, &errBuf, true))

	done := make(chan error, 1)
	go func() {
		scanErr := g.Wait()
		waitErr := sess.Wait()
		if waitErr == nil {
			waitErr = scanErr
		}
		done <- waitErr
	}()

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case err := <-done:
		result := model.CommandResult{Stdout: outBuf.String(), Stderr: errBuf.String()}
		switch e := err.(type) {
		case nil:
			result.Success = true
		case *ssh.ExitError:
			result.ExitCode = e.ExitStatus()
		case *ssh.ExitMissingError:
			result.ExitCode = -1
		default:
			return result, fmt.Errorf("remote command failed: %w", err)
		}
		return result, nil
	case <-execCtx.Done():
		_ = sess.Signal(ssh.SIGKILL)
		mu.Lock()
		result := model.CommandResult{ExitCode: -1, Stdout: outBuf.String(), Stderr: errBuf.String()}
		mu.Unlock()
		if ctx.Err() != nil {
			return result, fmt.Errorf("remote command canceled: %w", ctx.Err())
		}
		return result, fmt.Errorf("remote command timed out after %s", timeout)
	}
}

// Upload copies a local file to the remote host over SFTP.
func (s *Session) Upload(localPath, remotePath string) error {
	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open local file: %w", err)
	}
	defer src.Close()

	return s.uploadFrom(src, remotePath)
}

// UploadBytes writes data to a remote file over SFTP. Used for helper
// scripts that are normalized in memory before upload.
func (s *Session) UploadBytes(data []byte, remotePath string) error {
	return s.uploadFrom(strings.NewReader(string(data)), remotePath)
}

func (s *Session) uploadFrom(src io.Reader, remotePath string) error {
	ftp, err := sftp.NewClient(s.client)
	if err != nil {
		return fmt.Errorf("open sftp: %w", err)
	}
	defer ftp.Close()

	if dir := remoteDir(remotePath); dir != "" && dir != "." && dir != "/" {
		_ = ftp.MkdirAll(dir)
	}

	dst, err := ftp.Create(remotePath)
	if err != nil {
		return fmt.Errorf("create remote file %s: %w", remotePath, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("upload to %s: %w", remotePath, err)
	}
	return nil
}

// Download copies a remote file into the local filesystem, creating missing
// parent directories.
func (s *Session) Download(remotePath, localPath string) error {
	ftp, err := sftp.NewClient(s.client)
	if err != nil {
		return fmt.Errorf("open sftp: %w", err)
	}
	defer ftp.Close()

	src, err := ftp.Open(remotePath)
	if err != nil {
		return fmt.Errorf("open remote file %s: %w", remotePath, err)
	}
	defer src.Close()

	if err := copyToLocal(src, localPath); err != nil {
		return fmt.Errorf("download %s: %w", remotePath, err)
	}
	return nil
}

// copyToLocal writes src to localPath, creating missing parent directories.
// A failed copy removes the partial file: a truncated artifact must not
// linger where the store would list it as a valid backup.
func copyToLocal(src io.Reader, localPath string) error {
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return fmt.Errorf("create local dir: %w", err)
	}

	dst, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("create local file: %w", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(localPath)
		return err
	}
	return dst.Close()
}

// Close releases the underlying connection. Always invoked on every exit
// path; a leaked session is a correctness bug.
func (s *Session) Close() error {
	return s.client.Close()
}

// remoteDir is filepath.Dir for remote POSIX paths regardless of the local OS.
func remoteDir(p string) string {
	idx := strings.LastIndexByte(p, '/')
	if idx <= 0 {
		return ""
	}
	return p[:idx]
}
