package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/cwarner/backhaul/internal/model"
)

// TestConnection opens a session to the host and runs a trivial command,
// proving both authentication and command execution work.
func (o *Orchestrator) TestConnection(ctx context.Context, hostID string) (model.CommandResult, error) {
	return o.RunCommand(ctx, hostID, `echo "Connection successful"`)
}

// ListInstances returns the names of containers on the host whose name
// matches the configured instance filter.
func (o *Orchestrator) ListInstances(ctx context.Context, hostID string) ([]string, error) {
	command := fmt.Sprintf("docker ps --format '{{.Names}}' | grep -i %s || true", shellQuote(o.instanceFilter))

	res, err := o.RunCommand(ctx, hostID, command)
	if err != nil {
		return nil, err
	}
	if !res.Success {
		return nil, fmt.Errorf("listing instances exited %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
	}

	var instances []string
	for _, line := range strings.Split(res.Stdout, "\n") {
		if name := strings.TrimSpace(line); name != "" {
			instances = append(instances, name)
		}
	}
	return instances, nil
}

// RunCommand executes one ad hoc command on the host and returns its
// captured result. The session lives only for this call.
func (o *Orchestrator) RunCommand(ctx context.Context, hostID string, command string) (model.CommandResult, error) {
	host, secret, err := o.resolveHost(hostID)
	if err != nil {
		return model.CommandResult{}, err
	}

	sess, err := o.dialer.Connect(host, secret)
	if err != nil {
		return model.CommandResult{}, fmt.Errorf("connect: %w", err)
	}
	defer sess.Close()

	return sess.Exec(ctx, command, o.cmdTimeout)
}
