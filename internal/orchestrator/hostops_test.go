package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwarner/backhaul/internal/model"
	"github.com/cwarner/backhaul/internal/registry"
)

func TestTestConnection(t *testing.T) {
	sess := newFakeSession()
	d := &fakeDialer{sess: sess}
	o, _ := newTestOrchestrator(t, d)

	res, err := o.TestConnection(context.Background(), "h1")
	require.NoError(t, err)
	assert.True(t, res.Success)
	require.Len(t, sess.execCmds, 1)
	assert.Contains(t, sess.execCmds[0], "Connection successful")
	assert.True(t, sess.closed)
}

func TestTestConnection_UnknownHost(t *testing.T) {
	d := &fakeDialer{sess: newFakeSession()}
	o, _ := newTestOrchestrator(t, d)

	_, err := o.TestConnection(context.Background(), "ghost")
	assert.ErrorIs(t, err, registry.ErrNotFound)
	assert.Zero(t, d.dialed)
}

func TestListInstances_ParsesNames(t *testing.T) {
	sess := newFakeSession()
	sess.execResult = &model.CommandResult{Success: true, Stdout: "n8n-main\nn8n-staging\n\n"}
	d := &fakeDialer{sess: sess}
	o, _ := newTestOrchestrator(t, d)

	instances, err := o.ListInstances(context.Background(), "h1")
	require.NoError(t, err)
	assert.Equal(t, []string{"n8n-main", "n8n-staging"}, instances)
	assert.Contains(t, sess.execCmds[0], "docker ps")
}

func TestListInstances_NoneFound(t *testing.T) {
	sess := newFakeSession()
	sess.execResult = &model.CommandResult{Success: true, Stdout: "\n"}
	d := &fakeDialer{sess: sess}
	o, _ := newTestOrchestrator(t, d)

	instances, err := o.ListInstances(context.Background(), "h1")
	require.NoError(t, err)
	assert.Empty(t, instances)
}

func TestRunCommand_ClosesSession(t *testing.T) {
	sess := newFakeSession()
	d := &fakeDialer{sess: sess}
	o, _ := newTestOrchestrator(t, d)

	_, err := o.RunCommand(context.Background(), "h1", "uptime")
	require.NoError(t, err)
	assert.True(t, sess.closed)
}
