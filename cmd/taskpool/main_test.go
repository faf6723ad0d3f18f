package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd, err := newRootCmd()
	require.NoError(t, err)

	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)

	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestRootCmd_RunsWorkload(t *testing.T) {
	out, logs, err := execute(t, "--workers=3", "-n", "12", "-p", "2", "--task-duration=1ms", "--name=cli")

	require.NoError(t, err)
	assert.Contains(t, out, "submitted=12")
	assert.Contains(t, out, "executed=12")
	assert.Contains(t, logs, "task done")
	assert.Contains(t, logs, "pool=cli")
	assert.Contains(t, logs, "thread pool shut down")
}

func TestRootCmd_JSONLogs(t *testing.T) {
	_, logs, err := execute(t, "-n", "1", "--task-duration=0s", "--log-format=json", "--log-severity=warning")

	require.NoError(t, err)
	assert.NotContains(t, logs, "task done")
}

func TestRootCmd_InvalidConfig(t *testing.T) {
	_, _, err := execute(t, "--workers=0")

	assert.ErrorContains(t, err, "pool.workers must be positive")
}

func TestConfigCmd_PrintsEffectiveConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taskpool.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pool:\n  workers: 7\n"), 0o600))

	out, _, err := execute(t, "config", "--config-file", path, "--tasks=3")

	require.NoError(t, err)
	assert.Contains(t, out, "workers: 7")
	assert.Contains(t, out, "tasks: 3")
	assert.Contains(t, out, "task-duration: 500ms")
}
