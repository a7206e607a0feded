package cmd

import (
	"errors"
	"testing"

	"github.com/productdevbook/whichport/internal/listener"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type killCall struct {
	pid   uint32
	force bool
}

func withKiller(t *testing.T, err error) *[]killCall {
	t.Helper()
	var calls []killCall
	prev := killProcess
	killProcess = func(pid uint32, force bool) error {
		calls = append(calls, killCall{pid: pid, force: force})
		return err
	}
	t.Cleanup(func() { killProcess = prev })
	return &calls
}

func TestKill(t *testing.T) {
	withCollector(t, &stubCollector{raws: sampleRaws()})
	calls := withKiller(t, nil)
	cfg := writeConfig(t, "log:\n  level: error\n")

	code, stdout, stderr := execute(t, "--config", cfg, "kill", "5432")
	require.Equal(t, exitOK, code, stderr)
	assert.Equal(t, []killCall{{pid: 871}}, *calls)
	assert.Equal(t, "Killed postgres (PID 871) on port 5432\n", stdout)
}

func TestKillForce(t *testing.T) {
	withCollector(t, &stubCollector{raws: sampleRaws()})
	calls := withKiller(t, nil)
	cfg := writeConfig(t, "log:\n  level: error\n")

	code, stdout, _ := execute(t, "--config", cfg, "kill", "-f", "5432")
	require.Equal(t, exitOK, code)
	assert.Equal(t, []killCall{{pid: 871, force: true}}, *calls)
	assert.Contains(t, stdout, "Force killed postgres")
}

func TestKillDedupesPID(t *testing.T) {
	raws := append(sampleRaws(), listener.Raw{Port: 5432, PID: listener.SomePID(871), Command: "postgres", User: "postgres", Endpoint: "*:5432"})
	withCollector(t, &stubCollector{raws: raws})
	calls := withKiller(t, nil)
	cfg := writeConfig(t, "log:\n  level: error\n")

	code, _, _ := execute(t, "--config", cfg, "kill", "5432")
	require.Equal(t, exitOK, code)
	assert.Len(t, *calls, 1)
}

func TestKillFailures(t *testing.T) {
	tests := []struct {
		name    string
		port    string
		killErr error
		want    string
	}{
		{name: "nothing listening", port: "8080", want: "no process found listening on port 8080"},
		{name: "pid unknown", port: "9999", want: "no process with a known pid listens on port 9999"},
		{name: "kill fails", port: "5432", killErr: errors.New("operation not permitted"), want: "failed to kill process 871: operation not permitted"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withCollector(t, &stubCollector{raws: sampleRaws()})
			withKiller(t, tt.killErr)
			cfg := writeConfig(t, "log:\n  level: error\n")

			code, _, stderr := execute(t, "--config", cfg, "kill", tt.port)
			assert.Equal(t, exitFailure, code)
			assert.Contains(t, stderr, tt.want)
		})
	}
}
