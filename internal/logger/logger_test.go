package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/productdevbook/whichport/internal/config"
	"github.com/productdevbook/whichport/internal/scanner"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/natefinch/lumberjack.v2"
)

func TestNewStderrJSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := newWithStderr(config.LogConfig{Level: "debug", Format: "json", Output: "stderr"}, &buf)
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())

	log.WithField("source", "ss").Debug("collecting listeners")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "collecting listeners", entry["msg"])
	assert.Equal(t, "ss", entry["source"])
	assert.Equal(t, "debug", entry["level"])
}

func TestNewLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log, err := newWithStderr(config.LogConfig{Level: "warn", Format: "text"}, &buf)
	require.NoError(t, err)

	log.Info("hidden")
	assert.Empty(t, buf.String())

	log.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestNewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "whichport.log")
	log, err := New(config.LogConfig{Level: "info", Format: "text", Output: "file", File: path, MaxSize: 1})
	require.NoError(t, err)

	lj, ok := log.Out.(*lumberjack.Logger)
	require.True(t, ok)
	assert.Equal(t, path, lj.Filename)

	log.Info("written")
	require.NoError(t, lj.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written")
}

func TestNewErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.LogConfig
	}{
		{"bad level", config.LogConfig{Level: "loud"}},
		{"bad format", config.LogConfig{Level: "info", Format: "xml"}},
		{"bad output", config.LogConfig{Level: "info", Output: "syslog"}},
		{"file without path", config.LogConfig{Level: "info", Output: "file"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			assert.Error(t, err)
		})
	}
}

// toolRunner answers for lsof only; every other tool is missing
type toolRunner struct{}

func (toolRunner) Run(name string, args ...string) ([]byte, error) {
	if name == "lsof" {
		return []byte("p871\ncpostgres\nLpostgres\nn127.0.0.1:5432\n"), nil
	}
	return nil, &scanner.CommandError{Command: name, Err: exec.ErrNotFound}
}

func TestDefaultLevelKeepsFallbackQuiet(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, err := config.NewLoader("").Load()
	require.NoError(t, err)

	var stderr bytes.Buffer
	log, err := newWithStderr(cfg.Log, &stderr)
	require.NoError(t, err)

	s := scanner.New([]scanner.Candidate{scanner.SS(toolRunner{}), scanner.Lsof(toolRunner{})}, log)
	raws, meta, err := s.Collect()
	require.NoError(t, err)

	assert.Len(t, raws, 1)
	assert.Equal(t, scanner.SourceLsof, meta.Source)
	assert.Len(t, meta.Errors, 1)
	assert.Empty(t, stderr.String())
}
