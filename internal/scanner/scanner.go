package scanner

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Source names the tool that produced a listener list
type Source string

const (
	SourceSS       Source = "ss"
	SourceLsof     Source = "lsof"
	SourceGopsutil Source = "gopsutil"
)

// Fixed argument lists. Both ask for numeric, listening-only TCP sockets
// together with the owning process.
var (
	lsofArgs = []string{"-nP", "-iTCP", "-sTCP:LISTEN", "-FpcLnTu"}
	ssArgs   = []string{"-lntpH"}
)

// Metadata describes how a listener list was collected
type Metadata struct {
	Source    Source   `json:"source"`
	Timestamp int64    `json:"timestamp"`
	Errors    []string `json:"errors"`
}

// Candidate is one way of listing listeners. Candidates are tried in order
// until one succeeds.
type Candidate interface {
	Source() Source
	Collect() (*Parsed, error)
}

// Runner runs an external tool and returns its stdout
type Runner interface {
	Run(name string, args ...string) ([]byte, error)
}

// CommandError reports a tool that could not be started or exited non-zero
type CommandError struct {
	Command  string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	if e.ExitCode > 0 {
		if e.Stderr == "" {
			return fmt.Sprintf("%s exited with status %d", e.Command, e.ExitCode)
		}
		return fmt.Sprintf("%s exited with status %d: %s", e.Command, e.ExitCode, e.Stderr)
	}
	return fmt.Sprintf("failed to run %s: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ExecRunner runs tools with os/exec
type ExecRunner struct{}

func (ExecRunner) Run(name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.Command(name, args...)
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		cerr := &CommandError{Command: name, Err: err}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			cerr.ExitCode = exitErr.ExitCode()
			cerr.Stderr = strings.TrimSpace(stderr.String())
		}
		return nil, cerr
	}
	return out, nil
}

// toolSource runs an external tool and parses its stdout
type toolSource struct {
	source Source
	format Format
	name   string
	args   []string
	runner Runner
}

func (t *toolSource) Source() Source {
	return t.source
}

func (t *toolSource) Collect() (*Parsed, error) {
	out, err := t.runner.Run(t.name, t.args...)
	if err != nil {
		return nil, err
	}
	return Parse(t.format, out)
}

// SS returns the candidate that runs ss
func SS(r Runner) Candidate {
	return &toolSource{source: SourceSS, format: FormatSS, name: "ss", args: ssArgs, runner: r}
}

// Lsof returns the candidate that runs lsof
func Lsof(r Runner) Candidate {
	return &toolSource{source: SourceLsof, format: FormatLsof, name: "lsof", args: lsofArgs, runner: r}
}

