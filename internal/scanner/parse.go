package scanner

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/productdevbook/whichport/internal/listener"
)

// Format identifies the textual layout of a tool's output
type Format int

const (
	// FormatLsof is lsof's field output (-F): one tag-prefixed field per line
	FormatLsof Format = iota + 1
	// FormatSS is ss's socket table: one socket per line
	FormatSS
)

func (f Format) String() string {
	switch f {
	case FormatLsof:
		return "lsof"
	case FormatSS:
		return "ss"
	default:
		return "format(" + strconv.Itoa(int(f)) + ")"
	}
}

const (
	unknownCommand = "unknown"
	unknownUser    = "-"
	listenState    = "LISTEN"
)

var (
	ErrEmptyOutput   = errors.New("empty output")
	ErrNoRecords     = errors.New("no line could be parsed")
	ErrInvalidPort   = errors.New("invalid port")
	ErrTooFewFields  = errors.New("too few fields")
	errUnknownFormat = errors.New("unknown output format")
)

// LineError describes a line that was skipped during parsing
type LineError struct {
	Line  int
	Field string
	Text  string
	Err   error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %s %q: %v", e.Line, e.Field, e.Text, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// ParseError means a tool's output could not be used at all
type ParseError struct {
	Format Format
	Err    error
	Lines  []*LineError
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("parse %s output: %v", e.Format, e.Err)
	if len(e.Lines) > 0 {
		msg += fmt.Sprintf(" (%d bad lines, first %v)", len(e.Lines), e.Lines[0])
	}
	return msg
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parsed is the result of a successful parse. Skipped lists the lines that
// were dropped along the way.
type Parsed struct {
	Listeners []listener.Raw
	Skipped   []*LineError
}

// Parse turns a tool's stdout into raw listener records
func Parse(f Format, out []byte) (*Parsed, error) {
	text := string(out)
	if strings.TrimSpace(text) == "" {
		return nil, &ParseError{Format: f, Err: ErrEmptyOutput}
	}

	var (
		res        *Parsed
		candidates int
	)
	switch f {
	case FormatLsof:
		res, candidates = parseLsof(text)
	case FormatSS:
		res, candidates = parseSS(text)
	default:
		return nil, &ParseError{Format: f, Err: errUnknownFormat}
	}

	if len(res.Listeners) == 0 && candidates > 0 {
		return nil, &ParseError{Format: f, Err: ErrNoRecords, Lines: res.Skipped}
	}

	sort.SliceStable(res.Listeners, func(i, j int) bool {
		a, b := res.Listeners[i], res.Listeners[j]
		if a.Port != b.Port {
			return a.Port < b.Port
		}
		return a.PID.ID < b.PID.ID
	})

	return res, nil
}

// parseLsof reads `lsof -F` output:
//
//	p871
//	cpostgres
//	Lpostgres
//	f7
//	n127.0.0.1:5432
//
// A 'p' line opens a process set; every 'n' line inside it is one socket.
func parseLsof(text string) (*Parsed, int) {
	res := &Parsed{}
	candidates := 0

	var (
		pid       listener.PID
		command   string
		user      string
		haveLogin bool
	)

	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}

		tag, value := line[0], line[1:]
		switch tag {
		case 'p':
			pid, command, user, haveLogin = listener.NoPID, "", "", false
			if id, err := strconv.ParseUint(value, 10, 32); err == nil {
				pid = listener.SomePID(uint32(id))
			}
		case 'c':
			command = value
		case 'L':
			user = value
			haveLogin = true
		case 'u':
			if !haveLogin {
				user = value
			}
		case 'n':
			candidates++
			port, err := portFromEndpoint(value)
			if err != nil {
				res.Skipped = append(res.Skipped, &LineError{Line: i + 1, Field: "name", Text: line, Err: err})
				continue
			}
			res.Listeners = append(res.Listeners, listener.Raw{
				Port:     port,
				PID:      pid,
				Command:  orDefault(command, unknownCommand),
				User:     orDefault(user, unknownUser),
				Endpoint: value,
			})
		}
	}

	return res, candidates
}

// ss output: State Recv-Q Send-Q Local Address:Port Peer Address:Port Process
// Example: LISTEN 0 128 0.0.0.0:22 0.0.0.0:* users:(("sshd",pid=1234,fd=3))
var (
	ssPIDRegex     = regexp.MustCompile(`pid=(\d+)`)
	ssCommandRegex = regexp.MustCompile(`"([^"]+)"`)
	slashProcRegex = regexp.MustCompile(`^(\d+)/(.+)$`)
)

func parseSS(text string) (*Parsed, int) {
	res := &Parsed{}
	candidates := 0

	for i, line := range strings.Split(text, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 || fields[0] != listenState {
			continue
		}
		candidates++

		if len(fields) < 4 {
			res.Skipped = append(res.Skipped, &LineError{Line: i + 1, Field: "local address", Text: line, Err: ErrTooFewFields})
			continue
		}

		endpoint := fields[3]
		port, err := portFromEndpoint(endpoint)
		if err != nil {
			res.Skipped = append(res.Skipped, &LineError{Line: i + 1, Field: "local address", Text: line, Err: err})
			continue
		}

		var proc string
		if len(fields) > 5 {
			proc = strings.Join(fields[5:], " ")
		}
		pid, command := parseProcessDescriptor(proc)

		res.Listeners = append(res.Listeners, listener.Raw{
			Port:     port,
			PID:      pid,
			Command:  command,
			User:     unknownUser,
			Endpoint: endpoint,
		})
	}

	return res, candidates
}

// parseProcessDescriptor reads either ss's users:(("cmd",pid=N,fd=M)) blob,
// where the first process wins, or the netstat style "N/cmd".
func parseProcessDescriptor(raw string) (listener.PID, string) {
	pid, command := listener.NoPID, unknownCommand
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return pid, command
	}

	if m := slashProcRegex.FindStringSubmatch(raw); m != nil {
		if id, err := strconv.ParseUint(m[1], 10, 32); err == nil {
			return listener.SomePID(uint32(id)), m[2]
		}
	}

	if m := ssCommandRegex.FindStringSubmatch(raw); m != nil {
		command = m[1]
	}
	if m := ssPIDRegex.FindStringSubmatch(raw); m != nil {
		if id, err := strconv.ParseUint(m[1], 10, 32); err == nil {
			pid = listener.SomePID(uint32(id))
		}
	}

	return pid, command
}

// portFromEndpoint extracts the port from "addr:port". Bracketed IPv6
// literals ("[::1]:5432") are split on the closing bracket so the colons
// inside the address are ignored.
func portFromEndpoint(endpoint string) (uint16, error) {
	var raw string
	if strings.HasPrefix(endpoint, "[") {
		end := strings.Index(endpoint, "]:")
		if end < 0 {
			return 0, fmt.Errorf("%w: no port in %q", ErrInvalidPort, endpoint)
		}
		raw = endpoint[end+2:]
	} else {
		idx := strings.LastIndex(endpoint, ":")
		if idx < 0 {
			return 0, fmt.Errorf("%w: no port in %q", ErrInvalidPort, endpoint)
		}
		raw = endpoint[idx+1:]
	}

	port, err := strconv.ParseUint(raw, 10, 16)
	if err != nil || port == 0 {
		return 0, fmt.Errorf("%w: %q in %q", ErrInvalidPort, raw, endpoint)
	}
	return uint16(port), nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
