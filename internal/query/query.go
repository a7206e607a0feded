package query

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/productdevbook/whichport/internal/listener"
	"github.com/productdevbook/whichport/internal/role"
	"github.com/productdevbook/whichport/internal/scanner"
)

const (
	minPort = 1
	maxPort = 65535
)

// ErrNoPorts is returned when neither ports nor "all" were requested
var ErrNoPorts = &ValidationError{Reason: "no ports specified and --all not provided"}

// ValidationError reports a bad request. It is raised before anything is
// collected.
type ValidationError struct {
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return e.Reason
	}
	return fmt.Sprintf("invalid port %s: %s", e.Value, e.Reason)
}

// ParsePort converts a command-line argument into a port number
func ParsePort(s string) (int, error) {
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return 0, &ValidationError{Value: s, Reason: fmt.Sprintf("must be between %d and %d", minPort, maxPort)}
		}
		return 0, &ValidationError{Value: strconv.Quote(s), Reason: "not a number"}
	}
	port := int(n)
	if err := validatePort(port); err != nil {
		return 0, err
	}
	return port, nil
}

func validatePort(port int) error {
	if port == 0 {
		return &ValidationError{Value: "0", Reason: "port 0 is reserved and cannot be queried"}
	}
	if port < minPort || port > maxPort {
		return &ValidationError{Value: strconv.Itoa(port), Reason: fmt.Sprintf("must be between %d and %d", minPort, maxPort)}
	}
	return nil
}

// Mode tells which shape a result has
type Mode string

const (
	ModePorts Mode = "ports"
	ModeAll   Mode = "all"
)

// Request asks either for specific ports, in order, or for everything
type Request struct {
	Ports []int
	All   bool
}

// Validate checks the request without touching the system
func (r Request) Validate() error {
	if !r.All && len(r.Ports) == 0 {
		return ErrNoPorts
	}
	for _, p := range r.Ports {
		if err := validatePort(p); err != nil {
			return err
		}
	}
	return nil
}

// PortReport answers "is anything listening on this port"
type PortReport struct {
	Port      uint16              `json:"port"`
	Listening bool                `json:"listening"`
	Listeners []listener.Listener `json:"listeners"`
}

// Result is built once per query and not modified afterwards
type Result struct {
	Mode      Mode
	Meta      scanner.Metadata
	Ports     []PortReport
	Listeners []listener.Listener
}

// Collector is the part of the scanner the engine depends on
type Collector interface {
	Collect() ([]listener.Raw, scanner.Metadata, error)
}

// Engine answers queries against the local socket table
type Engine struct {
	collector Collector
	roles     role.Table
}

// New returns an engine that collects with c and infers roles from roles
func New(c Collector, roles role.Table) *Engine {
	return &Engine{collector: c, roles: roles}
}

// Query validates the request, collects, aggregates and infers roles
func (e *Engine) Query(req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	raws, meta, err := e.collector.Collect()
	if err != nil {
		return nil, fmt.Errorf("collect listeners: %w", err)
	}

	listeners := listener.Aggregate(raws)
	for i := range listeners {
		listeners[i].Role = e.roles.Infer(listeners[i].Port, listeners[i].Command)
	}

	if req.All {
		return &Result{Mode: ModeAll, Meta: meta, Listeners: listeners}, nil
	}

	reports := make([]PortReport, 0, len(req.Ports))
	for _, p := range req.Ports {
		port := uint16(p)
		matches := []listener.Listener{}
		for _, l := range listeners {
			if l.Port == port {
				matches = append(matches, l)
			}
		}
		reports = append(reports, PortReport{
			Port:      port,
			Listening: len(matches) > 0,
			Listeners: matches,
		})
	}

	return &Result{Mode: ModePorts, Meta: meta, Ports: reports}, nil
}

// IsValidation reports whether err is a request validation failure
func IsValidation(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}
