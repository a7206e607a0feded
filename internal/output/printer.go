package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/productdevbook/whichport/internal/listener"
	"github.com/productdevbook/whichport/internal/query"
	"github.com/productdevbook/whichport/internal/scanner"
)

// Printer writes query results as text or JSON
type Printer struct {
	W       io.Writer
	Verbose bool
}

type jsonOutput struct {
	Mode      query.Mode     `json:"mode"`
	Source    scanner.Source `json:"source"`
	Timestamp int64          `json:"timestamp"`
	Errors    []string       `json:"errors"`
	Results   any            `json:"results"`
}

// JSON writes the result as one JSON document
func (p Printer) JSON(res *query.Result) error {
	out := jsonOutput{
		Mode:      res.Mode,
		Source:    res.Meta.Source,
		Timestamp: res.Meta.Timestamp,
		Errors:    res.Meta.Errors,
	}
	if out.Errors == nil {
		out.Errors = []string{}
	}

	switch res.Mode {
	case query.ModeAll:
		results := res.Listeners
		if results == nil {
			results = []listener.Listener{}
		}
		out.Results = results
	default:
		results := res.Ports
		if results == nil {
			results = []query.PortReport{}
		}
		out.Results = results
	}

	enc := json.NewEncoder(p.W)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// Text writes one line per listener, or per port that nothing listens on
func (p Printer) Text(res *query.Result) error {
	var lines []string
	if p.Verbose {
		lines = append(lines, MetaLines(res.Meta)...)
	}

	switch res.Mode {
	case query.ModeAll:
		if len(res.Listeners) == 0 {
			lines = append(lines, "no listening ports found")
		}
		for _, l := range res.Listeners {
			lines = append(lines, ListenerLine(l))
		}
	default:
		for _, r := range res.Ports {
			if !r.Listening {
				lines = append(lines, fmt.Sprintf("port %d: not listening", r.Port))
				continue
			}
			for _, l := range r.Listeners {
				lines = append(lines, ListenerLine(l))
			}
		}
	}

	for _, line := range lines {
		if _, err := fmt.Fprintln(p.W, line); err != nil {
			return err
		}
	}
	return nil
}

// MetaLines describes how the data was collected
func MetaLines(meta scanner.Metadata) []string {
	lines := make([]string, 0, 3+len(meta.Errors))
	lines = append(lines, fmt.Sprintf("meta source: %s", meta.Source))
	lines = append(lines, fmt.Sprintf("meta timestamp: %d", meta.Timestamp))
	lines = append(lines, fmt.Sprintf("meta errors: %d", len(meta.Errors)))
	for _, err := range meta.Errors {
		lines = append(lines, fmt.Sprintf("meta error: %s", err))
	}
	return lines
}

// ListenerLine renders a listener as
// "port N: cmd (pid P, user U) on [ep1, ep2] | description (confidence)"
func ListenerLine(l listener.Listener) string {
	return fmt.Sprintf("port %d: %s (pid %s, user %s) on [%s] | %s (%s)",
		l.Port,
		l.Command,
		l.PID,
		l.User,
		strings.Join(l.Endpoints, ", "),
		l.Role.Description,
		l.Role.Confidence,
	)
}
