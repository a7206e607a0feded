package role

import (
	"fmt"
	"strings"
)

// Confidence is the coarse trust level attached to an inferred role
type Confidence int

const (
	Medium Confidence = iota
	High
)

func (c Confidence) String() string {
	switch c {
	case High:
		return "high"
	default:
		return "medium"
	}
}

// MarshalText renders the confidence as "high" or "medium"
func (c Confidence) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText accepts "high" or "medium" in any case
func (c *Confidence) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "high":
		*c = High
	case "medium":
		*c = Medium
	default:
		return fmt.Errorf("unknown confidence: %q", text)
	}
	return nil
}

// Role is a human-readable guess at what a listener is for
type Role struct {
	Description string     `json:"description"`
	Confidence  Confidence `json:"confidence"`
}

// Unknown is returned when no table entry matches
var Unknown = Role{Description: "Unknown application service", Confidence: Medium}

// CommandRule matches a process name by case-insensitive substring
type CommandRule struct {
	Pattern     string
	Description string
}

// PortRule matches an exact port number
type PortRule struct {
	Port        uint16
	Description string
}

// Table holds the lookup rules. It is a plain value: build it once and pass
// it to whoever needs to infer roles.
type Table struct {
	Commands []CommandRule
	Ports    []PortRule
}

// Default returns the built-in rules
func Default() Table {
	return Table{
		Commands: []CommandRule{
			{Pattern: "postgres", Description: "PostgreSQL database"},
			{Pattern: "redis", Description: "Redis cache or message broker"},
			{Pattern: "nginx", Description: "Web server or reverse proxy"},
			{Pattern: "docker", Description: "Container runtime backend"},
			{Pattern: "ollama", Description: "Local LLM serving runtime"},
			{Pattern: "rustrover", Description: "IDE or developer tooling service"},
			{Pattern: "jetbrains", Description: "IDE or developer tooling service"},
			{Pattern: "toolbox", Description: "IDE or developer tooling service"},
			{Pattern: "raycast", Description: "Productivity launcher local service"},
			{Pattern: "adobe", Description: "Adobe desktop background service"},
			{Pattern: "node", Description: "Node.js application server"},
		},
		Ports: []PortRule{
			{Port: 22, Description: "SSH service"},
			{Port: 80, Description: "HTTP web service"},
			{Port: 443, Description: "HTTPS web service"},
			{Port: 3306, Description: "MySQL database"},
			{Port: 5432, Description: "PostgreSQL database"},
			{Port: 6379, Description: "Redis cache or message broker"},
		},
	}
}

// Extend returns a new table where extra rules are checked before the
// receiver's own. Neither input is modified.
func (t Table) Extend(extra Table) Table {
	out := Table{
		Commands: make([]CommandRule, 0, len(extra.Commands)+len(t.Commands)),
		Ports:    make([]PortRule, 0, len(extra.Ports)+len(t.Ports)),
	}
	out.Commands = append(append(out.Commands, extra.Commands...), t.Commands...)
	out.Ports = append(append(out.Ports, extra.Ports...), t.Ports...)
	return out
}

// Infer maps a port and command name to a role. Command rules win over port
// rules; within a tier the first matching entry wins.
func (t Table) Infer(port uint16, command string) Role {
	cmd := strings.ToLower(command)

	for _, rule := range t.Commands {
		if rule.Pattern == "" {
			continue
		}
		if strings.Contains(cmd, strings.ToLower(rule.Pattern)) {
			return Role{Description: rule.Description, Confidence: High}
		}
	}

	for _, rule := range t.Ports {
		if rule.Port == port {
			return Role{Description: rule.Description, Confidence: High}
		}
	}

	return Unknown
}
