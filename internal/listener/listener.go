package listener

import (
	"encoding/json"
	"strconv"

	"github.com/productdevbook/whichport/internal/role"
)

// PID is a process id that a tool may fail to report
type PID struct {
	ID    uint32
	Known bool
}

// NoPID is the zero value: no process id reported
var NoPID = PID{}

// SomePID wraps a reported process id
func SomePID(id uint32) PID {
	return PID{ID: id, Known: true}
}

// String renders the pid, or "none" when it was not reported
func (p PID) String() string {
	if !p.Known {
		return "none"
	}
	return strconv.FormatUint(uint64(p.ID), 10)
}

func (p PID) MarshalJSON() ([]byte, error) {
	if !p.Known {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatUint(uint64(p.ID), 10)), nil
}

func (p *PID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*p = NoPID
		return nil
	}
	var id uint32
	if err := json.Unmarshal(data, &id); err != nil {
		return err
	}
	*p = SomePID(id)
	return nil
}

// Raw is one socket binding as reported by a tool
type Raw struct {
	Port     uint16
	PID      PID
	Command  string
	User     string
	Endpoint string
}

// Key is the identity of a logical listener
type Key struct {
	Port    uint16
	PID     PID
	Command string
	User    string
}

// Key returns the identity the record is grouped under
func (r Raw) Key() Key {
	return Key{Port: r.Port, PID: r.PID, Command: r.Command, User: r.User}
}

// Listener is a logical listener with every endpoint it is bound to
type Listener struct {
	Port      uint16
	PID       PID
	Command   string
	User      string
	Endpoints []string
	Role      role.Role
}

// Key returns the identity of the listener
func (l Listener) Key() Key {
	return Key{Port: l.Port, PID: l.PID, Command: l.Command, User: l.User}
}

// Endpoint returns the representative (first seen) endpoint
func (l Listener) Endpoint() string {
	if len(l.Endpoints) == 0 {
		return ""
	}
	return l.Endpoints[0]
}

type listenerJSON struct {
	Port      uint16    `json:"port"`
	PID       PID       `json:"pid"`
	Command   string    `json:"command"`
	User      string    `json:"user"`
	Endpoint  string    `json:"endpoint"`
	Endpoints []string  `json:"endpoints"`
	Role      role.Role `json:"role"`
}

// MarshalJSON keeps the single "endpoint" field next to the full list so
// consumers of the older single-endpoint shape keep working.
func (l Listener) MarshalJSON() ([]byte, error) {
	endpoints := l.Endpoints
	if endpoints == nil {
		endpoints = []string{}
	}
	return json.Marshal(listenerJSON{
		Port:      l.Port,
		PID:       l.PID,
		Command:   l.Command,
		User:      l.User,
		Endpoint:  l.Endpoint(),
		Endpoints: endpoints,
		Role:      l.Role,
	})
}
