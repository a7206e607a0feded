package scanner

import (
	"fmt"
	"net"
	"strconv"

	"github.com/productdevbook/whichport/internal/listener"
	psnet "github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"
)

// nativeSource reads the socket table in-process. It is the last resort when
// no external tool is usable, and the only source on platforms without one.
type nativeSource struct {
	connections func() ([]psnet.ConnectionStat, error)
	lookup      func(pid int32) (command, user string)
}

// Native returns the gopsutil-backed candidate
func Native() Candidate {
	return &nativeSource{
		connections: func() ([]psnet.ConnectionStat, error) {
			return psnet.Connections("tcp")
		},
		lookup: lookupProcess,
	}
}

func (n *nativeSource) Source() Source {
	return SourceGopsutil
}

func (n *nativeSource) Collect() (*Parsed, error) {
	conns, err := n.connections()
	if err != nil {
		return nil, fmt.Errorf("gopsutil: list connections: %w", err)
	}
	return &Parsed{Listeners: listenersFromConnections(conns, n.lookup)}, nil
}

func listenersFromConnections(conns []psnet.ConnectionStat, lookup func(int32) (string, string)) []listener.Raw {
	type owner struct{ command, user string }
	owners := make(map[int32]owner)

	var out []listener.Raw
	for _, c := range conns {
		if c.Status != listenState || c.Laddr.Port == 0 || c.Laddr.Port > 65535 {
			continue
		}

		pid := listener.NoPID
		o := owner{command: unknownCommand, user: unknownUser}
		if c.Pid > 0 {
			pid = listener.SomePID(uint32(c.Pid))
			cached, ok := owners[c.Pid]
			if !ok {
				cmd, user := lookup(c.Pid)
				cached = owner{command: orDefault(cmd, unknownCommand), user: orDefault(user, unknownUser)}
				owners[c.Pid] = cached
			}
			o = cached
		}

		out = append(out, listener.Raw{
			Port:     uint16(c.Laddr.Port),
			PID:      pid,
			Command:  o.command,
			User:     o.user,
			Endpoint: formatEndpoint(c.Laddr.IP, c.Laddr.Port),
		})
	}
	return out
}

// formatEndpoint renders an address the way lsof and ss do: "*" for an
// unspecified host and brackets around IPv6 literals.
func formatEndpoint(ip string, port uint32) string {
	if ip == "" {
		ip = "*"
	}
	return net.JoinHostPort(ip, strconv.FormatUint(uint64(port), 10))
}

func lookupProcess(pid int32) (string, string) {
	p, err := process.NewProcess(pid)
	if err != nil {
		return "", ""
	}
	name, _ := p.Name()
	user, _ := p.Username()
	return name, user
}
