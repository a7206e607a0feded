package listener

// Aggregate merges raw records that share an identity key. Output order is
// the order in which each key first appears; endpoints keep first-seen order
// and are never repeated. Roles are left empty.
func Aggregate(raws []Raw) []Listener {
	index := make(map[Key]int, len(raws))
	out := make([]Listener, 0, len(raws))

	for _, r := range raws {
		key := r.Key()
		i, ok := index[key]
		if !ok {
			index[key] = len(out)
			out = append(out, Listener{
				Port:      r.Port,
				PID:       r.PID,
				Command:   r.Command,
				User:      r.User,
				Endpoints: []string{r.Endpoint},
			})
			continue
		}

		if !contains(out[i].Endpoints, r.Endpoint) {
			out[i].Endpoints = append(out[i].Endpoints, r.Endpoint)
		}
	}

	return out
}

// Flatten expands every listener back into one raw record per endpoint
func Flatten(listeners []Listener) []Raw {
	var out []Raw
	for _, l := range listeners {
		for _, ep := range l.Endpoints {
			out = append(out, Raw{
				Port:     l.Port,
				PID:      l.PID,
				Command:  l.Command,
				User:     l.User,
				Endpoint: ep,
			})
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
