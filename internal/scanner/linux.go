//go:build linux

package scanner

// Platform returns the candidates for Linux: ss first, lsof when ss is
// missing or unusable, then the in-process reader.
func Platform(r Runner) []Candidate {
	return []Candidate{SS(r), Lsof(r), Native()}
}
