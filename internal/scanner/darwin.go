//go:build darwin

package scanner

// Platform returns the candidates for macOS, which ships lsof but not ss
func Platform(r Runner) []Candidate {
	return []Candidate{Lsof(r), Native()}
}
