//go:build !linux && !darwin

package scanner

// Platform returns the in-process reader only
func Platform(r Runner) []Candidate {
	return []Candidate{Native()}
}
