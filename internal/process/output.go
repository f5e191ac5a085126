package process

import (
	"strings"
)

// ScanIDMarker starts the line a scanner prints with the identifier of a scan.
const ScanIDMarker = "Scan ID"

// OutputScanner observes the output lines of one process and keeps
// the last meaningful line and the scan identifier. It is owned by a single
// process and must not be shared.
type OutputScanner struct {
	filter  []string
	matched bool
	last    string
	scanID  string
}

// NewOutputScanner returns the scanner. With an empty filter the latest
// non-blank line wins, otherwise the first line containing all
// filter substrings wins and is never replaced.
func NewOutputScanner(filter []string) *OutputScanner {
	return &OutputScanner{
		filter: append([]string(nil), filter...),
	}
}

func (s *OutputScanner) Observe(line string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return
	}

	if strings.HasPrefix(trimmed, ScanIDMarker) {
		if fields := strings.Fields(trimmed); len(fields) > 0 {
			s.scanID = fields[len(fields)-1]
		}
	}

	if len(s.filter) == 0 {
		s.last = trimmed
		return
	}
	if s.matched {
		return
	}
	for _, f := range s.filter {
		if !strings.Contains(trimmed, f) {
			return
		}
	}
	s.last = trimmed
	s.matched = true
}

// LastMeaningfulLine returns empty string when no line qualified.
func (s *OutputScanner) LastMeaningfulLine() string {
	return s.last
}

func (s *OutputScanner) ExtractedID() string {
	return s.scanID
}
