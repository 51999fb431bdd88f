package mpd

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// parseISODuration parses the xs:duration subset used by MPD attributes,
// e.g. "PT1.5S", "PT0H9M56.46S", "P1DT2H". Empty input parses to 0.
func parseISODuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	orig := s
	if !strings.HasPrefix(s, "P") {
		return 0, fmt.Errorf("invalid duration %q", orig)
	}
	s = s[1:]

	var total time.Duration
	inTime := false
	for len(s) > 0 {
		if s[0] == 'T' {
			inTime = true
			s = s[1:]
			continue
		}
		end := 0
		for end < len(s) && (s[end] >= '0' && s[end] <= '9' || s[end] == '.') {
			end++
		}
		if end == 0 || end == len(s) {
			return 0, fmt.Errorf("invalid duration %q", orig)
		}
		value, err := strconv.ParseFloat(s[:end], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", orig, err)
		}
		unit := s[end]
		s = s[end+1:]

		var scale time.Duration
		switch {
		case unit == 'D' && !inTime:
			scale = 24 * time.Hour
		case unit == 'H' && inTime:
			scale = time.Hour
		case unit == 'M' && inTime:
			scale = time.Minute
		case unit == 'M' && !inTime:
			return 0, fmt.Errorf("month durations not supported: %q", orig)
		case unit == 'S' && inTime:
			scale = time.Second
		default:
			return 0, fmt.Errorf("invalid duration %q", orig)
		}
		total += time.Duration(value * float64(scale))
	}
	return total, nil
}
