package mpd

import (
	"testing"
	"time"
)

func TestParseISODuration(t *testing.T) {
	testCases := []struct {
		input string
		want  time.Duration
	}{
		{"", 0},
		{"PT0S", 0},
		{"PT1.5S", 1500 * time.Millisecond},
		{"PT4S", 4 * time.Second},
		{"PT9M56.46S", 9*time.Minute + 56460*time.Millisecond},
		{"PT0H9M56.46S", 9*time.Minute + 56460*time.Millisecond},
		{"PT2H", 2 * time.Hour},
		{"P1DT2H", 26 * time.Hour},
		{"PT30M", 30 * time.Minute},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			got, err := parseISODuration(tc.input)
			if err != nil {
				t.Fatalf("parseISODuration(%q) error: %v", tc.input, err)
			}
			if got != tc.want {
				t.Errorf("parseISODuration(%q) = %v, want %v", tc.input, got, tc.want)
			}
		})
	}
}

func TestParseISODuration_Invalid(t *testing.T) {
	testCases := []string{
		"1.5S", // missing P
		"P1M",  // months unsupported
		"PTxS", // not a number
		"PT5",  // missing unit
		"PT5X", // unknown unit
		"P2H",  // hours outside the time part
	}

	for _, input := range testCases {
		t.Run(input, func(t *testing.T) {
			if _, err := parseISODuration(input); err == nil {
				t.Errorf("parseISODuration(%q) = nil error, want failure", input)
			}
		})
	}
}
