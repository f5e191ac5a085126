package process_test

import (
	"testing"

	"github.com/CZERTAINLY/verascan/internal/process"

	"github.com/stretchr/testify/require"
)

func TestOutputScanner(t *testing.T) {
	t.Parallel()
	var testCases = []struct {
		scenario string
		filter   []string
		given    []string
		thenLine string
		thenID   string
	}{
		{
			scenario: "empty",
			given:    nil,
		},
		{
			scenario: "latest non blank line",
			given:    []string{"first", "  second  ", "", "   "},
			thenLine: "second",
		},
		{
			scenario: "scan id latest wins",
			given:    []string{"Scan ID 111", "working", "Scan ID: 222", "done"},
			thenLine: "done",
			thenID:   "222",
		},
		{
			scenario: "marker must start the line",
			given:    []string{"Previous Scan ID 111"},
			thenLine: "Previous Scan ID 111",
		},
		{
			scenario: "filter first match wins",
			filter:   []string{"Full Report Details", "https://"},
			given: []string{
				"Scan ID abc-1",
				"Full Report Details   https://sca.example.com/1",
				"Full Report Details   https://sca.example.com/2",
				"bye",
			},
			thenLine: "Full Report Details   https://sca.example.com/1",
			thenID:   "abc-1",
		},
		{
			scenario: "filter without a match",
			filter:   []string{"Full Report Details", "https://"},
			given:    []string{"Full Report Details: none", "bye"},
			thenLine: "",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.scenario, func(t *testing.T) {
			t.Parallel()
			s := process.NewOutputScanner(tc.filter)
			for _, line := range tc.given {
				s.Observe(line)
			}
			require.Equal(t, tc.thenLine, s.LastMeaningfulLine())
			require.Equal(t, tc.thenID, s.ExtractedID())
		})
	}
}
