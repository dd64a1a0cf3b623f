package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCSV(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "empty string",
			input:    "",
			expected: nil,
		},
		{
			name:     "single entry",
			input:    "AAPL:-0.10",
			expected: []string{"AAPL:-0.10"},
		},
		{
			name:     "two entries",
			input:    "AAPL:-0.10, CASH:+0.10",
			expected: []string{"AAPL:-0.10", "CASH:+0.10"},
		},
		{
			name:     "varied spacing",
			input:    "SPY:0.4,  MSFT:0.3 , BIL:0.3",
			expected: []string{"SPY:0.4", "MSFT:0.3", "BIL:0.3"},
		},
		{
			name:     "no spaces after comma",
			input:    "VTI:0.6,ERNE:0.4",
			expected: []string{"VTI:0.6", "ERNE:0.4"},
		},
		{
			name:     "trailing comma",
			input:    "VTI:0.6,",
			expected: []string{"VTI:0.6"},
		},
		{
			name:     "leading comma",
			input:    ",MTUM:0.2",
			expected: []string{"MTUM:0.2"},
		},
		{
			name:     "only spaces",
			input:    "   ",
			expected: nil,
		},
		{
			name:     "comma only",
			input:    ",",
			expected: nil,
		},
		{
			name:     "multiple consecutive commas",
			input:    ",,AAPL:0.5,,MSFT:0.5,,",
			expected: []string{"AAPL:0.5", "MSFT:0.5"},
		},
		{
			name:     "entry with internal spaces preserved",
			input:    "AAPL : 0.5, MSFT : 0.5",
			expected: []string{"AAPL : 0.5", "MSFT : 0.5"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ParseCSV(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestParseCSVPreservesInput(t *testing.T) {
	input := "AAPL:-0.10, CASH:+0.10"
	original := input

	_ = ParseCSV(input)

	assert.Equal(t, original, input, "input should not be modified")
}
