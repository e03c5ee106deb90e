package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{
			name:     "nil slice",
			input:    nil,
			expected: nil,
		},
		{
			name:     "empty slice",
			input:    []string{},
			expected: []string{},
		},
		{
			name:     "trims whitespace",
			input:    []string{"  0001  ", "0002  ", "  0003"},
			expected: []string{"0001", "0002", "0003"},
		},
		{
			name:     "removes duplicates preserving order",
			input:    []string{"0002", "0001", "0002", "0003", "0001"},
			expected: []string{"0002", "0001", "0003"},
		},
		{
			name:     "removes empty strings",
			input:    []string{"0001", "", "  ", "0002"},
			expected: []string{"0001", "0002"},
		},
		{
			name:     "preserves case",
			input:    []string{"sku-a", "SKU-A"},
			expected: []string{"sku-a", "SKU-A"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeAndTrim(tt.input))
		})
	}
}

func TestChunk(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		size     int
		expected [][]string
	}{
		{
			name:     "empty input",
			input:    nil,
			size:     2,
			expected: nil,
		},
		{
			name:     "non-positive size keeps one batch",
			input:    []string{"a", "b", "c"},
			size:     0,
			expected: [][]string{{"a", "b", "c"}},
		},
		{
			name:     "exact multiple",
			input:    []string{"a", "b", "c", "d"},
			size:     2,
			expected: [][]string{{"a", "b"}, {"c", "d"}},
		},
		{
			name:     "remainder batch",
			input:    []string{"a", "b", "c", "d", "e"},
			size:     2,
			expected: [][]string{{"a", "b"}, {"c", "d"}, {"e"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Chunk(tt.input, tt.size))
		})
	}
}
