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
		{name: "nil slice", input: nil, expected: nil},
		{name: "empty slice", input: []string{}, expected: []string{}},
		{name: "trims whitespace", input: []string{" did:dcert: ", "did:example:"}, expected: []string{"did:dcert:", "did:example:"}},
		{name: "keeps first occurrence", input: []string{"k1:9092", "k2:9092", " k1:9092"}, expected: []string{"k1:9092", "k2:9092"}},
		{name: "drops blanks", input: []string{"", "  ", "a"}, expected: []string{"a"}},
		{name: "only blanks", input: []string{" ", ""}, expected: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeAndTrim(tt.input))
		})
	}
}
