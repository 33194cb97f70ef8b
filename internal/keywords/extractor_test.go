package keywords

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	t.Run("most frequent keyword comes first", func(t *testing.T) {
		got := Extract("distributed distributed systems caching caching caching")

		require.NotEmpty(t, got)
		assert.Equal(t, "caching", got[0])
		assert.Equal(t, []string{"caching", "distributed", "systems"}, got)
	})

	t.Run("empty input yields empty slice", func(t *testing.T) {
		got := Extract("")

		require.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("drops short tokens and stop words", func(t *testing.T) {
		got := Extract("The cat and the dog were with could which have been")

		assert.Empty(t, got)
	})

	t.Run("is case insensitive", func(t *testing.T) {
		got := Extract("Graph GRAPH graph Neural")

		assert.Equal(t, []string{"graph", "neural"}, got)
	})

	t.Run("ties keep first occurrence order", func(t *testing.T) {
		got := Extract("zeta alpha mango zeta alpha mango")

		assert.Equal(t, []string{"zeta", "alpha", "mango"}, got)
	})

	t.Run("ignores words containing digits or punctuation runs", func(t *testing.T) {
		got := Extract("gpt4 model model-based transformer")

		assert.Equal(t, []string{"model", "based", "transformer"}, got)
	})

	t.Run("words with non-ascii letters are dropped whole", func(t *testing.T) {
		got := Extract("Schrödinger equation solvers for Schrödinger problems")

		assert.Equal(t, []string{"equation", "solvers", "problems"}, got)
	})

	t.Run("underscores join words", func(t *testing.T) {
		got := Extract("snake_case naming naming")

		assert.Equal(t, []string{"naming"}, got)
	})

	t.Run("contractions split at the apostrophe", func(t *testing.T) {
		got := Extract("don't doesn't")

		assert.Equal(t, []string{"doesn"}, got)
	})

	t.Run("returns at most ten keywords", func(t *testing.T) {
		text := "alpha bravo charlie delta echoes foxtrot golf hotel india juliet kilo lima mike"
		got := Extract(text)

		assert.Len(t, got, DefaultLimit)
		assert.Equal(t, "alpha", got[0])
		assert.Equal(t, "juliet", got[9])
	})

	t.Run("deterministic across calls", func(t *testing.T) {
		text := "Consensus protocols for replicated state machines tolerate crash faults; " +
			"consensus latency dominates replicated storage throughput."

		first := Extract(text)
		second := Extract(text)

		assert.Equal(t, first, second)
		assert.Equal(t, "consensus", first[0])
		assert.Equal(t, "replicated", first[1])
	})
}

func TestExtractN(t *testing.T) {
	t.Run("non-positive limit yields empty slice", func(t *testing.T) {
		assert.Empty(t, ExtractN("caching caching", 0))
		assert.Empty(t, ExtractN("caching caching", -3))
	})

	t.Run("limits output", func(t *testing.T) {
		got := ExtractN("caching caching caching distributed distributed systems", 2)

		assert.Equal(t, []string{"caching", "distributed"}, got)
	})

	t.Run("handles long repetitive input", func(t *testing.T) {
		text := strings.Repeat("latency ", 1000) + strings.Repeat("throughput ", 999)
		got := ExtractN(text, 1)

		assert.Equal(t, []string{"latency"}, got)
	})
}

func TestIsStopWord(t *testing.T) {
	tests := []struct {
		word string
		want bool
	}{
		{"the", true},
		{"which", true},
		{"could", true},
		{"caching", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.word, func(t *testing.T) {
			assert.Equal(t, tt.want, IsStopWord(tt.word))
		})
	}
}
