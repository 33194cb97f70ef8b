// Package keywords derives a ranked keyword list from free text.
//
// Extraction is pure and deterministic: the text is lower-cased and split on
// word boundaries into purely alphabetic words. Short tokens and stop words
// are dropped and the rest are ranked by frequency. Ties keep the order in
// which the tokens first appeared in the text.
package keywords

import (
	"sort"
	"strings"
	"unicode"
)

// DefaultLimit is the number of keywords Extract returns at most.
const DefaultLimit = 10

// minTokenLength is the shortest token kept; tokens of 3 letters or fewer are noise.
const minTokenLength = 4

var stopWords = map[string]struct{}{
	"the": {}, "is": {}, "at": {}, "which": {}, "on": {}, "and": {}, "a": {}, "an": {},
	"as": {}, "are": {}, "been": {}, "be": {}, "have": {}, "has": {}, "had": {},
	"were": {}, "was": {}, "will": {}, "with": {}, "can": {}, "could": {},
}

// IsStopWord reports whether w is ignored during extraction.
func IsStopWord(w string) bool {
	_, ok := stopWords[w]
	return ok
}

// Extract returns the DefaultLimit most frequent keywords of text.
func Extract(text string) []string {
	return ExtractN(text, DefaultLimit)
}

// ExtractN returns up to n keywords of text ordered by descending frequency.
// Empty text or a non-positive n yields an empty, non-nil slice.
func ExtractN(text string, n int) []string {
	if text == "" || n <= 0 {
		return []string{}
	}

	type entry struct {
		word  string
		count int
		first int
	}

	index := make(map[string]*entry)
	order := make([]*entry, 0)
	for _, tok := range tokenize(strings.ToLower(text)) {
		if len(tok) < minTokenLength || IsStopWord(tok) {
			continue
		}
		if e, ok := index[tok]; ok {
			e.count++
			continue
		}
		e := &entry{word: tok, count: 1, first: len(order)}
		index[tok] = e
		order = append(order, e)
	}

	sort.SliceStable(order, func(i, j int) bool {
		if order[i].count != order[j].count {
			return order[i].count > order[j].count
		}
		return order[i].first < order[j].first
	})

	if len(order) > n {
		order = order[:n]
	}
	out := make([]string, len(order))
	for i, e := range order {
		out[i] = e.word
	}
	return out
}

// tokenize splits s into words at any rune that is not a Unicode letter,
// number or underscore, and keeps the words made only of the letters a-z.
// "abc123" and "schrödinger" contribute nothing while "don't" yields "don"
// and "t".
func tokenize(s string) []string {
	words := strings.FieldsFunc(s, func(r rune) bool {
		return !isWordRune(r)
	})

	out := words[:0]
	for _, w := range words {
		if isLowerASCII(w) {
			out = append(out, w)
		}
	}
	return out
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r) || r == '_'
}

func isLowerASCII(w string) bool {
	for i := 0; i < len(w); i++ {
		if w[i] < 'a' || w[i] > 'z' {
			return false
		}
	}
	return true
}
