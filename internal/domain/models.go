// Package domain defines the core types shared by the crawler: papers, crawl
// requests, source identifiers and the error taxonomy.
package domain

// SourceType represents the external source that produced a paper.
type SourceType string

const (
	SourceTypeArXiv   SourceType = "arxiv"
	SourceTypeScholar SourceType = "scholar"
	SourceTypeIEEE    SourceType = "ieee"
	SourceTypeACM     SourceType = "acm"
)

// AllSourceTypes lists every supported source in source-group order.
// Aggregated crawl results are concatenated in this order.
var AllSourceTypes = []SourceType{
	SourceTypeArXiv,
	SourceTypeScholar,
	SourceTypeIEEE,
	SourceTypeACM,
}

// String returns the wire name of the source.
func (s SourceType) String() string {
	return string(s)
}

// IsValidSourceType reports whether s names a supported source.
func IsValidSourceType(s SourceType) bool {
	for _, st := range AllSourceTypes {
		if st == s {
			return true
		}
	}
	return false
}

// ParseSourceType converts a source name into a SourceType.
// Matching is exact; "ArXiv" is not a valid source.
func ParseSourceType(name string) (SourceType, error) {
	st := SourceType(name)
	if !IsValidSourceType(st) {
		return "", NewUnknownSourceError(name)
	}
	return st, nil
}

// SourceNames returns the wire names of all sources in source-group order.
func SourceNames() []string {
	names := make([]string, len(AllSourceTypes))
	for i, st := range AllSourceTypes {
		names[i] = string(st)
	}
	return names
}
