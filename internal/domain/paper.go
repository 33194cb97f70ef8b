package domain

import (
	"strings"

	"github.com/helixir/research-crawler/internal/keywords"
)

// Paper is the normalized record produced by every source adapter.
// The schema is fixed regardless of source; optional fields are only
// populated for the sources that provide them.
type Paper struct {
	Title    string     `json:"title"`
	Authors  []string   `json:"authors"`
	Abstract string     `json:"abstract"`
	URL      string     `json:"url"`
	Source   SourceType `json:"source"`
	Year     int        `json:"year"`
	Keywords []string   `json:"keywords"`

	// Source-specific fields.
	ArXivID    string   `json:"arxiv_id,omitempty"`
	Categories []string `json:"categories,omitempty"`
	PDFURL     string   `json:"pdf_url,omitempty"`
	Venue      string   `json:"venue,omitempty"`
	Citations  int      `json:"citations,omitempty"`
	DOI        string   `json:"doi,omitempty"`

	// FullText is only set by full-text augmentation.
	FullText string `json:"fullText,omitempty"`
}

// HasFullText reports whether full-text augmentation succeeded for the paper.
func (p *Paper) HasFullText() bool {
	return p.FullText != ""
}

// NormalizePaper brings a record produced by an adapter into the common schema.
// The source tag is forced to source, whitespace is collapsed, fields that do
// not belong to the source are cleared and keywords are derived from the
// abstract (or the title) when the source supplied none.
//
// The second return value is false when the record lacks a title or URL and
// must be dropped.
func NormalizePaper(p Paper, source SourceType) (Paper, bool) {
	p.Source = source
	p.Title = CollapseWhitespace(p.Title)
	p.Abstract = CollapseWhitespace(p.Abstract)
	p.URL = strings.TrimSpace(p.URL)
	p.Venue = CollapseWhitespace(p.Venue)
	p.DOI = strings.TrimSpace(p.DOI)
	p.PDFURL = strings.TrimSpace(p.PDFURL)

	if p.Title == "" || p.URL == "" {
		return Paper{}, false
	}

	authors := make([]string, 0, len(p.Authors))
	for _, a := range p.Authors {
		if name := CollapseWhitespace(a); name != "" {
			authors = append(authors, name)
		}
	}
	p.Authors = authors

	if p.Year < 0 {
		p.Year = 0
	}
	if p.Citations < 0 {
		p.Citations = 0
	}

	clearForeignFields(&p)

	kws := make([]string, 0, len(p.Keywords))
	for _, kw := range p.Keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			kws = append(kws, kw)
		}
	}
	if len(kws) == 0 {
		text := p.Abstract
		if text == "" {
			text = p.Title
		}
		kws = keywords.Extract(text)
	}
	p.Keywords = kws

	return p, true
}

// clearForeignFields zeroes optional fields the paper's source never provides.
func clearForeignFields(p *Paper) {
	switch p.Source {
	case SourceTypeArXiv:
		p.Venue = ""
		p.Citations = 0
	case SourceTypeScholar:
		p.ArXivID = ""
		p.Categories = nil
		p.PDFURL = ""
		p.DOI = ""
	case SourceTypeIEEE:
		p.ArXivID = ""
		p.Categories = nil
	case SourceTypeACM:
		p.ArXivID = ""
		p.Categories = nil
		p.PDFURL = ""
		p.Citations = 0
	}
}

// CollapseWhitespace trims s and collapses internal runs of whitespace
// (including the newlines arXiv embeds in titles) into single spaces.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
