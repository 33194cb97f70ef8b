package httpserver

import (
	"github.com/helixir/research-crawler/internal/crawler"
	"github.com/helixir/research-crawler/internal/domain"
)

// crawlSourceResponse is the body of POST /crawl/{source}.
type crawlSourceResponse struct {
	Source   string         `json:"source"`
	Queries  []string       `json:"queries"`
	Papers   []domain.Paper `json:"papers"`
	Count    int            `json:"count"`
	Warnings []string       `json:"warnings,omitempty"`
}

// crawlAllResponse is the body of POST /crawl/all.
type crawlAllResponse struct {
	Papers   []domain.Paper `json:"papers"`
	Count    int            `json:"count"`
	Sources  []string       `json:"sources"`
	Warnings []string       `json:"warnings,omitempty"`
}

func toSourceResponse(source string, queries []string, r *crawler.Result) crawlSourceResponse {
	return crawlSourceResponse{
		Source:   source,
		Queries:  queries,
		Papers:   nonNilPapers(r.Papers),
		Count:    r.Count,
		Warnings: r.Warnings,
	}
}

func toAllResponse(r *crawler.Result) crawlAllResponse {
	sources := make([]string, len(r.Sources))
	for i, st := range r.Sources {
		sources[i] = st.String()
	}
	return crawlAllResponse{
		Papers:   nonNilPapers(r.Papers),
		Count:    r.Count,
		Sources:  sources,
		Warnings: r.Warnings,
	}
}

func nonNilPapers(papers []domain.Paper) []domain.Paper {
	if papers == nil {
		return []domain.Paper{}
	}
	return papers
}
