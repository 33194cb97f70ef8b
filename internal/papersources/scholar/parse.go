package scholar

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/helixir/research-crawler/internal/domain"
)

var yearRegex = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// resultToPaper converts one organic result. Results that are not objects
// or carry no title yield an error wrapping domain.ErrMalformedRecord.
func resultToPaper(item interface{}) (domain.Paper, error) {
	res, ok := item.(map[string]interface{})
	if !ok {
		return domain.Paper{}, fmt.Errorf("result is a %T, not an object: %w", item, domain.ErrMalformedRecord)
	}

	title := stringField(res, "title")
	if strings.TrimSpace(title) == "" {
		return domain.Paper{}, fmt.Errorf("result has no title: %w", domain.ErrMalformedRecord)
	}

	p := domain.Paper{
		Title:    title,
		Abstract: stringField(res, "snippet"),
		URL:      stringField(res, "link"),
	}

	if p.URL == "" {
		if resources, ok := res["resources"].([]interface{}); ok && len(resources) > 0 {
			if r, ok := resources[0].(map[string]interface{}); ok {
				p.URL = stringField(r, "link")
			}
		}
	}

	if info, ok := res["publication_info"].(map[string]interface{}); ok {
		summary := stringField(info, "summary")
		p.Authors = authorNames(info, summary)
		p.Venue, p.Year = parseSummary(summary)
	}

	if links, ok := res["inline_links"].(map[string]interface{}); ok {
		if cited, ok := links["cited_by"].(map[string]interface{}); ok {
			if total, ok := cited["total"].(float64); ok {
				p.Citations = int(total)
			}
		}
	}

	return p, nil
}

// authorNames prefers the structured author list and falls back to the
// author segment of the summary line.
func authorNames(info map[string]interface{}, summary string) []string {
	var names []string
	if authors, ok := info["authors"].([]interface{}); ok {
		for _, a := range authors {
			if m, ok := a.(map[string]interface{}); ok {
				if name := stringField(m, "name"); name != "" {
					names = append(names, name)
				}
			}
		}
	}
	if len(names) > 0 || summary == "" {
		return names
	}

	segment, _, _ := strings.Cut(summary, " - ")
	for _, name := range strings.Split(segment, ",") {
		name = strings.Trim(strings.TrimSpace(name), "…")
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

// parseSummary extracts venue and year from a summary such as
// "A Vaswani, N Shazeer - Advances in neural information processing systems, 2017 - proceedings.neurips.cc".
func parseSummary(summary string) (venue string, year int) {
	parts := strings.Split(summary, " - ")
	if len(parts) < 2 {
		return "", 0
	}
	middle := strings.TrimSpace(parts[1])

	loc := yearRegex.FindStringIndex(middle)
	if loc == nil {
		if len(parts) == 2 {
			// "authors - host" carries no venue.
			return "", 0
		}
	} else {
		year, _ = strconv.Atoi(middle[loc[0]:loc[1]])
		middle = middle[:loc[0]]
	}

	venue = strings.TrimSpace(strings.TrimRight(strings.TrimSpace(middle), ",…"))
	if yearRegex.MatchString(venue) || venue == "" {
		return "", year
	}
	return venue, year
}

func stringField(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}
