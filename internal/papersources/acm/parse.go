package acm

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/helixir/research-crawler/internal/domain"
)

var yearRegex = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// parseSearchHTML extracts result items from a doSearch page. Items without
// a locatable title are skipped and counted.
func parseSearchHTML(r io.Reader, baseURL string) ([]domain.Paper, int, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var papers []domain.Paper
	skipped := 0
	doc.Find("div.issue-item").Each(func(_ int, item *goquery.Selection) {
		p, ok := parseItem(item, baseURL)
		if !ok {
			skipped++
			return
		}
		papers = append(papers, p)
	})

	return papers, skipped, nil
}

func parseItem(item *goquery.Selection, baseURL string) (domain.Paper, bool) {
	titleElem := item.Find("h5.issue-item__title").First()
	if titleElem.Length() == 0 {
		return domain.Paper{}, false
	}
	title := strings.TrimSpace(titleElem.Text())
	if title == "" {
		return domain.Paper{}, false
	}

	p := domain.Paper{Title: title}

	if href, ok := titleElem.Find("a").First().Attr("href"); ok {
		p.URL = absoluteURL(baseURL, href)
	}

	item.Find("span.hlFld-ContribAuthor").Each(func(_ int, a *goquery.Selection) {
		if name := strings.TrimSpace(a.Text()); name != "" {
			p.Authors = append(p.Authors, name)
		}
	})

	if abstract := item.Find("div.issue-item__abstract").First(); abstract.Length() > 0 {
		p.Abstract = strings.TrimSpace(abstract.Text())
	}

	if date := item.Find("span.CitationCoverDate").First(); date.Length() > 0 {
		if m := yearRegex.FindString(date.Text()); m != "" {
			p.Year, _ = strconv.Atoi(m)
		}
	}

	if venue := item.Find("span.epub-section__title").First(); venue.Length() > 0 {
		p.Venue = strings.TrimSpace(venue.Text())
	}

	if href, ok := item.Find("a.issue-item__doi").First().Attr("href"); ok {
		p.DOI = strings.TrimPrefix(strings.TrimSpace(href), "https://doi.org/")
	}

	return p, true
}

func absoluteURL(baseURL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(href, "/")
}
