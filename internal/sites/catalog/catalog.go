// Package catalog adapts paginated HTML parts catalogs to the harvesting
// engine: pagination-aware discovery, table row extraction keyed by header
// text, and index-page link discovery.
package catalog

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"github.com/naitridoshi/catalog-harvest/internal/fetch"
	"github.com/naitridoshi/catalog-harvest/internal/pacing"
	"github.com/naitridoshi/catalog-harvest/pkg/models"
)

// Category is one catalog section to harvest. Its name becomes the group for
// every page unit it produces.
type Category struct {
	Name string
	URL  string
}

// DiscovererOptions configures a paginated catalog discoverer.
type DiscovererOptions struct {
	Fetcher    *fetch.Client
	Categories []Category
	// Pacer spaces the per-category pagination probes. Nil disables pacing.
	Pacer *pacing.Policy
	// PageSize is the offset step between pages. Defaults to 20, the step
	// the supported catalogs use for their start= parameter.
	PageSize int
	// PaginationSelector locates the link of the last pagination entry.
	// Defaults to ".tyresPaginator .fr-pagination li.last a".
	PaginationSelector string
}

// Discoverer probes each category's first page, reads the pagination to find
// the last offset, and emits one work unit per page per category.
type Discoverer struct {
	fetcher    *fetch.Client
	categories []Category
	pacer      *pacing.Policy
	pageSize   int
	pagination string
}

// NewDiscoverer creates a paginated catalog discoverer.
func NewDiscoverer(opts DiscovererOptions) (*Discoverer, error) {
	if opts.Fetcher == nil {
		return nil, fmt.Errorf("fetch client is required")
	}
	if len(opts.Categories) == 0 {
		return nil, fmt.Errorf("at least one category is required")
	}

	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	selector := opts.PaginationSelector
	if selector == "" {
		selector = ".tyresPaginator .fr-pagination li.last a"
	}
	return &Discoverer{
		fetcher:    opts.Fetcher,
		categories: opts.Categories,
		pacer:      opts.Pacer,
		pageSize:   pageSize,
		pagination: selector,
	}, nil
}

// Discover implements engine.Discoverer. A category whose probe fails is
// still emitted as a single first-page unit so the run can report it.
func (d *Discoverer) Discover(ctx context.Context) ([]models.WorkUnit, error) {
	var units []models.WorkUnit

	for i, cat := range d.categories {
		if i > 0 && d.pacer != nil {
			if err := d.pacer.Wait(ctx, pacing.ScopePreItem); err != nil {
				return units, err
			}
		}

		lastOffset, err := d.probeLastOffset(ctx, cat)
		if err != nil {
			log.Warn().
				Str("category", cat.Name).
				Err(err).
				Msg("Pagination probe failed, assuming single page")
			lastOffset = 0
		}

		for off := 0; off <= lastOffset; off += d.pageSize {
			units = append(units, models.WorkUnit{
				ID:    fmt.Sprintf("%s-start-%d", slug(cat.Name), off),
				Group: cat.Name,
				URL:   pageURL(cat.URL, off),
			})
		}
	}

	log.Info().
		Int("categories", len(d.categories)).
		Int("units", len(units)).
		Msg("Catalog discovery completed")

	return units, nil
}

// probeLastOffset fetches the category's first page and reads the last
// pagination link's start= offset. Zero means the category has one page.
func (d *Discoverer) probeLastOffset(ctx context.Context, cat Category) (int, error) {
	outcome := d.fetcher.Fetch(ctx, models.WorkUnit{
		ID:    slug(cat.Name) + "-probe",
		Group: cat.Name,
		URL:   cat.URL,
	})
	if outcome.Kind != models.OutcomeSuccess {
		return 0, fmt.Errorf("probe fetch failed: %w", outcome.Err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(outcome.Payload))
	if err != nil {
		return 0, fmt.Errorf("failed to parse HTML: %w", err)
	}

	href, ok := doc.Find(d.pagination).Last().Attr("href")
	if !ok {
		log.Debug().Str("category", cat.Name).Msg("No pagination found")
		return 0, nil
	}

	_, after, found := strings.Cut(href, "start=")
	if !found {
		return 0, fmt.Errorf("pagination href has no start offset: %q", href)
	}
	if i := strings.IndexByte(after, '&'); i >= 0 {
		after = after[:i]
	}
	offset, err := strconv.Atoi(after)
	if err != nil {
		return 0, fmt.Errorf("bad pagination offset in %q: %w", href, err)
	}

	log.Debug().
		Str("category", cat.Name).
		Int("last_offset", offset).
		Msg("Pagination resolved")
	return offset, nil
}

func pageURL(base string, offset int) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%sstart=%d", base, sep, offset)
}

func slug(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return '-'
		}
	}, s)
	return strings.Trim(s, "-")
}

// TableExtractor turns the first matching product table into one record per
// body row, keyed by the header cell texts.
type TableExtractor struct {
	// Selector locates the table. Defaults to "table".
	Selector string
}

// Extract implements parse.Extractor.
func (e TableExtractor) Extract(payload []byte, unit models.WorkUnit) ([]models.Record, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	selector := e.Selector
	if selector == "" {
		selector = "table"
	}

	table := doc.Find(selector).First()
	if table.Length() == 0 {
		return nil, fmt.Errorf("no table matched %q", selector)
	}

	var headers []string
	table.Find("thead th").Each(func(i int, th *goquery.Selection) {
		h := strings.TrimSpace(th.Text())
		if h == "" {
			h = fmt.Sprintf("column_%d", i+1)
		}
		headers = append(headers, h)
	})
	if len(headers) == 0 {
		return nil, fmt.Errorf("table has no header row")
	}

	var records []models.Record
	table.Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
		fields := make(map[string]string, len(headers))
		tr.Find("td").Each(func(i int, td *goquery.Selection) {
			if i < len(headers) {
				fields[headers[i]] = strings.TrimSpace(td.Text())
			}
		})
		if len(fields) > 0 {
			records = append(records, models.Record{Fields: fields})
		}
	})

	log.Debug().
		Str("unit", unit.ID).
		Int("rows", len(records)).
		Msg("Table parsed")

	return records, nil
}

// LinkDiscoverer collects in-domain detail links from one index page and
// emits each as a work unit. Binary and document links are skipped.
type LinkDiscoverer struct {
	Fetcher *fetch.Client
	// IndexURL is the listing page holding the links.
	IndexURL string
	// Group names the resulting units' group. Defaults to the index host.
	Group string
	// Selector scopes the link search. Defaults to ".searchresult".
	Selector string
}

// skippedExtensions are link targets that never hold parseable catalog pages.
var skippedExtensions = []string{"pdf", "ebook", "jpg", "png", "jpeg"}

// Discover implements engine.Discoverer.
func (d LinkDiscoverer) Discover(ctx context.Context) ([]models.WorkUnit, error) {
	base, err := url.Parse(d.IndexURL)
	if err != nil {
		return nil, fmt.Errorf("bad index url: %w", err)
	}

	outcome := d.Fetcher.Fetch(ctx, models.WorkUnit{
		ID:  "index-" + slug(base.Host),
		URL: d.IndexURL,
	})
	if outcome.Kind != models.OutcomeSuccess {
		return nil, fmt.Errorf("index fetch failed: %w", outcome.Err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(outcome.Payload))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	group := d.Group
	if group == "" {
		group = base.Host
	}
	selector := d.Selector
	if selector == "" {
		selector = ".searchresult"
	}

	scope := doc.Find(selector)
	if scope.Length() == 0 {
		// Some sites have no result wrapper; fall back to the whole page.
		scope = doc.Selection
	}

	seen := make(map[string]struct{})
	var units []models.WorkUnit

	scope.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		resolved := base.ResolveReference(ref)
		if resolved.Host != base.Host {
			return
		}
		full := resolved.String()
		if _, dup := seen[full]; dup {
			return
		}
		if skippableLink(full) {
			log.Debug().Str("url", full).Msg("Skipping non-catalog link")
			return
		}
		seen[full] = struct{}{}
		units = append(units, models.WorkUnit{
			ID:    fmt.Sprintf("%s-item-%d", slug(group), len(units)+1),
			Group: group,
			URL:   full,
		})
	})

	log.Info().
		Str("index", d.IndexURL).
		Int("units", len(units)).
		Msg("Link discovery completed")

	return units, nil
}

func skippableLink(u string) bool {
	lower := strings.ToLower(u)
	for _, ext := range skippedExtensions {
		if strings.Contains(lower, ext) {
			return true
		}
	}
	return false
}
