package adapter

import (
	"context"
	"crypto/sha1"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/massalia/agenda/internal/config"
	"github.com/massalia/agenda/internal/event"
	"github.com/massalia/agenda/internal/textutil"
)

const (
	userAgent    = "agenda-crawl/1.0 (github.com/massalia/agenda)"
	fetchTimeout = 30 * time.Second
	maxRetries   = 3

	// Detail-page fetches per source run concurrently up to this bound;
	// the rate limiter still spaces the actual requests.
	detailConcurrency = 4
)

// HTML is the selector-driven adapter: it fetches a listing page,
// extracts one candidate per configured item selector, and optionally
// enriches candidates from their detail pages.
type HTML struct {
	src     config.Source
	client  *http.Client
	limiter *rate.Limiter
	log     zerolog.Logger
	now     func() time.Time
}

// NewHTML builds an adapter for one configured source.
func NewHTML(src config.Source, logger zerolog.Logger) *HTML {
	rps := src.RateLimit.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	interval := time.Duration(float64(time.Second) / rps)
	if delay := time.Duration(src.RateLimit.DelayBetweenPages * float64(time.Second)); delay > interval {
		interval = delay
	}
	return &HTML{
		src:     src,
		client:  &http.Client{Timeout: fetchTimeout},
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		log:     logger.With().Str("source", src.ID).Logger(),
		now:     time.Now,
	}
}

func (a *HTML) ID() string { return a.src.ID }

// Fetch extracts all candidates from the source's listing page. A
// per-item extraction failure drops that item only.
func (a *HTML) Fetch(ctx context.Context) ([]event.Candidate, error) {
	doc, err := a.get(ctx, a.src.URL)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", a.src.ID, err)
	}

	candidates := a.parseListing(doc)
	if a.src.Selectors.EventDescription != "" {
		a.enrichDetails(ctx, candidates)
	}

	// One candidate per source-local id; listings repeat entries in
	// highlight carousels.
	seen := make(map[string]bool, len(candidates))
	unique := make([]event.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if !seen[c.Source.LocalID] {
			seen[c.Source.LocalID] = true
			unique = append(unique, c)
		}
	}
	return unique, nil
}

// get fetches one page with rate limiting and exponential-backoff
// retry. Client errors (4xx) are permanent; server errors retry.
func (a *HTML) get(ctx context.Context, pageURL string) (*goquery.Document, error) {
	var doc *goquery.Document

	operation := func() error {
		if err := a.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("creating request: %w", err))
		}
		req.Header.Set("User-Agent", userAgent)

		resp, err := a.client.Do(req)
		if err != nil {
			return fmt.Errorf("fetching page: %w", err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			return backoff.Permanent(fmt.Errorf("status %d for %s", resp.StatusCode, pageURL))
		default:
			return fmt.Errorf("status %d for %s", resp.StatusCode, pageURL)
		}

		doc, err = goquery.NewDocumentFromReader(resp.Body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("parsing HTML: %w", err))
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return doc, nil
}

// parseListing extracts candidates from the listing document. Items
// missing a title, link or parseable date are dropped and logged.
func (a *HTML) parseListing(doc *goquery.Document) []event.Candidate {
	sel := a.src.Selectors
	crawledAt := a.now()

	scope := doc.Selection
	if sel.EventList != "" {
		scope = doc.Find(sel.EventList)
	}

	var out []event.Candidate
	scope.Find(sel.EventItem).Each(func(i int, item *goquery.Selection) {
		name := strings.TrimSpace(item.Find(sel.EventTitle).First().Text())
		link := a.itemLink(item)
		if name == "" || link == "" {
			a.log.Debug().Int("item", i).Msg("listing item missing title or link, dropped")
			return
		}

		dateText := strings.TrimSpace(item.Find(sel.EventDate).First().Text())
		days, err := ParseRange(dateText, crawledAt)
		if err != nil {
			a.log.Debug().Int("item", i).Str("date", dateText).Err(err).
				Msg("listing item date not parseable, dropped")
			return
		}

		hour, minute := 0, 0
		if sel.EventTime != "" {
			timeText := strings.TrimSpace(item.Find(sel.EventTime).First().Text())
			if h, m, err := ParseClock(timeText); err == nil {
				hour, minute = h, m
			}
		}

		base := event.Candidate{
			Name:        name,
			EventURL:    link,
			Description: strings.TrimSpace(item.Find(sel.EventDescription).First().Text()),
			Location:    strings.TrimSpace(item.Find(sel.EventLocation).First().Text()),
			Source:      event.SourceID{Source: a.src.ID, LocalID: localID(link)},
			CrawledAt:   crawledAt,
		}
		if sel.EventImage != "" {
			if img, ok := item.Find(sel.EventImage).First().Attr("src"); ok {
				base.ImageURL = a.resolveURL(img)
			}
		}
		if sel.EventCategory != "" {
			item.Find(sel.EventCategory).Each(func(_ int, cat *goquery.Selection) {
				if text := strings.TrimSpace(cat.Text()); text != "" {
					base.Categories = append(base.Categories, text)
				}
			})
		}

		out = append(out, expandDays(base, days, hour, minute)...)
	})
	return out
}

// expandDays turns a parsed date range into one candidate per day.
// Multi-day ranges become sibling candidates sharing an event-group id
// with "Jour N sur M" markers.
func expandDays(base event.Candidate, days []time.Time, hour, minute int) []event.Candidate {
	if len(days) == 1 {
		base.Start = at(days[0], hour, minute)
		return []event.Candidate{base}
	}

	groupID := base.Source.Source + "/" + textutil.Slugify(base.Name) + "/" + days[0].Format("2006-01-02")
	out := make([]event.Candidate, 0, len(days))
	for i, day := range days {
		c := base
		c.Start = at(day, hour, minute)
		c.EventGroupID = groupID
		c.DayOf = fmt.Sprintf("Jour %d sur %d", i+1, len(days))
		c.Source.LocalID = fmt.Sprintf("%s#%d", base.Source.LocalID, i+1)
		out = append(out, c)
	}
	return out
}

// enrichDetails fills missing descriptions and images from detail
// pages, bounded in concurrency. A failed detail fetch leaves the
// listing data as is.
func (a *HTML) enrichDetails(ctx context.Context, candidates []event.Candidate) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(detailConcurrency)

	for i := range candidates {
		if candidates[i].Description != "" {
			continue
		}
		c := &candidates[i]
		g.Go(func() error {
			doc, err := a.get(ctx, c.EventURL)
			if err != nil {
				a.log.Warn().Str("url", c.EventURL).Err(err).Msg("detail fetch failed")
				return nil
			}
			if desc := strings.TrimSpace(doc.Find(a.src.Selectors.EventDescription).First().Text()); desc != "" {
				c.Description = desc
			}
			if c.ImageURL == "" && a.src.Selectors.EventImage != "" {
				if img, ok := doc.Find(a.src.Selectors.EventImage).First().Attr("src"); ok {
					c.ImageURL = a.resolveURL(img)
				}
			}
			return nil
		})
	}
	// Errors are contained per page; Wait only observes ctx cancellation.
	_ = g.Wait()
}

// itemLink extracts and resolves the item's event URL.
func (a *HTML) itemLink(item *goquery.Selection) string {
	sel := a.src.Selectors.EventLink
	link := item.Find(sel).First()
	href, ok := link.Attr("href")
	if !ok {
		// The item itself may be the anchor.
		if href, ok = item.Attr("href"); !ok {
			return ""
		}
	}
	return a.resolveURL(strings.TrimSpace(href))
}

// resolveURL makes relative listing links absolute against the source URL.
func (a *HTML) resolveURL(href string) string {
	if href == "" {
		return ""
	}
	base, err := url.Parse(a.src.URL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// localID derives a stable source-local id from the event URL: the last
// meaningful path segment, or a hash when the path carries none.
func localID(link string) string {
	u, err := url.Parse(link)
	if err == nil {
		segments := strings.Split(strings.Trim(u.Path, "/"), "/")
		if last := segments[len(segments)-1]; last != "" {
			return last
		}
	}
	return fmt.Sprintf("%x", sha1.Sum([]byte(link)))
}
