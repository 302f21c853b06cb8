package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/Fiszcz/OLX-flats-notificator/app/listing"
)

const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/104.0.5112.102 Safari/537.36"

// IndexScraper reads search result pages into listing records.
type IndexScraper struct {
	collector *colly.Collector
	selectors IndexSelectors
}

func NewIndexScraper(userAgent string, timeout time.Duration, selectors IndexSelectors) *IndexScraper {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	c := colly.NewCollector(
		colly.UserAgent(userAgent),
		colly.AllowURLRevisit(),
	)
	if timeout > 0 {
		c.SetRequestTimeout(timeout)
	}

	return &IndexScraper{
		collector: c,
		selectors: selectors,
	}
}

// FetchListingPage scrapes one results page. Rows without a link are skipped;
// an unreadable published label leaves the record with an invalid time.
func (s *IndexScraper) FetchListingPage(ctx context.Context, pageURL string) (listing.Page, error) {
	var page listing.Page
	var err error

	c := s.collector.Clone()

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
		}
	})

	c.OnHTML(s.selectors.Row, func(e *colly.HTMLElement) {
		href := e.ChildAttr(s.selectors.Link, "href")
		if href == "" {
			return
		}

		id := CanonicalID(e.Request.AbsoluteURL(href))
		if id == "" {
			return
		}

		publishedText := collapseSpace(e.ChildText(s.selectors.Published))
		published, parseErr := listing.ParsePublishedAt(publishedText)
		if parseErr != nil {
			slog.Debug("Unreadable published time", "listing", id, "text", publishedText, "error", parseErr)
		}

		page.Records = append(page.Records, listing.Record{
			ID:          id,
			PublishedAt: published,
			Title:       collapseSpace(e.ChildText(s.selectors.Title)),
			Site:        listing.DetectSite(id),
		})
	})

	c.OnHTML(s.selectors.NextPage, func(e *colly.HTMLElement) {
		if page.NextURL != "" {
			return
		}
		if href := e.Attr("href"); href != "" {
			page.NextURL = e.Request.AbsoluteURL(href)
		}
	})

	c.OnError(func(r *colly.Response, e error) {
		err = fmt.Errorf("request URL %v failed with status %d: %w", r.Request.URL, r.StatusCode, e)
	})

	if visitErr := c.Visit(pageURL); visitErr != nil && err == nil {
		err = fmt.Errorf("failed to visit %s: %w", pageURL, visitErr)
	}
	c.Wait()

	if err != nil {
		return listing.Page{}, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return listing.Page{}, ctxErr
	}

	return page, nil
}

// CanonicalID strips query and fragment so the same offer reached through
// different tracking links keeps one identity.
func CanonicalID(href string) string {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil || u.Host == "" {
		return ""
	}
	u.RawQuery = ""
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
