package scrape

import (
	"cmp"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/Fiszcz/OLX-flats-notificator/app/listing"
)

// FeedSource reads an RSS or Atom search feed. Feeds carry no pagination, so
// NextURL is always empty.
type FeedSource struct {
	parser *gofeed.Parser
	now    func() time.Time
}

func NewFeedSource(httpClient *http.Client, userAgent string) *FeedSource {
	parser := gofeed.NewParser()
	parser.Client = httpClient
	parser.UserAgent = cmp.Or(userAgent, DefaultUserAgent)

	return &FeedSource{
		parser: parser,
		now:    time.Now,
	}
}

func (s *FeedSource) FetchListingPage(ctx context.Context, feedURL string) (listing.Page, error) {
	feed, err := s.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return listing.Page{}, fmt.Errorf("failed to parse feed: %w", err)
	}

	now := s.now()
	records := make([]listing.Record, 0, len(feed.Items))
	for _, item := range feed.Items {
		id := CanonicalID(cmp.Or(item.Link, item.GUID))
		if id == "" {
			continue
		}

		var published listing.PublishedAt
		if item.PublishedParsed != nil {
			published = listing.PublishedAtFromTime(*item.PublishedParsed, now)
		} else if item.UpdatedParsed != nil {
			published = listing.PublishedAtFromTime(*item.UpdatedParsed, now)
		}

		records = append(records, listing.Record{
			ID:             id,
			PublishedAt:    published,
			Title:          collapseSpace(item.Title),
			RawDescription: item.Description,
			Site:           listing.DetectSite(id),
		})
	}

	return listing.Page{Records: records}, nil
}
