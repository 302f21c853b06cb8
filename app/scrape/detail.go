package scrape

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"codeberg.org/readeck/go-readability"
	"github.com/PuerkitoBio/goquery"

	"github.com/Fiszcz/OLX-flats-notificator/app/listing"
)

// DetailFetcher loads a listing's detail page and reads its fields using the
// rules of the listing's site.
type DetailFetcher struct {
	httpClient *http.Client
	userAgent  string
	timeout    time.Duration
}

func NewDetailFetcher(httpClient *http.Client, userAgent string, timeout time.Duration) *DetailFetcher {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &DetailFetcher{
		httpClient: httpClient,
		userAgent:  cmp.Or(userAgent, DefaultUserAgent),
		timeout:    timeout,
	}
}

func (f *DetailFetcher) FetchListingDetail(ctx context.Context, rec listing.Record) (listing.Detail, error) {
	data, err := f.fetchPage(ctx, rec.ID)
	if err != nil {
		return listing.Detail{}, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return listing.Detail{}, fmt.Errorf("failed to parse detail page: %w", err)
	}

	sel := SelectorsFor(rec.Site)
	detail := listing.Detail{
		Description: selectionText(doc.Find(sel.Description).First()),
		Location:    selectionText(doc.Find(sel.Location).First()),
		PriceText:   selectionText(doc.Find(sel.Price).First()),
		RentText:    findLabelled(doc.Find(sel.Params), sel.RentLabel),
	}

	if detail.Description == "" {
		detail.Description = readableText(data, rec.ID)
	}

	return detail, nil
}

func (f *DetailFetcher) fetchPage(ctx context.Context, pageURL string) ([]byte, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, "GET", pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch detail page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}

// findLabelled returns the value of the first row whose text mentions label,
// e.g. "Czynsz (dodatkowo): 600 zł" yields "600 zł".
func findLabelled(rows *goquery.Selection, label string) string {
	if label == "" {
		return ""
	}

	var value string
	rows.EachWithBreak(func(_ int, row *goquery.Selection) bool {
		text := strings.ToLower(selectionText(row))
		idx := strings.Index(text, label)
		if idx < 0 {
			return true
		}

		rest := text[idx+len(label):]
		if _, after, ok := strings.Cut(rest, ":"); ok {
			rest = after
		}
		value = strings.TrimSpace(rest)
		if value == "" {
			// label and value sit in sibling cells
			value = selectionText(row.Next())
		}
		return false
	})

	return value
}

// readableText is the fallback when the site selectors miss the description,
// usually after a layout change on the site.
func readableText(data []byte, pageURL string) string {
	u, _ := url.Parse(pageURL)

	article, err := readability.FromReader(bytes.NewReader(data), u)
	if err != nil || article.Content == "" {
		slog.Debug("No readable content on detail page", "url", pageURL, "error", err)
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(article.Content))
	if err != nil {
		return ""
	}

	slog.Debug("Description taken from readable content",
		"url", pageURL,
		"title", article.Title,
		"content_length", len(article.Content))

	return selectionText(doc.Selection)
}

func selectionText(s *goquery.Selection) string {
	return collapseSpace(s.Text())
}
