package listing

import (
	"fmt"
	"strings"
)

// SourceSite selects which detail-page rules apply to a listing.
type SourceSite string

const (
	SiteOLX    SourceSite = "olx"
	SiteOtodom SourceSite = "otodom"
)

const otodomPrefix = "https://www.otodom.pl"

// DetectSite picks the site variant from a listing URL. OLX index pages link
// out to Otodom for part of their offers, so the URL is the only reliable hint.
func DetectSite(href string) SourceSite {
	if strings.HasPrefix(href, otodomPrefix) {
		return SiteOtodom
	}
	return SiteOLX
}

func ParseSite(value string) (SourceSite, error) {
	switch SourceSite(strings.ToLower(strings.TrimSpace(value))) {
	case SiteOLX:
		return SiteOLX, nil
	case SiteOtodom:
		return SiteOtodom, nil
	default:
		return "", fmt.Errorf("unknown source site: %q", value)
	}
}

type Record struct {
	ID             string // canonical listing URL
	PublishedAt    PublishedAt
	Title          string
	RawDescription string
	Site           SourceSite
}

// Detail holds what the detail page exposes. Empty strings mean the page did
// not carry the field.
type Detail struct {
	Description    string
	Location       string
	RentText       string
	PriceText      string
	ScreenshotPath string
}

// Description prefers the detail page text over the summary some sources
// carry on the index.
func Description(rec Record, detail Detail) string {
	if detail.Description != "" {
		return detail.Description
	}
	return rec.RawDescription
}

// Page is one page of scraped listing index results.
type Page struct {
	Records []Record
	NextURL string
}

// TransportResult is the outcome of one commute lookup for one destination.
// A failed lookup carries DurationMinutes = NaN and a nil WithinBudget.
type TransportResult struct {
	Destination     string
	DurationText    string
	DurationMinutes float64
	BudgetMinutes   int
	WithinBudget    *bool
	Steps           []string
}

func (t TransportResult) Failed() bool {
	return t.WithinBudget == nil
}

// ExceedsBudget reports an explicit over-budget answer. Unknown results never count.
func (t TransportResult) ExceedsBudget() bool {
	return t.WithinBudget != nil && !*t.WithinBudget
}
