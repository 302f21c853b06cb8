package scrape

import "github.com/Fiszcz/OLX-flats-notificator/app/listing"

// IndexSelectors locate listing rows on a search results page.
type IndexSelectors struct {
	Row       string
	Link      string
	Title     string
	Published string
	NextPage  string
}

// DetailSelectors locate listing fields on a detail page.
type DetailSelectors struct {
	Description string
	Location    string
	Price       string
	Params      string // key/value rows, scanned for RentLabel
	RentLabel   string
}

var DefaultIndexSelectors = IndexSelectors{
	Row:       "table.offers tr.wrap",
	Link:      "a.link",
	Title:     "a strong",
	Published: ".breadcrumb:nth-child(2)",
	NextPage:  "[data-cy=page-link-next]",
}

var detailSelectors = map[listing.SourceSite]DetailSelectors{
	listing.SiteOLX: {
		Description: "div.clr.large, [data-cy=ad_description]",
		Location:    ".show-map-link strong",
		Price:       "[data-testid=ad-price-container] h3, .price-label strong",
		Params:      "ul li p, table.item td",
		RentLabel:   "czynsz",
	},
	listing.SiteOtodom: {
		Description: "section.section-description, [data-cy=adPageAdDescription]",
		Location:    "header a",
		Price:       "[data-cy=adPageHeaderPrice], header strong",
		Params:      "section.section-overview li, [aria-label=Czynsz]",
		RentLabel:   "czynsz",
	},
}

// SelectorsFor returns the detail rules for a site, falling back to OLX.
func SelectorsFor(site listing.SourceSite) DetailSelectors {
	if s, ok := detailSelectors[site]; ok {
		return s
	}
	return detailSelectors[listing.SiteOLX]
}
