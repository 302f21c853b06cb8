package classify

import (
	"fmt"

	"github.com/Fiszcz/OLX-flats-notificator/app/listing"
	"github.com/Fiszcz/OLX-flats-notificator/app/location"
)

// Limits are the optional budget ceilings of one subscription. A nil ceiling
// is not checked.
type Limits struct {
	MaxRent          *listing.Money
	MaxPriceWithRent *listing.Money
}

type Input struct {
	Record    listing.Record
	Detail    listing.Detail
	Location  location.Result
	Transport []listing.TransportResult
}

type Verdict struct {
	Record            listing.Record
	Detail            listing.Detail
	LocationText      string
	IsPerfectLocation bool
	Transport         []listing.TransportResult
	Rent              listing.Money
	Price             listing.Money
	HasPrice          bool
	IsWorse           bool
	Reasons           []string
}

type Classifier struct {
	limits Limits
}

func NewClassifier(limits Limits) *Classifier {
	return &Classifier{limits: limits}
}

func (c *Classifier) Classify(in Input) Verdict {
	v := Verdict{
		Record:            in.Record,
		Detail:            in.Detail,
		LocationText:      ResolveLocation(in.Detail, in.Location),
		IsPerfectLocation: in.Location.Kind == location.PerfectMatch,
		Transport:         in.Transport,
		Rent:              ParseRent(in.Detail.RentText),
	}
	v.Price, v.HasPrice = listing.ParseMoney(in.Detail.PriceText)

	for _, t := range in.Transport {
		if t.ExceedsBudget() {
			v.Reasons = append(v.Reasons, fmt.Sprintf("commute to %s takes %s, over %d min", t.Destination, t.DurationText, t.BudgetMinutes))
		}
	}

	if c.limits.MaxRent != nil && v.Rent > *c.limits.MaxRent {
		v.Reasons = append(v.Reasons, fmt.Sprintf("rent %s exceeds %s", v.Rent, *c.limits.MaxRent))
	}

	if c.limits.MaxPriceWithRent != nil && v.HasPrice {
		if total := v.Price + v.Rent; total > *c.limits.MaxPriceWithRent {
			v.Reasons = append(v.Reasons, fmt.Sprintf("price with rent %s exceeds %s", total, *c.limits.MaxPriceWithRent))
		}
	}

	v.IsWorse = len(v.Reasons) > 0

	return v
}

// ParseRent reads a scraped rent amount. Sites print "0 zł" or "1 zł" when
// the rent is included in the price, so both count as no rent.
func ParseRent(text string) listing.Money {
	rent, ok := listing.ParseMoney(text)
	if !ok || rent == listing.Units(1) {
		return 0
	}
	return rent
}

// ResolveLocation prefers the location field of the detail page and falls
// back to an address found in the listing text.
func ResolveLocation(detail listing.Detail, found location.Result) string {
	if detail.Location != "" {
		return detail.Location
	}
	if found.Kind == location.Address {
		return found.Text
	}
	return ""
}
