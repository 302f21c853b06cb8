package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/Fiszcz/OLX-flats-notificator/app/classify"
	"github.com/Fiszcz/OLX-flats-notificator/app/database"
	"github.com/Fiszcz/OLX-flats-notificator/app/freshness"
	"github.com/Fiszcz/OLX-flats-notificator/app/listing"
	"github.com/Fiszcz/OLX-flats-notificator/app/location"
	"github.com/Fiszcz/OLX-flats-notificator/app/notify"
)

// ErrCycleInProgress is returned when a cycle is triggered while the previous
// one for the same subscription is still running.
var ErrCycleInProgress = errors.New("intake cycle already in progress")

// dispatchTimeout bounds delivery of what an interrupted cycle classified.
const dispatchTimeout = 30 * time.Second

type ListingSource interface {
	FetchListingPage(ctx context.Context, url string) (listing.Page, error)
}

type DetailSource interface {
	FetchListingDetail(ctx context.Context, rec listing.Record) (listing.Detail, error)
}

type CommuteChecker interface {
	Check(ctx context.Context, origin string) []listing.TransportResult
}

type ListingRecorder interface {
	UpsertListing(l database.Listing) error
}

type Options struct {
	Subscription string
	URL          string
	Site         listing.SourceSite // overrides per-record site detection when set
	MaxPages     int
	ItemDelay    time.Duration
	Policy       notify.Policy
	Limits       classify.Limits
}

// Collaborators are the outside world of one pipeline. Commute and Recorder
// are optional.
type Collaborators struct {
	Source     ListingSource
	Details    DetailSource
	Commute    CommuteChecker
	Extractor  *location.Extractor
	Tracker    freshness.Tracker
	Dispatcher notify.Dispatcher
	Recorder   ListingRecorder
}

type CycleReport struct {
	Subscription   string
	Pages          int
	Polled         int
	New            int
	DetailFailures int
	Classified     int
	Worse          int
	Batches        int
	Unprocessed    int   // new listings left for the next poll
	Interrupted    error // why the cycle stopped early, if it did
	DispatchErr    error
	Duration       time.Duration
}

// Pipeline runs polling cycles for one subscription. It owns the tracker and
// the accumulator; RunCycle refuses to overlap with itself.
type Pipeline struct {
	opts        Options
	source      ListingSource
	details     DetailSource
	commute     CommuteChecker
	extractor   *location.Extractor
	tracker     freshness.Tracker
	classifier  *classify.Classifier
	accumulator *notify.Accumulator
	dispatcher  notify.Dispatcher
	recorder    ListingRecorder
	limiter     *rate.Limiter

	running atomic.Bool
}

func NewPipeline(opts Options, c Collaborators) *Pipeline {
	if opts.MaxPages < 1 {
		opts.MaxPages = 1
	}

	limit := rate.Inf
	if opts.ItemDelay > 0 {
		limit = rate.Every(opts.ItemDelay)
	}

	extractor := c.Extractor
	if extractor == nil {
		extractor = location.NewExtractor(nil, nil)
	}
	tracker := c.Tracker
	if tracker == nil {
		tracker = freshness.NewSeenSet()
	}
	dispatcher := c.Dispatcher
	if dispatcher == nil {
		dispatcher = notify.NewLogDispatcher()
	}

	return &Pipeline{
		opts:        opts,
		source:      c.Source,
		details:     c.Details,
		commute:     c.Commute,
		extractor:   extractor,
		tracker:     tracker,
		classifier:  classify.NewClassifier(opts.Limits),
		accumulator: notify.NewAccumulator(),
		dispatcher:  dispatcher,
		recorder:    c.Recorder,
		limiter:     rate.NewLimiter(limit, 1),
	}
}

func (p *Pipeline) Subscription() string {
	return p.opts.Subscription
}

// RunCycle polls the subscription once. Only a failure to fetch the listing
// pages is returned as an error; per-listing and dispatch failures are logged
// and reflected in the report.
//
// A cancelled or expired context stops the cycle between listings. What was
// classified so far is still dispatched, and listings not yet processed are
// left unmarked so the next poll reports them again.
func (p *Pipeline) RunCycle(ctx context.Context) (CycleReport, error) {
	if !p.running.CompareAndSwap(false, true) {
		return CycleReport{}, ErrCycleInProgress
	}
	defer p.running.Store(false)

	start := time.Now()
	report := CycleReport{Subscription: p.opts.Subscription}

	p.accumulator.Reset()
	p.tracker.Advance()

	records, pages, err := p.fetchRecords(ctx)
	report.Pages = pages
	if err != nil {
		report.Duration = time.Since(start)
		return report, fmt.Errorf("failed to fetch listings: %w", err)
	}
	report.Polled = len(records)

	fresh := p.filterFresh(records)
	report.New = len(fresh)

	processed := 0
	for _, rec := range fresh {
		if err := p.limiter.Wait(ctx); err != nil {
			report.Interrupted = err
			break
		}

		v, err := p.processListing(ctx, rec)
		if err != nil && ctx.Err() != nil {
			report.Interrupted = ctx.Err()
			break
		}

		p.tracker.MarkSeen(rec)
		processed++

		if err != nil {
			slog.Warn("Cannot load listing details",
				"subscription", p.opts.Subscription,
				"listing", rec.ID,
				"error", err)
			report.DetailFailures++
			continue
		}

		p.accumulator.Add(v)
		report.Classified++
		if v.IsWorse {
			report.Worse++
		}
	}
	report.Unprocessed = len(fresh) - processed

	if report.Interrupted != nil {
		slog.Warn("Cycle interrupted, remaining listings left for the next poll",
			"subscription", p.opts.Subscription,
			"unprocessed", report.Unprocessed,
			"error", report.Interrupted)
	}

	batches := p.accumulator.Batches(p.opts.Policy)
	report.Batches = len(batches)
	if len(batches) > 0 {
		dispatchCtx := ctx
		if ctx.Err() != nil {
			var cancel context.CancelFunc
			dispatchCtx, cancel = context.WithTimeout(context.WithoutCancel(ctx), dispatchTimeout)
			defer cancel()
		}

		if err := p.dispatcher.Dispatch(dispatchCtx, p.opts.Subscription, batches); err != nil {
			slog.Error("Failed to dispatch notifications",
				"subscription", p.opts.Subscription,
				"batches", len(batches),
				"error", err)
			report.DispatchErr = err
		}
	}

	p.recordListings(report.DispatchErr == nil)

	report.Duration = time.Since(start)
	return report, nil
}

func (p *Pipeline) fetchRecords(ctx context.Context) ([]listing.Record, int, error) {
	var records []listing.Record
	pageURL := p.opts.URL
	pages := 0

	for pageURL != "" && pages < p.opts.MaxPages {
		page, err := p.source.FetchListingPage(ctx, pageURL)
		if err != nil {
			return nil, pages, fmt.Errorf("page %d (%s): %w", pages+1, pageURL, err)
		}
		pages++
		records = append(records, page.Records...)
		pageURL = page.NextURL
	}

	return records, pages, nil
}

// filterFresh returns the new records in page order, each once. Records that
// are not new are marked seen right away; new ones only once processed.
func (p *Pipeline) filterFresh(records []listing.Record) []listing.Record {
	if primer, ok := p.tracker.(freshness.Primer); ok && !primer.Primed() {
		primer.PrimeFrom(records)
	}

	var fresh []listing.Record
	queued := make(map[string]struct{})
	for _, rec := range records {
		if p.opts.Site != "" {
			rec.Site = p.opts.Site
		}
		if !p.tracker.IsNew(rec) {
			p.tracker.MarkSeen(rec)
			continue
		}
		if _, dup := queued[rec.ID]; dup {
			continue
		}
		queued[rec.ID] = struct{}{}
		fresh = append(fresh, rec)
	}
	return fresh
}

func (p *Pipeline) processListing(ctx context.Context, rec listing.Record) (classify.Verdict, error) {
	detail, err := p.details.FetchListingDetail(ctx, rec)
	if err != nil {
		return classify.Verdict{}, err
	}

	text := listing.Description(rec, detail)
	if text == "" {
		slog.Warn("Listing has no description", "subscription", p.opts.Subscription, "listing", rec.ID)
	}

	in := classify.Input{
		Record:   rec,
		Detail:   detail,
		Location: p.extractor.Extract(rec.Title + ", " + text),
	}

	if in.Location.Kind != location.PerfectMatch && p.commute != nil {
		if origin := classify.ResolveLocation(detail, in.Location); origin != "" {
			in.Transport = p.commute.Check(ctx, origin)
		} else {
			slog.Warn("Cannot determine listing location", "subscription", p.opts.Subscription, "listing", rec.ID)
		}
	}

	return p.classifier.Classify(in), nil
}

func (p *Pipeline) recordListings(dispatched bool) {
	if p.recorder == nil {
		return
	}

	for _, v := range p.accumulator.Verdicts() {
		l := database.Listing{
			Subscription:      p.opts.Subscription,
			ListingID:         v.Record.ID,
			Title:             v.Record.Title,
			PublishedAt:       v.Record.PublishedAt.String(),
			Location:          v.LocationText,
			RentCents:         int64(v.Rent),
			IsPerfectLocation: v.IsPerfectLocation,
			IsWorse:           v.IsWorse,
			Reasons:           v.Reasons,
			Notified:          dispatched && (!v.IsWorse || p.opts.Policy.SendWorse),
		}
		if v.HasPrice {
			price := int64(v.Price)
			l.PriceCents = &price
		}

		if err := p.recorder.UpsertListing(l); err != nil {
			slog.Warn("Failed to record listing",
				"subscription", p.opts.Subscription,
				"listing", v.Record.ID,
				"error", err)
		}
	}
}
