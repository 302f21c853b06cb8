package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Fiszcz/OLX-flats-notificator/app/cfg"
	"github.com/Fiszcz/OLX-flats-notificator/app/commute"
	"github.com/Fiszcz/OLX-flats-notificator/app/database"
	"github.com/Fiszcz/OLX-flats-notificator/app/freshness"
	"github.com/Fiszcz/OLX-flats-notificator/app/intake"
	"github.com/Fiszcz/OLX-flats-notificator/app/listing"
	"github.com/Fiszcz/OLX-flats-notificator/app/location"
	"github.com/Fiszcz/OLX-flats-notificator/app/notify"
	"github.com/Fiszcz/OLX-flats-notificator/app/scrape"
	"github.com/Fiszcz/OLX-flats-notificator/app/subscription"
	"github.com/Fiszcz/OLX-flats-notificator/app/tasks"
)

// deps are the process-wide collaborators shared by every pipeline.
type deps struct {
	appCfg       *cfg.Cfg
	httpClient   *http.Client
	commuteCache commute.ResultCache
	seenRepo     database.SeenRepository
	listingRepo  database.ListingRepository
	outboxRepo   database.OutboxRepository
}

// registry maps subscription names to their pipelines. It is built once at
// startup and only read afterwards.
type registry map[string]*intake.Pipeline

func (r registry) lookup(name string) (tasks.Poller, bool) {
	p, ok := r[name]
	if !ok {
		return nil, false
	}
	return p, true
}

func buildRegistry(configs map[string]*subscription.Config, d deps) (registry, error) {
	reg := make(registry, len(configs))
	for name, config := range configs {
		p, err := buildPipeline(config, d)
		if err != nil {
			return nil, fmt.Errorf("subscription %s: %w", name, err)
		}
		reg[name] = p
	}
	return reg, nil
}

func buildPipeline(config *subscription.Config, d deps) (*intake.Pipeline, error) {
	userAgent := d.appCfg.UserAgent
	if userAgent == "" {
		userAgent = scrape.DefaultUserAgent
	}
	timeout := config.Settings.Timeout.Duration

	var site listing.SourceSite
	if config.Site != "" {
		s, err := listing.ParseSite(config.Site)
		if err != nil {
			return nil, err
		}
		site = s
	}

	var source intake.ListingSource
	switch config.Source {
	case subscription.SourceFeed:
		source = scrape.NewFeedSource(d.httpClient, userAgent)
	default:
		source = scrape.NewIndexScraper(userAgent, timeout, scrape.DefaultIndexSelectors)
	}

	tracker, err := buildTracker(config, d.seenRepo)
	if err != nil {
		return nil, err
	}

	collab := intake.Collaborators{
		Source:    source,
		Details:   scrape.NewDetailFetcher(d.httpClient, userAgent, timeout),
		Extractor: location.NewExtractor(config.Location.PerfectPhrases, config.Location.Markers),
		Tracker:   tracker,
		Dispatcher: notify.MultiDispatcher{
			notify.NewLogDispatcher(),
			notify.NewOutboxDispatcher(d.outboxRepo),
		},
		Recorder: d.listingRepo,
	}

	// assigned only when non-nil so the interface stays nil
	if client, err := buildCommute(config, d); err != nil {
		return nil, err
	} else if client != nil {
		collab.Commute = client
	}

	return intake.NewPipeline(intake.Options{
		Subscription: config.Name,
		URL:          config.URL,
		Site:         site,
		MaxPages:     config.Settings.MaxPages,
		ItemDelay:    config.Settings.ItemDelay.Duration,
		Policy:       config.NotifyPolicy(),
		Limits:       config.ClassifyLimits(),
	}, collab), nil
}

func buildTracker(config *subscription.Config, seenRepo database.SeenRepository) (freshness.Tracker, error) {
	switch {
	case config.Settings.Tracking == freshness.ModeWindow:
		return freshness.NewWindow(), nil
	case config.Settings.PersistSeen:
		return freshness.NewPersistentSeenSet(config.Name, seenRepo)
	default:
		return freshness.NewSeenSet(), nil
	}
}

// buildCommute returns nil when the subscription has no destinations or no
// directions key is configured.
func buildCommute(config *subscription.Config, d deps) (*commute.Client, error) {
	if len(config.Transport.Destinations) == 0 || !d.appCfg.CommuteEnabled() {
		return nil, nil
	}

	weekday, hour, minute, err := subscription.ParseDeparture(config.Transport.Departure.Weekday, config.Transport.Departure.Time)
	if err != nil {
		return nil, err
	}

	destinations := make([]commute.Destination, 0, len(config.Transport.Destinations))
	for _, dest := range config.Transport.Destinations {
		destinations = append(destinations, commute.Destination{
			Location:   dest.Location,
			MaxMinutes: dest.MaxMinutes,
		})
	}

	return commute.NewClient(commute.Options{
		BaseURL:      d.appCfg.MapsBaseURL,
		APIKey:       d.appCfg.MapsAPIKey,
		Mode:         config.Transport.Mode,
		Destinations: destinations,
		Departure:    commute.NewDepartureTime(weekday, hour, minute, time.Now),
		HTTPClient:   d.httpClient,
		Cache:        d.commuteCache,
	}), nil
}
