package subscription

import (
	"time"

	"github.com/Fiszcz/OLX-flats-notificator/app/classify"
	"github.com/Fiszcz/OLX-flats-notificator/app/listing"
	"github.com/Fiszcz/OLX-flats-notificator/app/notify"
)

const (
	SourceHTML = "html"
	SourceFeed = "feed"
)

// Config describes one filter URL to watch.
type Config struct {
	Name      string    // Derived from filename (without .yml extension)
	URL       string    `yaml:"url"`
	Source    string    `yaml:"source"` // html (default) or feed
	Site      string    `yaml:"site"`   // forces detail-page rules; detected from each URL when empty
	Settings  Settings  `yaml:"settings"`
	Limits    Limits    `yaml:"limits"`
	Transport Transport `yaml:"transport"`
	Location  Location  `yaml:"location"`
	Notify    Notify    `yaml:"notify"`
}

type Settings struct {
	Enabled       bool     `yaml:"enabled"`
	CheckInterval int      `yaml:"check_interval"` // minutes
	MaxPages      int      `yaml:"max_pages"`
	ItemDelay     Duration `yaml:"item_delay"`
	Timeout       Duration `yaml:"timeout"`
	Tracking      string   `yaml:"tracking"` // set or window
	PersistSeen   bool     `yaml:"persist_seen"`
}

// Limits are whole currency units; zero means no limit.
type Limits struct {
	MaxRent          int `yaml:"max_rent"`
	MaxPriceWithRent int `yaml:"max_price_with_rent"`
}

type Transport struct {
	Mode         string        `yaml:"mode"`
	Departure    Departure     `yaml:"departure"`
	Destinations []Destination `yaml:"destinations"`
}

type Departure struct {
	Weekday string `yaml:"weekday"`
	Time    string `yaml:"time"` // HH:MM
}

type Destination struct {
	Location   string `yaml:"location"`
	MaxMinutes int    `yaml:"max_minutes"`
}

type Location struct {
	PerfectPhrases []string `yaml:"perfect_phrases"`
	Markers        []string `yaml:"markers"`
}

type Notify struct {
	SendWorse bool `yaml:"send_worse"`
	Compose   bool `yaml:"compose"`
}

func (c *Config) CheckInterval() time.Duration {
	return time.Duration(c.Settings.CheckInterval) * time.Minute
}

func (c *Config) ClassifyLimits() classify.Limits {
	var limits classify.Limits
	if c.Limits.MaxRent > 0 {
		m := listing.Units(int64(c.Limits.MaxRent))
		limits.MaxRent = &m
	}
	if c.Limits.MaxPriceWithRent > 0 {
		m := listing.Units(int64(c.Limits.MaxPriceWithRent))
		limits.MaxPriceWithRent = &m
	}
	return limits
}

func (c *Config) NotifyPolicy() notify.Policy {
	return notify.Policy{
		SendWorse:             c.Notify.SendWorse,
		ComposeIntoOneMessage: c.Notify.Compose,
	}
}
