package subscription

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Fiszcz/OLX-flats-notificator/app/freshness"
	"github.com/Fiszcz/OLX-flats-notificator/app/listing"
	"gopkg.in/yaml.v3"
)

const (
	defaultCheckInterval = 10 // minutes
	defaultMaxPages      = 1
	defaultItemDelay     = time.Second
	defaultTimeout       = 30 * time.Second
	defaultTransportMode = "transit"
)

type ConfigCache struct {
	dir   string
	cache map[string]*Config
	mu    sync.RWMutex
}

func NewConfigCache(dir string) *ConfigCache {
	return &ConfigCache{
		dir:   dir,
		cache: make(map[string]*Config),
	}
}

// Run loads every *.yml file of the directory. A missing directory yields no
// subscriptions.
func (cc *ConfigCache) Run() error {
	if _, err := os.Stat(cc.dir); os.IsNotExist(err) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(cc.dir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	for _, file := range files {
		name := strings.TrimSuffix(filepath.Base(file), ".yml")

		config, err := cc.LoadConfig(name)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Configuration loaded", "subscription", name, "enabled", config.Settings.Enabled, "check_interval", config.CheckInterval())
	}

	return nil
}

func (cc *ConfigCache) LoadConfig(name string) (*Config, error) {
	configFile := filepath.Join(cc.dir, name+".yml")
	config, err := cc.parseConfig(configFile)
	if err != nil {
		return nil, err
	}

	config.Name = name

	if err := cc.validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configFile, err)
	}

	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.cache[config.Name] = config

	return config, nil
}

func (cc *ConfigCache) GetConfig(name string) (*Config, error) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	config, ok := cc.cache[name]
	if !ok {
		return nil, fmt.Errorf("subscription config with name '%s' not found", name)
	}
	return config, nil
}

func (cc *ConfigCache) GetConfigs() map[string]*Config {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	configsCopy := make(map[string]*Config, len(cc.cache))
	for k, v := range cc.cache {
		configsCopy[k] = v
	}
	return configsCopy
}

func (cc *ConfigCache) GetEnabledConfigs() map[string]*Config {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	enabled := make(map[string]*Config)
	for k, v := range cc.cache {
		if v.Settings.Enabled {
			enabled[k] = v
		}
	}
	return enabled
}

func (cc *ConfigCache) GetConfigCount() int {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return len(cc.cache)
}

func (cc *ConfigCache) parseConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	// subscriptions are enabled unless they say otherwise
	config := Config{Settings: Settings{Enabled: true}}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if config.Source == "" {
		config.Source = SourceHTML
	}
	if config.Settings.CheckInterval == 0 {
		config.Settings.CheckInterval = defaultCheckInterval
	}
	if config.Settings.MaxPages == 0 {
		config.Settings.MaxPages = defaultMaxPages
	}
	if config.Settings.ItemDelay.Duration == 0 {
		config.Settings.ItemDelay = DurationFrom(defaultItemDelay)
	}
	if config.Settings.Timeout.Duration == 0 {
		config.Settings.Timeout = DurationFrom(defaultTimeout)
	}
	if config.Settings.Tracking == "" {
		config.Settings.Tracking = freshness.ModeSet
	}
	if config.Transport.Mode == "" {
		config.Transport.Mode = defaultTransportMode
	}

	return &config, nil
}

func (cc *ConfigCache) validateConfig(config *Config) error {
	if config == nil {
		return fmt.Errorf("config is nil")
	}

	requiredFields := map[string]string{
		"subscription name": config.Name,
		"subscription URL":  config.URL,
	}

	for fieldName, fieldValue := range requiredFields {
		if fieldValue == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
	}

	if !strings.HasPrefix(config.URL, "http://") && !strings.HasPrefix(config.URL, "https://") {
		return fmt.Errorf("subscription URL must be http(s): %s", config.URL)
	}

	switch config.Source {
	case SourceHTML, SourceFeed:
	default:
		return fmt.Errorf("invalid source: %s", config.Source)
	}

	if config.Site != "" {
		if _, err := listing.ParseSite(config.Site); err != nil {
			return err
		}
	}

	nonNegativeFields := map[string]int{
		"check interval":      config.Settings.CheckInterval,
		"max pages":           config.Settings.MaxPages,
		"max rent":            config.Limits.MaxRent,
		"max price with rent": config.Limits.MaxPriceWithRent,
	}

	for fieldName, fieldValue := range nonNegativeFields {
		if fieldValue < 0 {
			return fmt.Errorf("%s must be non-negative", fieldName)
		}
	}

	if config.Settings.ItemDelay.Duration < 0 || config.Settings.Timeout.Duration < 0 {
		return fmt.Errorf("item delay and timeout must be non-negative")
	}

	switch config.Settings.Tracking {
	case freshness.ModeSet, freshness.ModeWindow:
	default:
		return fmt.Errorf("invalid tracking mode: %s", config.Settings.Tracking)
	}

	if config.Settings.PersistSeen && config.Settings.Tracking != freshness.ModeSet {
		return fmt.Errorf("persist_seen requires tracking mode %q", freshness.ModeSet)
	}

	for i, dest := range config.Transport.Destinations {
		if strings.TrimSpace(dest.Location) == "" {
			return fmt.Errorf("destination at index %d must have a location", i)
		}
		if dest.MaxMinutes <= 0 {
			return fmt.Errorf("destination at index %d must have positive max_minutes", i)
		}
	}

	if d := config.Transport.Departure; d.Weekday != "" || d.Time != "" {
		if _, _, _, err := ParseDeparture(d.Weekday, d.Time); err != nil {
			return err
		}
	}

	return nil
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseDeparture reads the departure weekday and HH:MM clock. Empty values
// default to Monday 12:00.
func ParseDeparture(weekday, clock string) (time.Weekday, int, int, error) {
	day := time.Monday
	if weekday != "" {
		d, ok := weekdays[strings.ToLower(strings.TrimSpace(weekday))]
		if !ok {
			return 0, 0, 0, fmt.Errorf("invalid departure weekday: %s", weekday)
		}
		day = d
	}

	hour, minute := 12, 0
	if clock != "" {
		t, err := time.Parse("15:04", strings.TrimSpace(clock))
		if err != nil {
			return 0, 0, 0, fmt.Errorf("invalid departure time %q: %w", clock, err)
		}
		hour, minute = t.Hour(), t.Minute()
	}

	return day, hour, minute, nil
}
