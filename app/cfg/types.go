package cfg

import "time"

type Cfg struct {
	// Database configuration
	DBDriver string
	DBDSN    string

	// Application configuration
	SubscriptionsDir  string
	Port              string
	WorkerCount       int
	SchedulerInterval int
	APIAccessKey      string

	// Collaborators
	UserAgent   string
	MapsAPIKey  string
	MapsBaseURL string
	RedisAddr   string

	// Application metadata
	Timezone string
	Debug    bool
	Version  string
}

func (c *Cfg) SchedulerTick() time.Duration {
	return time.Duration(c.SchedulerInterval) * time.Second
}

// CommuteEnabled reports whether commute lookups can be made at all.
func (c *Cfg) CommuteEnabled() bool {
	return c.MapsAPIKey != ""
}
