package appconf

import "time"

const (
	DefaultPort            = 4000
	DefaultRateLimit       = 100
	DefaultDataPath        = "./stopboard.db"
	DefaultFeedEndpoint    = "http://localhost:4000/api/stop-monitoring"
	DefaultStopID          = "300432"
	DefaultRefreshSeconds  = 30
	DefaultMaxArrivals     = 3
	DefaultGatewayUpstream = "https://bustime.mta.info/api/siri/stop-monitoring.json"
	DefaultGatewayTimeout  = 15 * time.Second

	// GatewayKeyEnvVar is consulted when no gateway key is configured.
	GatewayKeyEnvVar = "MTA_API_KEY"
)

// Config is the resolved runtime configuration of the stopboard process.
type Config struct {
	Port      int
	Env       Environment
	Verbose   bool
	RateLimit int
	DataPath  string
	AssetsDir string
	// AdminKeys guard the endpoints that change board settings. Empty means
	// the endpoints are open.
	AdminKeys []string
	Board     BoardDefaults
	Gateway   GatewayConfig
}

// BoardDefaults seeds the board settings when nothing has been persisted yet.
type BoardDefaults struct {
	FeedEndpoint         string
	StopID               string
	RefreshSeconds       int
	MaxDisplayedArrivals int
}

// GatewayConfig controls the built-in stop-monitoring proxy.
type GatewayConfig struct {
	Enabled     bool
	UpstreamURL string
	APIKey      string
	Timeout     time.Duration
}

// DefaultConfig returns the configuration used when no file or flags are given.
func DefaultConfig() Config {
	return Config{
		Port:      DefaultPort,
		Env:       Development,
		RateLimit: DefaultRateLimit,
		DataPath:  DefaultDataPath,
		Board: BoardDefaults{
			FeedEndpoint:         DefaultFeedEndpoint,
			StopID:               DefaultStopID,
			RefreshSeconds:       DefaultRefreshSeconds,
			MaxDisplayedArrivals: DefaultMaxArrivals,
		},
		Gateway: GatewayConfig{
			Enabled:     true,
			UpstreamURL: DefaultGatewayUpstream,
			Timeout:     DefaultGatewayTimeout,
		},
	}
}
