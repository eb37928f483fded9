package config

import "time"

// Config holds runtime settings for the lifedash CLI.
//
// Units: OnlineCheckInterval and SettingsDebounce are time.Duration values.
type Config struct {
	ServerEndpointAddr  string
	RealtimeURL         string
	CachePath           string
	CachePrefix         string
	CachePassphrase     string
	AccessToken         string
	OnlineCheckInterval time.Duration
	SettingsDebounce    time.Duration
	LogFile             string
	LogLevel            string
}

// LoadDefaults populates c with sensible defaults. An empty CachePath keeps
// the cache in memory.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.RealtimeURL = "ws://127.0.0.1:8081"
	c.CachePath = ""
	c.CachePrefix = "lifedash"
	c.CachePassphrase = ""
	c.AccessToken = ""
	c.OnlineCheckInterval = 3 * time.Second
	c.SettingsDebounce = 300 * time.Millisecond
	c.LogFile = ""
	c.LogLevel = "info"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
