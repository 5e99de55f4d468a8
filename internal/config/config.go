package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPath         = "/etc/bindays/config.yaml"
	DefaultBaseURL      = "https://maps.swindon.gov.uk/getdata.aspx"
	DefaultScrapeURL    = "https://www.swindon.gov.uk/info/20122/rubbish_and_recycling_collection_days"
	DefaultListen       = "127.0.0.1:8080"
	DefaultTimezone     = "Europe/London"
	DefaultRefreshCron  = "0 */6 * * *"
	DefaultPageSize     = 150
	DefaultTimeoutSec   = 15
	DefaultHorizonWeeks = 4
	DefaultLogLevel     = "info"
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the web API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// BaseURL is the council map-data endpoint used for both address search
	// and waste info.
	BaseURL string `yaml:"base_url" json:"base_url"`

	// ScrapeURL is the public collection-days page used by the browser path.
	ScrapeURL string `yaml:"scrape_url" json:"scrape_url"`

	PageSize       int `yaml:"page_size" json:"page_size"`
	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds"`

	// Timezone decides which calendar day counts as "today".
	Timezone string `yaml:"timezone" json:"timezone"`

	Listen string `yaml:"listen" json:"listen"`

	// RefreshCron is the cron schedule for re-fetching the served address.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// Postcode and HouseNumber select the address for serve mode and act as
	// defaults for one-shot lookups.
	Postcode    string `yaml:"postcode" json:"postcode"`
	HouseNumber string `yaml:"house_number" json:"house_number"`

	HorizonWeeks int  `yaml:"horizon_weeks" json:"horizon_weeks"`
	Headless     bool `yaml:"headless" json:"headless"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	// BasicAuth, if non-nil, protects every endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:        DefaultBaseURL,
		ScrapeURL:      DefaultScrapeURL,
		PageSize:       DefaultPageSize,
		TimeoutSeconds: DefaultTimeoutSec,
		Timezone:       DefaultTimezone,
		Listen:         DefaultListen,
		RefreshCron:    DefaultRefreshCron,
		HorizonWeeks:   DefaultHorizonWeeks,
		Headless:       true,
		LogLevel:       DefaultLogLevel,
	}
}

// Normalize fills in missing or out-of-range values with defaults.
// Headless is left alone: false is a legitimate choice.
func (c *Config) Normalize() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.ScrapeURL == "" {
		c.ScrapeURL = DefaultScrapeURL
	}
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = DefaultTimeoutSec
	}
	if c.Timezone == "" {
		c.Timezone = DefaultTimezone
	}
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.RefreshCron == "" {
		c.RefreshCron = DefaultRefreshCron
	}
	if c.HorizonWeeks <= 0 {
		c.HorizonWeeks = DefaultHorizonWeeks
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.BasicAuth != nil && (c.BasicAuth.Username == "" || c.BasicAuth.Password == "") {
		c.BasicAuth = nil
	}
}

// Timeout returns the HTTP timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Location resolves Timezone, falling back to time.Local when it is not a
// known IANA name.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local, err
	}
	return loc, nil
}

// Load loads configuration from the given YAML path.
//
// If the file does not exist, a default config is written there with 0600
// permissions and returned. Otherwise the YAML is read and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Caller decides whether an unwritable path is fatal.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600
// permissions, creating the parent directory if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".bindays-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}
