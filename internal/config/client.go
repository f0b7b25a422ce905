package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ClientConfig is the device-side configuration of the fitito CLI.
type ClientConfig struct {
	Client ClientSection `yaml:"client"`
}

// ClientSection holds the device settings under the "client" key.
type ClientSection struct {
	ServerURL string `yaml:"server_url"`
	APIKey    string `yaml:"api_key"`
	// StateDir holds the local SQLite database.
	StateDir  string `yaml:"state_dir"`
	ProfileID int    `yaml:"profile_id"`
	// Timezone names the calendar used to derive session dates. Empty means
	// the device's local zone.
	Timezone string `yaml:"timezone"`

	SyncInterval   time.Duration `yaml:"sync_interval"`
	ProbeInterval  time.Duration `yaml:"probe_interval"`
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// MirrorProgress queues a snapshot of the session after every mutation so
	// the server can follow an in-progress workout.
	MirrorProgress   bool `yaml:"mirror_progress"`
	HistoryCacheSize int  `yaml:"history_cache_size"`
}

// Location resolves Timezone.
func (c ClientSection) Location() (*time.Location, error) {
	return loadLocation(c.Timezone)
}

func defaultClient() *ClientConfig {
	home, _ := os.UserHomeDir()
	return &ClientConfig{Client: ClientSection{
		StateDir:         filepath.Join(home, ".fitito"),
		ProfileID:        1,
		SyncInterval:     5 * time.Minute,
		ProbeInterval:    15 * time.Second,
		RequestTimeout:   15 * time.Second,
		HistoryCacheSize: 128,
	}}
}

// LoadClient reads the client config. A missing file is not an error: the
// defaults plus FITITO_CLIENT_* environment variables are used instead.
//
//	FITITO_CLIENT_SERVER_URL, FITITO_CLIENT_API_KEY, FITITO_CLIENT_STATE_DIR,
//	FITITO_CLIENT_PROFILE_ID, FITITO_CLIENT_TIMEZONE,
//	FITITO_CLIENT_SYNC_INTERVAL, FITITO_CLIENT_PROBE_INTERVAL,
//	FITITO_CLIENT_REQUEST_TIMEOUT, FITITO_CLIENT_MIRROR_PROGRESS,
//	FITITO_CLIENT_HISTORY_CACHE_SIZE
func LoadClient(path string) (*ClientConfig, error) {
	cfg := defaultClient()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	c := &cfg.Client
	envString("FITITO_CLIENT_SERVER_URL", &c.ServerURL)
	envString("FITITO_CLIENT_API_KEY", &c.APIKey)
	envString("FITITO_CLIENT_STATE_DIR", &c.StateDir)
	envInt("FITITO_CLIENT_PROFILE_ID", &c.ProfileID)
	envString("FITITO_CLIENT_TIMEZONE", &c.Timezone)
	envDuration("FITITO_CLIENT_SYNC_INTERVAL", &c.SyncInterval)
	envDuration("FITITO_CLIENT_PROBE_INTERVAL", &c.ProbeInterval)
	envDuration("FITITO_CLIENT_REQUEST_TIMEOUT", &c.RequestTimeout)
	envBool("FITITO_CLIENT_MIRROR_PROGRESS", &c.MirrorProgress)
	envInt("FITITO_CLIENT_HISTORY_CACHE_SIZE", &c.HistoryCacheSize)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func (c *ClientConfig) validate() error {
	if c.Client.ServerURL == "" {
		return fmt.Errorf("client.server_url is required")
	}
	if c.Client.StateDir == "" {
		return fmt.Errorf("client.state_dir is required")
	}
	if c.Client.ProfileID <= 0 {
		return fmt.Errorf("client.profile_id must be positive")
	}
	if c.Client.SyncInterval < 0 || c.Client.ProbeInterval < 0 {
		return fmt.Errorf("client intervals must not be negative")
	}
	if _, err := c.Client.Location(); err != nil {
		return err
	}
	return nil
}
