package config

import (
	"path/filepath"
	"testing"
	"time"
)

const validClientYAML = `
client:
  server_url: "http://fitito.tailnet:8080"
  api_key: "device-key"
  state_dir: "/var/lib/fitito"
  profile_id: 7
  timezone: "Europe/Madrid"
  sync_interval: 2m
  mirror_progress: true
`

// TestLoadClientValid verifies YAML values and defaults for unset fields.
func TestLoadClientValid(t *testing.T) {
	cfg, err := LoadClient(writeTemp(t, validClientYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c := cfg.Client
	if c.ServerURL != "http://fitito.tailnet:8080" {
		t.Errorf("server_url = %q", c.ServerURL)
	}
	if c.ProfileID != 7 {
		t.Errorf("profile_id = %d, want 7", c.ProfileID)
	}
	if c.SyncInterval != 2*time.Minute {
		t.Errorf("sync_interval = %v, want 2m", c.SyncInterval)
	}
	if c.ProbeInterval != 15*time.Second {
		t.Errorf("probe_interval = %v, want default 15s", c.ProbeInterval)
	}
	if !c.MirrorProgress {
		t.Error("mirror_progress = false, want true")
	}
	loc, err := c.Location()
	if err != nil {
		t.Fatalf("Location: %v", err)
	}
	if loc.String() != "Europe/Madrid" {
		t.Errorf("location = %q, want Europe/Madrid", loc)
	}
}

// TestLoadClientMissingFileUsesEnv verifies a device can run from
// environment variables alone.
func TestLoadClientMissingFileUsesEnv(t *testing.T) {
	t.Setenv("FITITO_CLIENT_SERVER_URL", "http://localhost:8080")
	t.Setenv("FITITO_CLIENT_PROFILE_ID", "3")
	t.Setenv("FITITO_CLIENT_PROBE_INTERVAL", "5s")

	cfg, err := LoadClient(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Client.ProfileID != 3 {
		t.Errorf("profile_id = %d, want 3", cfg.Client.ProfileID)
	}
	if cfg.Client.ProbeInterval != 5*time.Second {
		t.Errorf("probe_interval = %v, want 5s", cfg.Client.ProbeInterval)
	}
	if cfg.Client.StateDir == "" {
		t.Error("state_dir default is empty")
	}
}

// TestLoadClientEnvOverridesFile verifies every tunable has an env override
// that wins over the file.
func TestLoadClientEnvOverridesFile(t *testing.T) {
	t.Setenv("FITITO_CLIENT_REQUEST_TIMEOUT", "3s")
	t.Setenv("FITITO_CLIENT_HISTORY_CACHE_SIZE", "16")
	t.Setenv("FITITO_CLIENT_SYNC_INTERVAL", "30s")

	cfg, err := LoadClient(writeTemp(t, validClientYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c := cfg.Client
	if c.RequestTimeout != 3*time.Second {
		t.Errorf("request_timeout = %v, want 3s", c.RequestTimeout)
	}
	if c.HistoryCacheSize != 16 {
		t.Errorf("history_cache_size = %d, want 16", c.HistoryCacheSize)
	}
	if c.SyncInterval != 30*time.Second {
		t.Errorf("sync_interval = %v, want 30s", c.SyncInterval)
	}
}

// TestLoadClientRequiresServerURL verifies the one field without a default.
func TestLoadClientRequiresServerURL(t *testing.T) {
	_, err := LoadClient(writeTemp(t, "client:\n  profile_id: 1\n"))
	if err == nil {
		t.Fatal("expected validation error for missing server_url")
	}
}

// TestLoadClientRejectsBadProfile verifies non-positive profile ids are refused.
func TestLoadClientRejectsBadProfile(t *testing.T) {
	t.Setenv("FITITO_CLIENT_PROFILE_ID", "0")
	_, err := LoadClient(writeTemp(t, validClientYAML))
	if err == nil {
		t.Fatal("expected validation error for profile_id 0")
	}
}
