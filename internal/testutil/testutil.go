package testutil

import (
	"os"
	"testing"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/voxpipe/voxpipe/internal/config"
)

// TestConfig returns a valid configuration for testing.
func TestConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Providers = map[string]config.ProviderConfig{
		"openai": {APIKey: "test-api-key"},
	}
	cfg.Notifications = config.NotificationsConfig{
		Enabled: true,
		Type:    "log",
	}
	return cfg
}

// WriteConfigFile writes cfg where config.Load will find it. Callers are
// expected to have pointed XDG_CONFIG_HOME at a temp directory first.
func WriteConfigFile(t *testing.T, cfg *config.Config) string {
	t.Helper()

	path, err := config.GetConfigPath()
	if err != nil {
		t.Fatalf("Failed to resolve config path: %v", err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create config file: %v", err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		t.Fatalf("Failed to encode config: %v", err)
	}
	return path
}

// WaitForCondition waits for a condition to be true or fails the test.
func WaitForCondition(t *testing.T, condition func() bool, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Condition not met within %v", timeout)
}
