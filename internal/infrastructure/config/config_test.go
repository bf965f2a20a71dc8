package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MASSIVE_API_KEY", "")
	t.Setenv("FINNHUB_API_KEY", "")
	path := writeConfig(t, `
[app]
env_file = ""
`)
	// 指向不存在的默认 .env 时不报错
	t.Chdir(t.TempDir())

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.Symbols.List) != 23 {
		t.Errorf("expected 23 default symbols, got %d", len(cfg.Symbols.List))
	}
	if cfg.Stream.MaxReconnectAttempts != 10 || cfg.ReconnectDelay() != 2*time.Second {
		t.Errorf("unexpected stream defaults %+v", cfg.Stream)
	}
	if cfg.StallThreshold() != 20*time.Second || cfg.StallCheckInterval() != 10*time.Second {
		t.Errorf("unexpected stall defaults %+v", cfg.Stream)
	}
	if cfg.SimulationInterval() != time.Second || cfg.Simulation.MaxTick != 0.0005 {
		t.Errorf("unexpected simulation defaults %+v", cfg.Simulation)
	}
	got := cfg.EnabledProviders()
	if len(got) != 2 || got[0] != "massive" || got[1] != "finnhub" {
		t.Errorf("unexpected default providers %v", got)
	}
	if cfg.App.ReferencePrices["AAPL"] != 181 {
		t.Errorf("expected default reference price, got %v", cfg.App.ReferencePrices["AAPL"])
	}
}

func TestLoadProvidersAndEnv(t *testing.T) {
	t.Setenv("FH_KEY", "from-env")
	t.Setenv("MASSIVE_API_KEY", "")
	t.Chdir(t.TempDir())

	path := writeConfig(t, `
[app]
preferred_provider = "finnhub"

[symbols]
list = [" aapl ", "MSFT", "aapl", ""]

[providers.massive]
enabled = true
priority = 5

[providers.finnhub]
enabled = true
priority = 1
api_key_env = "FH_KEY"

[providers.finnhub.dialect]
price_keys = ["px"]

[providers.relay]
enabled = false
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.Symbols.List) != 2 || cfg.Symbols.List[0] != "AAPL" {
		t.Errorf("unexpected symbols %v", cfg.Symbols.List)
	}
	got := cfg.EnabledProviders()
	if len(got) != 2 || got[0] != "finnhub" || got[1] != "massive" {
		t.Errorf("unexpected provider order %v", got)
	}
	fh := cfg.Providers["finnhub"]
	if fh.APIKey != "from-env" {
		t.Errorf("expected key from env, got %q", fh.APIKey)
	}
	if s := fh.Settings(); len(s.Dialect.PriceKeys) != 1 || s.Dialect.PriceKeys[0] != "px" {
		t.Errorf("unexpected dialect override %+v", s.Dialect)
	}
	if cfg.Providers["massive"].APIKey != "" {
		t.Errorf("expected massive without key")
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, "test.env")
	if err := os.WriteFile(envPath, []byte("TICKFEED_TEST_KEY=dotenv\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TICKFEED_TEST_KEY", "")
	os.Unsetenv("TICKFEED_TEST_KEY")

	path := writeConfig(t, `
[app]
env_file = "`+filepath.ToSlash(envPath)+`"

[providers.massive]
enabled = true
api_key_env = "TICKFEED_TEST_KEY"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Providers["massive"].APIKey != "dotenv" {
		t.Errorf("expected key from env file, got %q", cfg.Providers["massive"].APIKey)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"relay without url", "[providers.relay]\nenabled = true\n"},
		{"unknown preferred", "[app]\npreferred_provider = \"nope\"\n"},
		{"postgres without dsn", "[postgres]\nenabled = true\n"},
		{"tick too large", "[simulation]\nmax_tick = 2.0\n"},
	}
	t.Chdir(t.TempDir())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.body)); err == nil {
				t.Errorf("expected validation error")
			}
		})
	}
}
