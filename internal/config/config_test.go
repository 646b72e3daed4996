package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeTestConfig points SX_CONFIG_DIR at a temp dir holding cfg.
func writeTestConfig(t *testing.T, cfg *Config) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("SX_CONFIG_DIR", dir)
	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.json"), data, 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return dir
}

func boolPtr(b bool) *bool { return &b }

func TestAPIURLDefault(t *testing.T) {
	t.Setenv("SX_CONFIG_DIR", t.TempDir())
	t.Setenv("SX_API_URL", "")

	if got := GetAPIURL(); got != "http://localhost:8000/api/" {
		t.Fatalf("default api url: got %q", got)
	}
}

func TestAPIURLAddsTrailingSlash(t *testing.T) {
	t.Setenv("SX_CONFIG_DIR", t.TempDir())
	t.Setenv("SX_API_URL", "https://streetmix.net/api")

	if got := GetAPIURL(); got != "https://streetmix.net/api/" {
		t.Fatalf("api url: got %q, want trailing slash", got)
	}
}

func TestAPIURLFromConfig(t *testing.T) {
	writeTestConfig(t, &Config{APIURL: "https://example.test/api/"})
	t.Setenv("SX_API_URL", "")

	if got := GetAPIURL(); got != "https://example.test/api/" {
		t.Fatalf("config api url: got %q", got)
	}
}

func TestAPIURLEnvOverridesConfig(t *testing.T) {
	writeTestConfig(t, &Config{APIURL: "https://example.test/api/"})
	t.Setenv("SX_API_URL", "https://env.test/api/")

	if got := GetAPIURL(); got != "https://env.test/api/" {
		t.Fatalf("env api url: got %q", got)
	}
}

func TestSignInURLDerivedFromAPI(t *testing.T) {
	t.Setenv("SX_CONFIG_DIR", t.TempDir())
	t.Setenv("SX_API_URL", "https://streetmix.net/api/")
	t.Setenv("SX_SIGN_IN_URL", "")

	if got := GetSignInURL(); got != "https://streetmix.net/services/auth/twitter" {
		t.Fatalf("sign-in url: got %q", got)
	}
}

func TestReadOnly(t *testing.T) {
	writeTestConfig(t, &Config{ReadOnly: boolPtr(true)})
	t.Setenv("SX_READ_ONLY", "")
	if !IsReadOnly() {
		t.Error("expected read-only from config")
	}

	t.Setenv("SX_READ_ONLY", "0")
	if IsReadOnly() {
		t.Error("env should override config for read_only")
	}
}

func TestDurations(t *testing.T) {
	writeTestConfig(t, &Config{RequestTimeout: "5s", WatchInterval: "250ms"})
	t.Setenv("SX_REQUEST_TIMEOUT", "")
	t.Setenv("SX_WATCH_INTERVAL", "")

	if d := GetRequestTimeout(); d != 5*time.Second {
		t.Errorf("request timeout: got %v, want 5s", d)
	}
	if d := GetWatchInterval(); d != 250*time.Millisecond {
		t.Errorf("watch interval: got %v, want 250ms", d)
	}

	t.Setenv("SX_WATCH_INTERVAL", "not-a-duration")
	if d := GetWatchInterval(); d != 250*time.Millisecond {
		t.Errorf("invalid env should fall through to config, got %v", d)
	}

	t.Setenv("SX_REQUEST_TIMEOUT", "-1s")
	if d := GetRequestTimeout(); d != 5*time.Second {
		t.Errorf("negative env should fall through to config, got %v", d)
	}
}

func TestDurationDefaults(t *testing.T) {
	t.Setenv("SX_CONFIG_DIR", t.TempDir())
	t.Setenv("SX_REQUEST_TIMEOUT", "")
	t.Setenv("SX_WATCH_INTERVAL", "")

	if d := GetRequestTimeout(); d != 30*time.Second {
		t.Errorf("default request timeout: got %v", d)
	}
	if d := GetWatchInterval(); d != time.Second {
		t.Errorf("default watch interval: got %v", d)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Setenv("SX_CONFIG_DIR", t.TempDir())

	if err := Save(&Config{CallbackAddr: "127.0.0.1:9999", LogLevel: "debug"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	t.Setenv("SX_CALLBACK_ADDR", "")
	t.Setenv("SX_LOG_LEVEL", "")
	if got := GetCallbackAddr(); got != "127.0.0.1:9999" {
		t.Errorf("callback addr: got %q", got)
	}
	if got := GetLogLevel(); got != "debug" {
		t.Errorf("log level: got %q", got)
	}
	if got := GetLogFormat(); got != "text" {
		t.Errorf("log format default: got %q", got)
	}
}

func TestPaths(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SX_CONFIG_DIR", dir)

	db, err := StorageDBPath()
	if err != nil {
		t.Fatalf("storage path: %v", err)
	}
	if db != filepath.Join(dir, "storage.db") {
		t.Errorf("storage path: got %q", db)
	}
	jar, err := CookieJarPath()
	if err != nil {
		t.Fatalf("jar path: %v", err)
	}
	if jar != filepath.Join(dir, "cookies.json") {
		t.Errorf("jar path: got %q", jar)
	}
}
