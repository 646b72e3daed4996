package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config is the sx client config stored at ~/.config/sx/config.json.
type Config struct {
	APIURL         string `json:"api_url,omitempty"`
	SignInURL      string `json:"sign_in_url,omitempty"`
	CallbackAddr   string `json:"callback_addr,omitempty"`
	ReadOnly       *bool  `json:"read_only,omitempty"`       // nil = default false
	RequestTimeout string `json:"request_timeout,omitempty"` // duration string, default "30s"
	WatchInterval  string `json:"watch_interval,omitempty"`  // duration string, default "1s"
	LogLevel       string `json:"log_level,omitempty"`
	LogFormat      string `json:"log_format,omitempty"`
}

const (
	defaultAPIURL         = "http://localhost:8000/api/"
	defaultCallbackAddr   = "127.0.0.1:8787"
	defaultLogLevel       = "warn"
	defaultLogFormat      = "text"
	configFile            = "config.json"
	storageFile           = "storage.db"
	cookieJarFile         = "cookies.json"
	defaultRequestTimeout = 30 * time.Second
	defaultWatchInterval  = time.Second
)

// Dir returns the config directory, creating it if necessary.
// Priority: SX_CONFIG_DIR env > ~/.config/sx.
func Dir() (string, error) {
	dir := os.Getenv("SX_CONFIG_DIR")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("get home dir: %w", err)
		}
		dir = filepath.Join(home, ".config", "sx")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	return dir, nil
}

// Load reads the config file. A missing file yields an empty config.
func Load() (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, configFile))
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", configFile, err)
	}
	return &cfg, nil
}

// Save writes the config file.
func Save(cfg *Config) error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, configFile), data, 0644)
}

// loadOrEmpty returns the config file contents, ignoring read errors.
// Getters fall back to defaults when the file is unreadable.
func loadOrEmpty() *Config {
	cfg, err := Load()
	if err != nil {
		return &Config{}
	}
	return cfg
}

// StorageDBPath returns the path of the durable local storage database.
func StorageDBPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, storageFile), nil
}

// CookieJarPath returns the path of the sign-in cookie jar.
func CookieJarPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, cookieJarFile), nil
}

// GetAPIURL returns the API base URL, always ending in a slash.
// Priority: SX_API_URL env > config.json > default.
func GetAPIURL() string {
	url := os.Getenv("SX_API_URL")
	if url == "" {
		url = loadOrEmpty().APIURL
	}
	if url == "" {
		url = defaultAPIURL
	}
	if !strings.HasSuffix(url, "/") {
		url += "/"
	}
	return url
}

// GetSignInURL returns the legacy sign-in entry point.
// Priority: SX_SIGN_IN_URL env > config.json > derived from the API URL.
func GetSignInURL() string {
	if v := os.Getenv("SX_SIGN_IN_URL"); v != "" {
		return v
	}
	if v := loadOrEmpty().SignInURL; v != "" {
		return v
	}
	return strings.TrimSuffix(GetAPIURL(), "api/") + "services/auth/twitter"
}

// GetCallbackAddr returns the loopback address for the sign-in redirect.
// Priority: SX_CALLBACK_ADDR env > config.json > default.
func GetCallbackAddr() string {
	if v := os.Getenv("SX_CALLBACK_ADDR"); v != "" {
		return v
	}
	if v := loadOrEmpty().CallbackAddr; v != "" {
		return v
	}
	return defaultCallbackAddr
}

// parseBoolEnv returns nil if env not set, pointer to bool if set.
func parseBoolEnv(envKey string) *bool {
	v := os.Getenv(envKey)
	if v == "" {
		return nil
	}
	v = strings.ToLower(v)
	if v == "1" || v == "true" {
		b := true
		return &b
	}
	if v == "0" || v == "false" {
		b := false
		return &b
	}
	return nil
}

// IsReadOnly reports whether this client may not create streets.
// Priority: SX_READ_ONLY env > config.json read_only > false
func IsReadOnly() bool {
	if v := parseBoolEnv("SX_READ_ONLY"); v != nil {
		return *v
	}
	if cfg := loadOrEmpty(); cfg.ReadOnly != nil {
		return *cfg.ReadOnly
	}
	return false
}

// GetRequestTimeout returns the HTTP request timeout.
// Priority: SX_REQUEST_TIMEOUT env > config.json request_timeout > 30s
func GetRequestTimeout() time.Duration {
	return durationSetting("SX_REQUEST_TIMEOUT", loadOrEmpty().RequestTimeout, defaultRequestTimeout)
}

// GetWatchInterval returns how often the storage watcher polls.
// Priority: SX_WATCH_INTERVAL env > config.json watch_interval > 1s
func GetWatchInterval() time.Duration {
	return durationSetting("SX_WATCH_INTERVAL", loadOrEmpty().WatchInterval, defaultWatchInterval)
}

func durationSetting(envKey, fileValue string, def time.Duration) time.Duration {
	if v := os.Getenv(envKey); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	if fileValue != "" {
		if d, err := time.ParseDuration(fileValue); err == nil && d > 0 {
			return d
		}
	}
	return def
}

// GetLogLevel returns the slog level name.
// Priority: SX_LOG_LEVEL env > config.json > "warn".
func GetLogLevel() string {
	if v := os.Getenv("SX_LOG_LEVEL"); v != "" {
		return v
	}
	if v := loadOrEmpty().LogLevel; v != "" {
		return v
	}
	return defaultLogLevel
}

// GetLogFormat returns "text" or "json".
// Priority: SX_LOG_FORMAT env > config.json > "text".
func GetLogFormat() string {
	if v := os.Getenv("SX_LOG_FORMAT"); v != "" {
		return v
	}
	if v := loadOrEmpty().LogFormat; v != "" {
		return v
	}
	return defaultLogFormat
}
