package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Host string
	Port string

	// Backend
	APIBaseURL     string
	MockMode       bool
	RequestTimeout time.Duration

	// Playground
	UploadMaxBytes     int64
	CapabilityFile     string
	SearchFetchWorkers int

	// Client state (organization id, optional token)
	StateFile    string
	PersistToken bool

	// External dashboard links surfaced in banners
	DashboardURL string
	DocsURL      string
	UpgradeURL   string

	// Azure blob inputs, optional
	AzureAccountName string
	AzureAccountKey  string

	LogLevel string
}

func (c *Config) ServerAddress() string {
	// Trim any whitespace from host and port
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// AzureEnabled reports whether blob inputs can be fetched
func (c *Config) AzureEnabled() bool {
	return c.AzureAccountName != "" && c.AzureAccountKey != ""
}

func LoadFromEnv() (*Config, error) {
	// Set defaults
	cfg := &Config{
		Host:               getEnvOrDefault("HOST", "0.0.0.0"),
		Port:               getEnvOrDefault("PORT", "8080"),
		APIBaseURL:         strings.TrimRight(getEnvOrDefault("API_BASE_URL", "http://localhost:8082/api/v1"), "/"),
		MockMode:           parseBoolOrDefault("MOCK_MODE", false),
		RequestTimeout:     parseDurationOrDefault("REQUEST_TIMEOUT", 30*time.Second),
		UploadMaxBytes:     parseIntOrDefault("UPLOAD_MAX_BYTES", 10*1024*1024), // 10MB
		CapabilityFile:     os.Getenv("CAPABILITY_FILE"),
		SearchFetchWorkers: int(parseIntOrDefault("SEARCH_FETCH_WORKERS", 4)),
		StateFile:          getEnvOrDefault("STATE_FILE", defaultStateFile()),
		PersistToken:       parseBoolOrDefault("PERSIST_TOKEN", false),
		DashboardURL:       os.Getenv("DASHBOARD_URL"),
		DocsURL:            os.Getenv("DOCS_URL"),
		UpgradeURL:         os.Getenv("UPGRADE_URL"),
		AzureAccountName:   os.Getenv("AZURE_STORAGE_ACCOUNT"),
		AzureAccountKey:    os.Getenv("AZURE_STORAGE_KEY"),
		LogLevel:           getEnvOrDefault("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values that cannot be safely defaulted
func (c *Config) Validate() error {
	// Validate port is numeric and in range
	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid PORT: %q", c.Port)
	}
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("invalid API_BASE_URL: %q", c.APIBaseURL)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be > 0 (got %s)", c.RequestTimeout)
	}
	if c.UploadMaxBytes <= 0 {
		return fmt.Errorf("UPLOAD_MAX_BYTES must be > 0 (got %d)", c.UploadMaxBytes)
	}
	if c.SearchFetchWorkers <= 0 {
		return fmt.Errorf("SEARCH_FETCH_WORKERS must be > 0 (got %d)", c.SearchFetchWorkers)
	}
	return nil
}

func defaultStateFile() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v + "/kyc-console/state.json"
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".kyc-console-state.json"
	}
	return home + "/.config/kyc-console/state.json"
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
		// bare integers are milliseconds
		if ms, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil && ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func parseBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}
