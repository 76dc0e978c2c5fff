package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Cache backends.
const (
	CacheBackendSQLite = "sqlite"
	CacheBackendRedis  = "redis"
)

// Config holds application configuration.
type Config struct {
	// BackendURL is the base URL of the hosted database/auth service
	// (e.g. https://xyz.supabase.co). REST calls go to BackendURL/rest/v1.
	BackendURL string `json:"backend_url,omitempty"`

	// APIKey is the project's public API key, sent as the apikey header
	// and as the bearer token when no user session exists.
	APIKey string `json:"api_key,omitempty"`

	// UserID scopes every query when no signed-in session is stored.
	UserID string `json:"user_id,omitempty"`

	// RequestTimeoutSeconds bounds every backend request.
	RequestTimeoutSeconds int `json:"request_timeout_seconds,omitempty"`

	// CacheTTLSeconds is how long list and record cache entries stay fresh.
	CacheTTLSeconds int `json:"cache_ttl_seconds,omitempty"`

	// CacheBackend selects where cache entries live: "sqlite" (local, default) or "redis".
	CacheBackend string `json:"cache_backend,omitempty"`

	// RedisURL is used when CacheBackend is "redis".
	RedisURL string `json:"redis_url,omitempty"`

	// RefreshIntervalSeconds is the period of background list refreshes in serve mode.
	// 0 means the default; a negative value disables background refresh.
	RefreshIntervalSeconds int `json:"refresh_interval_seconds,omitempty"`

	// RefreshErrorThreshold is the number of background refresh failures inside
	// RefreshErrorWindowSeconds after which further background refreshes are skipped.
	RefreshErrorThreshold int `json:"refresh_error_threshold,omitempty"`

	// RefreshErrorWindowSeconds is the sliding window for RefreshErrorThreshold.
	RefreshErrorWindowSeconds int `json:"refresh_error_window_seconds,omitempty"`

	// LogLevel is one of debug, info, warn, error, disabled.
	LogLevel string `json:"log_level,omitempty"`

	// DBMaxOpenConns limits the maximum number of open local database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle local database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// DisabledTypes is a list of type names to disable entirely.
	// Known types: "product", "braindump", "project".
	DisabledTypes []string `json:"disabled_types,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		RequestTimeoutSeconds:     8,
		CacheTTLSeconds:           300,
		CacheBackend:              CacheBackendSQLite,
		RefreshIntervalSeconds:    60,
		RefreshErrorThreshold:     3,
		RefreshErrorWindowSeconds: 300,
		LogLevel:                  "info",
	}
}

// RequestTimeout returns the per-request backend timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// CacheTTL returns the cache freshness window.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// RefreshInterval returns the background refresh period; zero when disabled.
func (c *Config) RefreshInterval() time.Duration {
	if c.RefreshIntervalSeconds < 0 {
		return 0
	}
	return time.Duration(c.RefreshIntervalSeconds) * time.Second
}

// RefreshErrorWindow returns the sliding window used to suppress background refreshes.
func (c *Config) RefreshErrorWindow() time.Duration {
	return time.Duration(c.RefreshErrorWindowSeconds) * time.Second
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.quill.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithRepo loads configuration from both global (~/.quill) and repo (.quill) directories.
// Repo config is found by walking upward from startDir to find the nearest .quill/config.json.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
// Either or both configs may be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// LoadEnv loads a .env file from dir (if present) into the process environment
// and applies QUILL_* overrides on top of cfg.
func LoadEnv(cfg *Config, dir string) error {
	envPath := filepath.Join(dir, ".env")
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	ApplyEnv(cfg, os.Getenv)
	return nil
}

// ApplyEnv overrides cfg fields from environment variables read through getenv.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if v := getenv("QUILL_BACKEND_URL"); v != "" {
		cfg.BackendURL = v
	}
	if v := getenv("QUILL_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := getenv("QUILL_USER_ID"); v != "" {
		cfg.UserID = v
	}
	if v := getenv("QUILL_CACHE_BACKEND"); v != "" {
		cfg.CacheBackend = v
	}
	if v := getenv("QUILL_REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}
	if v := getenv("QUILL_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := getenv("QUILL_REQUEST_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RequestTimeoutSeconds = n
		}
	}
}

// FindRepoConfig walks upward from startDir to find the nearest .quill/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".quill", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{
		BackendURL:                pickString(overlay.BackendURL, base.BackendURL),
		APIKey:                    pickString(overlay.APIKey, base.APIKey),
		UserID:                    pickString(overlay.UserID, base.UserID),
		CacheBackend:              pickString(overlay.CacheBackend, base.CacheBackend),
		RedisURL:                  pickString(overlay.RedisURL, base.RedisURL),
		LogLevel:                  pickString(overlay.LogLevel, base.LogLevel),
		RequestTimeoutSeconds:     pickInt(overlay.RequestTimeoutSeconds, base.RequestTimeoutSeconds),
		CacheTTLSeconds:           pickInt(overlay.CacheTTLSeconds, base.CacheTTLSeconds),
		RefreshIntervalSeconds:    pickInt(overlay.RefreshIntervalSeconds, base.RefreshIntervalSeconds),
		RefreshErrorThreshold:     pickInt(overlay.RefreshErrorThreshold, base.RefreshErrorThreshold),
		RefreshErrorWindowSeconds: pickInt(overlay.RefreshErrorWindowSeconds, base.RefreshErrorWindowSeconds),
		DBMaxOpenConns:            pickInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns),
		DBMaxIdleConns:            pickInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns),
	}

	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.DisabledTypes = mergeStringSlice(base.DisabledTypes, overlay.DisabledTypes)

	return result
}

func pickString(overlay, base string) string {
	if strings.TrimSpace(overlay) != "" {
		return overlay
	}
	return base
}

func pickInt(overlay, base int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
