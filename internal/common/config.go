package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Logging     LoggingConfig   `toml:"logging"`
	Downloads   DownloadsConfig `toml:"downloads"`
	Extractor   ExtractorConfig `toml:"extractor"`
	Browser     BrowserConfig   `toml:"browser"`
	Cookies     CookiesConfig   `toml:"cookies"`
	Reaper      ReaperConfig    `toml:"reaper"`
	WebSocket   WebSocketConfig `toml:"websocket"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// DownloadsConfig controls where completed artifacts land and how long a single attempt may run
type DownloadsConfig struct {
	OutputDir      string `toml:"output_dir"`      // Directory for downloaded artifacts
	AttemptTimeout string `toml:"attempt_timeout"` // e.g., "2h" - upper bound for one extraction attempt
	EventBuffer    int    `toml:"event_buffer"`    // Capacity of the per-attempt progress channel
}

// ExtractorConfig configures the yt-dlp engine adapter
type ExtractorConfig struct {
	Binary              string   `toml:"binary"`               // Path or name of the yt-dlp executable
	Proxy               string   `toml:"proxy"`                // Optional egress proxy (PROXY_URL)
	PlayerClients       []string `toml:"player_clients"`       // Mobile client identities, in preference order
	UserAgent           string   `toml:"user_agent"`           // Mobile client user agent
	FragmentConcurrency int      `toml:"fragment_concurrency"` // Parallel fragment downloads
	Retries             int      `toml:"retries"`              // Request retries
	FragmentRetries     int      `toml:"fragment_retries"`     // Per-fragment retries
	ChunkSize           string   `toml:"chunk_size"`           // HTTP chunk size, e.g. "20M"
	BufferSize          string   `toml:"buffer_size"`          // Download buffer size, e.g. "64K"
	SocketTimeout       int      `toml:"socket_timeout"`       // Seconds
}

// BrowserConfig configures the headless warm-up strategy
type BrowserConfig struct {
	Enabled   bool   `toml:"enabled"`    // Include the browser warm-up strategy in the chain
	Headless  bool   `toml:"headless"`   // Run Chrome headless
	UserAgent string `toml:"user_agent"` // Desktop user agent presented during warm-up
	WarmURL   string `toml:"warm_url"`   // Page visited before extraction
	WaitTime  string `toml:"wait_time"`  // e.g., "3s" - settle time after navigation
	Timeout   string `toml:"timeout"`    // e.g., "45s" - upper bound for the whole warm-up
}

// CookiesConfig configures the credential store
type CookiesConfig struct {
	Dir       string `toml:"dir"`         // Private directory for uploaded cookie files
	TTL       string `toml:"ttl"`         // e.g., "30m" - credential retention
	MaxSizeKB int    `toml:"max_size_kb"` // Upload limit
	Inline    string `toml:"inline"`      // Netscape cookie content seeded at startup (YOUTUBE_COOKIES)
}

// ReaperConfig configures TTL-based cleanup
type ReaperConfig struct {
	OutputSchedule  string `toml:"output_schedule"`  // Cron spec, e.g. "@every 1h"
	OutputRetention string `toml:"output_retention"` // e.g., "1h"
	CookieSchedule  string `toml:"cookie_schedule"`  // Cron spec, e.g. "@every 30m"
	RunOnStart      bool   `toml:"run_on_start"`     // Sweep once when the reaper starts
}

// WebSocketConfig contains configuration for progress push
type WebSocketConfig struct {
	Enabled          bool   `toml:"enabled"`
	ProgressThrottle string `toml:"progress_throttle"` // e.g., "500ms" - minimum gap between pushes per download
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 5000,
			Host: "0.0.0.0",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
		Downloads: DownloadsConfig{
			OutputDir:      "./downloads",
			AttemptTimeout: "2h",
			EventBuffer:    64,
		},
		Extractor: ExtractorConfig{
			Binary:              "yt-dlp",
			PlayerClients:       []string{"android", "ios", "mweb"},
			UserAgent:           "com.google.android.youtube/19.29.37 (Linux; U; Android 14) gzip",
			FragmentConcurrency: 16,
			Retries:             15,
			FragmentRetries:     15,
			ChunkSize:           "20M",
			BufferSize:          "64K",
			SocketTimeout:       30,
		},
		Browser: BrowserConfig{
			Enabled:   true,
			Headless:  true,
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
			WarmURL:   "https://www.youtube.com",
			WaitTime:  "3s",
			Timeout:   "45s",
		},
		Cookies: CookiesConfig{
			Dir:       "",
			TTL:       "30m",
			MaxSizeKB: 2048,
		},
		Reaper: ReaperConfig{
			OutputSchedule:  "@every 1h",
			OutputRetention: "1h",
			CookieSchedule:  "@every 30m",
		},
		WebSocket: WebSocketConfig{
			Enabled:          true,
			ProgressThrottle: "500ms",
		},
	}
}

// LoadFromFiles loads configuration with priority: default -> file1 -> file2 -> ... -> env
// Later files override earlier files. CLI flags are applied afterwards by ApplyFlagOverrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	// .env is optional; values already present in the environment win
	_ = godotenv.Load()

	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config.
// The short names (PORT, DEBUG, PROXY_URL, YOUTUBE_COOKIES) match common hosting conventions;
// TUBEFETCH_* names take precedence over them.
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("TUBEFETCH_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	for _, name := range []string{"PORT", "TUBEFETCH_SERVER_PORT"} {
		if port := os.Getenv(name); port != "" {
			if p, err := strconv.Atoi(port); err == nil {
				config.Server.Port = p
			}
		}
	}
	if host := os.Getenv("TUBEFETCH_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Logging configuration
	if debug := os.Getenv("DEBUG"); debug != "" {
		if b, err := strconv.ParseBool(debug); err == nil && b {
			config.Logging.Level = "debug"
		}
	}
	if level := os.Getenv("TUBEFETCH_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("TUBEFETCH_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if o = strings.TrimSpace(o); o != "" {
				outputs = append(outputs, o)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Downloads configuration
	if dir := os.Getenv("TUBEFETCH_OUTPUT_DIR"); dir != "" {
		config.Downloads.OutputDir = dir
	}
	if timeout := os.Getenv("TUBEFETCH_ATTEMPT_TIMEOUT"); timeout != "" {
		config.Downloads.AttemptTimeout = timeout
	}

	// Extractor configuration
	if binary := os.Getenv("TUBEFETCH_YTDLP_BINARY"); binary != "" {
		config.Extractor.Binary = binary
	}
	for _, name := range []string{"PROXY_URL", "TUBEFETCH_PROXY_URL"} {
		if proxy := os.Getenv(name); proxy != "" {
			config.Extractor.Proxy = proxy
		}
	}

	// Browser configuration
	if enabled := os.Getenv("TUBEFETCH_BROWSER_ENABLED"); enabled != "" {
		if b, err := strconv.ParseBool(enabled); err == nil {
			config.Browser.Enabled = b
		}
	}
	if headless := os.Getenv("TUBEFETCH_BROWSER_HEADLESS"); headless != "" {
		if b, err := strconv.ParseBool(headless); err == nil {
			config.Browser.Headless = b
		}
	}
	if ua := os.Getenv("TUBEFETCH_BROWSER_USER_AGENT"); ua != "" {
		config.Browser.UserAgent = ua
	}

	// Cookies configuration
	if dir := os.Getenv("TUBEFETCH_COOKIES_DIR"); dir != "" {
		config.Cookies.Dir = dir
	}
	if ttl := os.Getenv("TUBEFETCH_COOKIES_TTL"); ttl != "" {
		config.Cookies.TTL = ttl
	}
	if inline := os.Getenv("YOUTUBE_COOKIES"); inline != "" {
		config.Cookies.Inline = inline
	}

	// Reaper configuration
	if retention := os.Getenv("TUBEFETCH_OUTPUT_RETENTION"); retention != "" {
		config.Reaper.OutputRetention = retention
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate checks durations and schedules so misconfiguration fails at startup rather than mid-job
func (c *Config) Validate() error {
	durations := map[string]string{
		"downloads.attempt_timeout":   c.Downloads.AttemptTimeout,
		"browser.wait_time":           c.Browser.WaitTime,
		"browser.timeout":             c.Browser.Timeout,
		"cookies.ttl":                 c.Cookies.TTL,
		"reaper.output_retention":     c.Reaper.OutputRetention,
		"websocket.progress_throttle": c.WebSocket.ProgressThrottle,
	}
	for key, value := range durations {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid duration for %s: %q: %w", key, value, err)
		}
	}

	for key, spec := range map[string]string{
		"reaper.output_schedule": c.Reaper.OutputSchedule,
		"reaper.cookie_schedule": c.Reaper.CookieSchedule,
	} {
		if err := ValidateSchedule(spec); err != nil {
			return fmt.Errorf("invalid schedule for %s: %w", key, err)
		}
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Cookies.MaxSizeKB <= 0 {
		return fmt.Errorf("cookies.max_size_kb must be positive")
	}
	return nil
}

// ValidateSchedule validates a cron expression or descriptor such as "@every 1h"
func ValidateSchedule(spec string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(spec); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	return nil
}

// MustDuration parses a duration that Validate has already accepted, falling back to def
func MustDuration(value string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
