package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Version is set at build time via -ldflags
// Default "dev" is used for development builds
var Version = "dev"

// Config holds all application configuration loaded from environment variables.
// All fields have sensible defaults if environment variables are not set.
type Config struct {
	// RadarrHost is the Radarr hostname or IP (default: localhost)
	RadarrHost string

	// RadarrPort is the Radarr HTTP port (default: 7878)
	RadarrPort int

	// RadarrWebroot is the URL base path Radarr is served under (default: "")
	// Example: "/radarr" if Radarr lives at domain.com/radarr/
	RadarrWebroot string

	// RadarrAPIKey authenticates against Radarr. May be an "enc:v1:" value.
	// An empty key disables remote reconciliation entirely.
	RadarrAPIKey string

	// RadarrSSL selects https instead of http (default: false)
	RadarrSSL bool

	// RenameBeforeProcessing moves the imported file aside before local processing
	// so Radarr's own scanner does not pick it up mid-flight (default: false)
	RenameBeforeProcessing bool

	// RescanRetries is the number of re-polls while waiting on a rescan (default: 6)
	RescanRetries int

	// RescanDelay is the fixed wait between rescan polls (default: 10s)
	RescanDelay time.Duration

	// HTTPTimeout bounds each request to Radarr (default: 30s)
	HTTPTimeout time.Duration

	// HTTPMaxRetries is the attempt budget for transient transport errors (default: 3)
	HTTPMaxRetries int

	// LogLevel controls logging verbosity: "debug", "info", "warn", "error" (default: "info")
	LogLevel string

	// LogDir enables rotating file logs when set (default: "", stdout only)
	LogDir string

	// ProcessCommand is the external processing command run on the imported file.
	// Empty means the file is accepted as-is.
	ProcessCommand string

	// FFprobePath is the ffprobe binary used to validate subtitle sidecars (default: ffprobe)
	FFprobePath string

	// SubtitleExtensions lists the sidecar extensions considered subtitle candidates
	SubtitleExtensions []string

	// PathMappings translates Radarr-side path prefixes to local ones
	PathMappings []PathMapping

	// NotifyURLs are shoutrrr service URLs (default: none)
	NotifyURLs []string

	// NotifyEvents selects which events notify: "failures", "all" or a list of event names
	NotifyEvents []string

	// MetricsTextfile is a node-exporter textfile path for run metrics (default: "", disabled)
	MetricsTextfile string

	// EncryptionKey decrypts an "enc:v1:" RadarrAPIKey (default: "")
	EncryptionKey string
}

// PathMapping maps a path prefix as Radarr sees it to the local mount.
type PathMapping struct {
	ArrPath   string
	LocalPath string
}

// DefaultSubtitleExtensions are the sidecar extensions probed when none are configured.
var DefaultSubtitleExtensions = []string{".srt", ".ass", ".ssa", ".sub", ".vtt", ".idx", ".sup"}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	mappings, err := parsePathMappings(getEnvOrDefault("ARRFINALIZE_PATH_MAPPINGS", ""))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		RadarrHost:             getEnvOrDefault("ARRFINALIZE_RADARR_HOST", "localhost"),
		RadarrPort:             getEnvIntOrDefault("ARRFINALIZE_RADARR_PORT", 7878),
		RadarrWebroot:          normalizeWebroot(getEnvOrDefault("ARRFINALIZE_RADARR_WEBROOT", "")),
		RadarrAPIKey:           getEnvOrDefault("ARRFINALIZE_RADARR_APIKEY", ""),
		RadarrSSL:              getEnvBoolOrDefault("ARRFINALIZE_RADARR_SSL", false),
		RenameBeforeProcessing: getEnvBoolOrDefault("ARRFINALIZE_RADARR_RENAME", false),
		RescanRetries:          getEnvIntOrDefault("ARRFINALIZE_RESCAN_RETRIES", 6),
		RescanDelay:            getEnvDurationOrDefault("ARRFINALIZE_RESCAN_DELAY", 10*time.Second),
		HTTPTimeout:            getEnvDurationOrDefault("ARRFINALIZE_HTTP_TIMEOUT", 30*time.Second),
		HTTPMaxRetries:         getEnvIntOrDefault("ARRFINALIZE_HTTP_MAX_RETRIES", 3),
		LogLevel:               strings.ToLower(getEnvOrDefault("ARRFINALIZE_LOG_LEVEL", "info")),
		LogDir:                 getEnvOrDefault("ARRFINALIZE_LOG_DIR", ""),
		ProcessCommand:         getEnvOrDefault("ARRFINALIZE_PROCESS_COMMAND", ""),
		FFprobePath:            getEnvOrDefault("ARRFINALIZE_FFPROBE_PATH", "ffprobe"),
		SubtitleExtensions:     normalizeExtensions(getEnvListOrDefault("ARRFINALIZE_SUBTITLE_EXTENSIONS", DefaultSubtitleExtensions)),
		PathMappings:           mappings,
		NotifyURLs:             getEnvListOrDefault("ARRFINALIZE_NOTIFY_URLS", nil),
		NotifyEvents:           getEnvListOrDefault("ARRFINALIZE_NOTIFY_EVENTS", []string{"failures"}),
		MetricsTextfile:        getEnvOrDefault("ARRFINALIZE_METRICS_TEXTFILE", ""),
		EncryptionKey:          getEnvOrDefault("ARRFINALIZE_ENCRYPTION_KEY", ""),
	}

	cfg.sanitize()
	return cfg, nil
}

// sanitize clamps values that would make the workflow misbehave.
func (c *Config) sanitize() {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
		// Valid
	default:
		c.LogLevel = "info" // Fall back to info for invalid values
	}
	if c.RescanRetries < 0 {
		c.RescanRetries = 0
	}
	if c.RescanDelay < 0 {
		c.RescanDelay = 0
	}
	if c.HTTPMaxRetries < 1 {
		c.HTTPMaxRetries = 1
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 30 * time.Second
	}
}

// RadarrBaseURL assembles scheme://host:port/webroot with no trailing slash.
func (c *Config) RadarrBaseURL() string {
	scheme := "http://"
	if c.RadarrSSL {
		scheme = "https://"
	}
	return fmt.Sprintf("%s%s:%d%s", scheme, c.RadarrHost, c.RadarrPort, c.RadarrWebroot)
}

// NewTestConfig returns a minimal Config suitable for unit tests.
func NewTestConfig() *Config {
	return &Config{
		RadarrHost:         "localhost",
		RadarrPort:         7878,
		RadarrWebroot:      "",
		RadarrAPIKey:       "test-api-key",
		RescanRetries:      6,
		RescanDelay:        10 * time.Second,
		HTTPTimeout:        5 * time.Second,
		HTTPMaxRetries:     1,
		LogLevel:           "debug",
		FFprobePath:        "ffprobe",
		SubtitleExtensions: DefaultSubtitleExtensions,
		NotifyEvents:       []string{"failures"},
	}
}

func normalizeWebroot(webroot string) string {
	webroot = strings.TrimSpace(webroot)
	if webroot == "" || webroot == "/" {
		return ""
	}
	if !strings.HasPrefix(webroot, "/") {
		webroot = "/" + webroot
	}
	return strings.TrimSuffix(webroot, "/")
}

func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out = append(out, ext)
	}
	return out
}

// parsePathMappings parses "arrPrefix:localPrefix" pairs separated by commas.
func parsePathMappings(value string) ([]PathMapping, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	var mappings []PathMapping
	for _, pair := range strings.Split(value, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		arrPath, localPath, ok := strings.Cut(pair, ":")
		if !ok || arrPath == "" || localPath == "" {
			return nil, fmt.Errorf("invalid path mapping %q: expected arrPath:localPath", pair)
		}
		mappings = append(mappings, PathMapping{ArrPath: arrPath, LocalPath: localPath})
	}
	return mappings, nil
}

// getEnvOrDefault returns the environment variable value or the default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvIntOrDefault returns the environment variable as an int or the default if not set/invalid.
func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvDurationOrDefault returns the environment variable as a duration or the default if not set/invalid.
// Accepts Go duration strings like "500ms", "10s", "1m". Bare integers are read as seconds.
func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

// getEnvBoolOrDefault returns the environment variable as a bool or the default if not set.
// Accepts "true", "1", "yes" as true values (case-insensitive).
func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "true" || lower == "1" || lower == "yes"
	}
	return defaultValue
}

// getEnvListOrDefault splits a comma-separated environment variable, dropping empty items.
func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// FlagOverrides holds command-line flag values that can override environment variables
type FlagOverrides struct {
	RadarrHost     *string
	RadarrPort     *int
	RadarrWebroot  *string
	RadarrSSL      *bool
	LogLevel       *string
	LogDir         *string
	RescanRetries  *int
	RescanDelay    *time.Duration
	ProcessCommand *string
}

// ApplyFlags applies command-line flag overrides to the configuration.
// Only non-nil values with non-default flag values will override.
func (c *Config) ApplyFlags(flags FlagOverrides) {
	if flags.RadarrHost != nil && *flags.RadarrHost != "" {
		c.RadarrHost = *flags.RadarrHost
	}
	if flags.RadarrPort != nil && *flags.RadarrPort != 0 {
		c.RadarrPort = *flags.RadarrPort
	}
	if flags.RadarrWebroot != nil && *flags.RadarrWebroot != "" {
		c.RadarrWebroot = normalizeWebroot(*flags.RadarrWebroot)
	}
	if flags.RadarrSSL != nil && *flags.RadarrSSL {
		c.RadarrSSL = true
	}
	if flags.LogLevel != nil && *flags.LogLevel != "" {
		c.LogLevel = strings.ToLower(*flags.LogLevel)
	}
	if flags.LogDir != nil && *flags.LogDir != "" {
		c.LogDir = *flags.LogDir
	}
	// -1 means not set; 0 is a legitimate "check once, never re-poll" budget
	if flags.RescanRetries != nil && *flags.RescanRetries >= 0 {
		c.RescanRetries = *flags.RescanRetries
	}
	if flags.RescanDelay != nil && *flags.RescanDelay != 0 {
		c.RescanDelay = *flags.RescanDelay
	}
	if flags.ProcessCommand != nil && *flags.ProcessCommand != "" {
		c.ProcessCommand = *flags.ProcessCommand
	}
	c.sanitize()
}
