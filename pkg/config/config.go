package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/odvcencio/pagestream/pkg/render"
)

// Config is the complete pagestream configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Stream  StreamConfig  `yaml:"stream"`
	Session SessionConfig `yaml:"session"`
	Engine  EngineConfig  `yaml:"engine"`
	Logging LoggingConfig `yaml:"logging"`
	Tracing TracingConfig `yaml:"tracing"`
}

// ServerConfig controls the HTTP and websocket listener.
type ServerConfig struct {
	Bind            string        `yaml:"bind"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	PingInterval    time.Duration `yaml:"ping_interval"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StreamConfig is the frame timing policy.
type StreamConfig struct {
	InteractionFrameDelay time.Duration `yaml:"interaction_frame_delay"`
	SettleDelay           time.Duration `yaml:"settle_delay"`
	NavigationFrameDelay  time.Duration `yaml:"navigation_frame_delay"`
	CaptureFormat         string        `yaml:"capture_format"`
	CaptureQuality        int           `yaml:"capture_quality"`
	CaptureTimeout        time.Duration `yaml:"capture_timeout"`
	ScrollMinInterval     time.Duration `yaml:"scroll_min_interval"`
	ScrollMultiplier      float64       `yaml:"scroll_multiplier"`
	TimeoutLogCooldown    time.Duration `yaml:"timeout_log_cooldown"`
}

// SessionConfig controls session lifetime.
type SessionConfig struct {
	GracePeriod       time.Duration `yaml:"grace_period"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout"`
	DefaultURL        string        `yaml:"default_url"`
}

// EngineConfig selects and tunes the render engine.
type EngineConfig struct {
	// Kind is "chrome" or "fake".
	Kind          string        `yaml:"kind"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	Chrome        ChromeConfig  `yaml:"chrome"`
}

// ChromeConfig configures the Chrome engine.
type ChromeConfig struct {
	Bin           string          `yaml:"bin"`
	Headless      bool            `yaml:"headless"`
	NoSandbox     bool            `yaml:"no_sandbox"`
	Flags         []string        `yaml:"flags"`
	LaunchTimeout time.Duration   `yaml:"launch_timeout"`
	Viewport      render.Viewport `yaml:"viewport"`
}

// LoggingConfig controls the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig controls span export.
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

const (
	EngineChrome = "chrome"
	EngineFake   = "fake"
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Bind:            "127.0.0.1:8080",
			PingInterval:    20 * time.Second,
			WriteTimeout:    5 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Stream: StreamConfig{
			InteractionFrameDelay: 50 * time.Millisecond,
			SettleDelay:           1500 * time.Millisecond,
			NavigationFrameDelay:  300 * time.Millisecond,
			CaptureFormat:         string(render.FrameFormatJPEG),
			CaptureQuality:        75,
			CaptureTimeout:        5000 * time.Millisecond,
			ScrollMinInterval:     120 * time.Millisecond,
			ScrollMultiplier:      1.5,
			TimeoutLogCooldown:    3 * time.Second,
		},
		Session: SessionConfig{
			GracePeriod:       30000 * time.Millisecond,
			NavigationTimeout: 10 * time.Second,
			DefaultURL:        "https://example.com",
		},
		Engine: EngineConfig{
			Kind:          EngineChrome,
			SweepInterval: 300000 * time.Millisecond,
			Chrome: ChromeConfig{
				Headless:      true,
				LaunchTimeout: 30 * time.Second,
				Viewport:      render.DefaultViewport(),
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			ServiceName: "pagestream",
		},
	}
}

// Load loads configuration from default locations with proper precedence:
// defaults, ~/.pagestream/config.yaml, ./pagestream.yaml, then environment.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}
	if home != "" {
		userConfigPath := filepath.Join(home, ".pagestream", "config.yaml")
		if err := loadAndMerge(cfg, userConfigPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("loading user config: %w", err)
		}
	}

	if err := loadAndMerge(cfg, "pagestream.yaml"); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file path.
func LoadFromPath(path string) (*Config, error) {
	cfg := DefaultConfig()

	path = expandHomeDir(path)
	if err := loadAndMerge(cfg, path); err != nil {
		return nil, fmt.Errorf("loading config from %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies PAGESTREAM_* environment variables. Delays are
// given in milliseconds.
func applyEnvOverrides(cfg *Config) {
	envMillis("PAGESTREAM_INTERACTION_FRAME_DELAY_MS", &cfg.Stream.InteractionFrameDelay)
	envMillis("PAGESTREAM_SETTLE_DELAY_MS", &cfg.Stream.SettleDelay)
	envMillis("PAGESTREAM_NAVIGATION_FRAME_DELAY_MS", &cfg.Stream.NavigationFrameDelay)
	envMillis("PAGESTREAM_CAPTURE_TIMEOUT_MS", &cfg.Stream.CaptureTimeout)
	envMillis("PAGESTREAM_SCROLL_MIN_INTERVAL_MS", &cfg.Stream.ScrollMinInterval)
	envMillis("PAGESTREAM_SESSION_GRACE_MS", &cfg.Session.GracePeriod)
	envMillis("PAGESTREAM_NAVIGATION_TIMEOUT_MS", &cfg.Session.NavigationTimeout)
	envMillis("PAGESTREAM_SWEEP_INTERVAL_MS", &cfg.Engine.SweepInterval)

	if v := strings.TrimSpace(os.Getenv("PAGESTREAM_CAPTURE_QUALITY")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Stream.CaptureQuality = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("PAGESTREAM_SCROLL_MULTIPLIER")); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Stream.ScrollMultiplier = f
		}
	}
	if v := strings.TrimSpace(os.Getenv("PAGESTREAM_DEFAULT_URL")); v != "" {
		cfg.Session.DefaultURL = v
	}
	if v := strings.TrimSpace(os.Getenv("PAGESTREAM_ENGINE")); v != "" {
		cfg.Engine.Kind = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv("PAGESTREAM_CHROME_BIN")); v != "" {
		cfg.Engine.Chrome.Bin = v
	}
	if val, ok := envBool("PAGESTREAM_CHROME_HEADLESS"); ok {
		cfg.Engine.Chrome.Headless = val
	}
	if val, ok := envBool("PAGESTREAM_CHROME_NO_SANDBOX"); ok {
		cfg.Engine.Chrome.NoSandbox = val
	}
	if v := strings.TrimSpace(os.Getenv("PAGESTREAM_BIND")); v != "" {
		cfg.Server.Bind = v
	}
	if v := os.Getenv("PAGESTREAM_ALLOWED_ORIGINS"); strings.TrimSpace(v) != "" {
		cfg.Server.AllowedOrigins = splitCommaList(v)
	}
	if v := strings.TrimSpace(os.Getenv("PAGESTREAM_LOG_LEVEL")); v != "" {
		cfg.Logging.Level = v
	}
	if v := strings.TrimSpace(os.Getenv("PAGESTREAM_LOG_FORMAT")); v != "" {
		cfg.Logging.Format = v
	}
	if val, ok := envBool("PAGESTREAM_TRACING"); ok {
		cfg.Tracing.Enabled = val
	}
}

func envMillis(key string, dst *time.Duration) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		*dst = time.Duration(n) * time.Millisecond
	}
}

func splitCommaList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

func envBool(key string) (bool, bool) {
	val := os.Getenv(key)
	if val == "" {
		return false, false
	}
	switch strings.ToLower(val) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	default:
		return false, false
	}
}

func isLoopbackBindAddress(addr string) bool {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return false
	}

	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	host = strings.TrimSpace(host)
	if host == "" {
		return false
	}
	switch strings.ToLower(host) {
	case "localhost":
		return true
	case "0.0.0.0", "::":
		return false
	default:
		ip := net.ParseIP(host)
		if ip == nil {
			return false
		}
		return ip.IsLoopback()
	}
}

// Validate checks whether the configuration is usable.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	var errs []error

	if strings.TrimSpace(c.Server.Bind) == "" {
		errs = append(errs, errors.New("server.bind is required"))
	} else if _, _, err := net.SplitHostPort(c.Server.Bind); err != nil {
		errs = append(errs, fmt.Errorf("server.bind: %w", err))
	}
	if c.Server.PingInterval <= 0 {
		errs = append(errs, errors.New("server.ping_interval must be positive"))
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, errors.New("server.write_timeout must be positive"))
	}

	s := c.Stream
	for name, d := range map[string]time.Duration{
		"stream.interaction_frame_delay": s.InteractionFrameDelay,
		"stream.settle_delay":            s.SettleDelay,
		"stream.navigation_frame_delay":  s.NavigationFrameDelay,
		"stream.capture_timeout":         s.CaptureTimeout,
		"stream.scroll_min_interval":     s.ScrollMinInterval,
		"stream.timeout_log_cooldown":    s.TimeoutLogCooldown,
		"session.grace_period":           c.Session.GracePeriod,
		"session.navigation_timeout":     c.Session.NavigationTimeout,
		"engine.sweep_interval":          c.Engine.SweepInterval,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	if s.CaptureQuality < 1 || s.CaptureQuality > 100 {
		errs = append(errs, fmt.Errorf("stream.capture_quality must be between 1 and 100, got %d", s.CaptureQuality))
	}
	switch render.FrameFormat(strings.ToLower(s.CaptureFormat)) {
	case render.FrameFormatJPEG, render.FrameFormatPNG:
	default:
		errs = append(errs, fmt.Errorf("stream.capture_format must be jpeg or png, got %q", s.CaptureFormat))
	}
	if s.ScrollMultiplier <= 0 {
		errs = append(errs, errors.New("stream.scroll_multiplier must be positive"))
	}
	if s.SettleDelay < s.InteractionFrameDelay {
		errs = append(errs, errors.New("stream.settle_delay must not be shorter than stream.interaction_frame_delay"))
	}

	if strings.TrimSpace(c.Session.DefaultURL) == "" {
		errs = append(errs, errors.New("session.default_url is required"))
	}

	switch c.Engine.Kind {
	case EngineChrome, EngineFake:
	default:
		errs = append(errs, fmt.Errorf("engine.kind must be %q or %q, got %q", EngineChrome, EngineFake, c.Engine.Kind))
	}
	vp := c.Engine.Chrome.Viewport
	if vp.Width <= 0 || vp.Height <= 0 {
		errs = append(errs, errors.New("engine.chrome.viewport width and height must be positive"))
	}

	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be json or text, got %q", c.Logging.Format))
	}
	return errors.Join(errs...)
}

// ValidationWarnings returns non-fatal configuration concerns.
func (c *Config) ValidationWarnings() []string {
	if c == nil {
		return nil
	}
	var warnings []string
	if !isLoopbackBindAddress(c.Server.Bind) {
		warnings = append(warnings, fmt.Sprintf("server.bind %q is not loopback; sessions are reusable by anyone who knows their ids", c.Server.Bind))
	}
	if c.Engine.Chrome.NoSandbox {
		warnings = append(warnings, "engine.chrome.no_sandbox disables the Chrome sandbox")
	}
	return warnings
}
