package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// loadAndMerge loads a YAML file and merges it into the config.
func loadAndMerge(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var override Config
	if err := yaml.Unmarshal(data, &override); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}

	mergeConfigs(cfg, &override, raw)
	return nil
}

// mergeConfigs merges override into base. Zero values leave base untouched;
// booleans are applied only when the key is present in the file.
func mergeConfigs(base, override *Config, raw map[string]any) {
	if override == nil {
		return
	}

	if override.Server.Bind != "" {
		base.Server.Bind = override.Server.Bind
	}
	if len(override.Server.AllowedOrigins) > 0 {
		base.Server.AllowedOrigins = override.Server.AllowedOrigins
	}
	if override.Server.PingInterval != 0 {
		base.Server.PingInterval = override.Server.PingInterval
	}
	if override.Server.WriteTimeout != 0 {
		base.Server.WriteTimeout = override.Server.WriteTimeout
	}
	if override.Server.ShutdownTimeout != 0 {
		base.Server.ShutdownTimeout = override.Server.ShutdownTimeout
	}

	s := override.Stream
	if s.InteractionFrameDelay != 0 {
		base.Stream.InteractionFrameDelay = s.InteractionFrameDelay
	}
	if s.SettleDelay != 0 {
		base.Stream.SettleDelay = s.SettleDelay
	}
	if s.NavigationFrameDelay != 0 {
		base.Stream.NavigationFrameDelay = s.NavigationFrameDelay
	}
	if s.CaptureFormat != "" {
		base.Stream.CaptureFormat = strings.ToLower(s.CaptureFormat)
	}
	if s.CaptureQuality != 0 {
		base.Stream.CaptureQuality = s.CaptureQuality
	}
	if s.CaptureTimeout != 0 {
		base.Stream.CaptureTimeout = s.CaptureTimeout
	}
	if s.ScrollMinInterval != 0 {
		base.Stream.ScrollMinInterval = s.ScrollMinInterval
	}
	if s.ScrollMultiplier != 0 {
		base.Stream.ScrollMultiplier = s.ScrollMultiplier
	}
	if s.TimeoutLogCooldown != 0 {
		base.Stream.TimeoutLogCooldown = s.TimeoutLogCooldown
	}

	if override.Session.GracePeriod != 0 {
		base.Session.GracePeriod = override.Session.GracePeriod
	}
	if override.Session.NavigationTimeout != 0 {
		base.Session.NavigationTimeout = override.Session.NavigationTimeout
	}
	if override.Session.DefaultURL != "" {
		base.Session.DefaultURL = override.Session.DefaultURL
	}

	if override.Engine.Kind != "" {
		base.Engine.Kind = strings.ToLower(override.Engine.Kind)
	}
	if override.Engine.SweepInterval != 0 {
		base.Engine.SweepInterval = override.Engine.SweepInterval
	}
	chrome := override.Engine.Chrome
	if chrome.Bin != "" {
		base.Engine.Chrome.Bin = expandHomeDir(chrome.Bin)
	}
	if boolFieldSet(raw, "engine", "chrome", "headless") {
		base.Engine.Chrome.Headless = chrome.Headless
	}
	if boolFieldSet(raw, "engine", "chrome", "no_sandbox") {
		base.Engine.Chrome.NoSandbox = chrome.NoSandbox
	}
	if len(chrome.Flags) > 0 {
		base.Engine.Chrome.Flags = chrome.Flags
	}
	if chrome.LaunchTimeout != 0 {
		base.Engine.Chrome.LaunchTimeout = chrome.LaunchTimeout
	}
	if chrome.Viewport.Width != 0 {
		base.Engine.Chrome.Viewport.Width = chrome.Viewport.Width
	}
	if chrome.Viewport.Height != 0 {
		base.Engine.Chrome.Viewport.Height = chrome.Viewport.Height
	}
	if chrome.Viewport.DeviceScaleFactor != 0 {
		base.Engine.Chrome.Viewport.DeviceScaleFactor = chrome.Viewport.DeviceScaleFactor
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	if boolFieldSet(raw, "tracing", "enabled") {
		base.Tracing.Enabled = override.Tracing.Enabled
	}
	if override.Tracing.ServiceName != "" {
		base.Tracing.ServiceName = override.Tracing.ServiceName
	}
}

func boolFieldSet(raw map[string]any, path ...string) bool {
	if len(path) == 0 || raw == nil {
		return false
	}
	current := any(raw)
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return false
		}
		val, ok := m[key]
		if !ok {
			return false
		}
		current = val
	}
	return true
}

func expandHomeDir(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if path == "~" {
		if home, err := os.UserHomeDir(); err == nil && strings.TrimSpace(home) != "" {
			return home
		}
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil && strings.TrimSpace(home) != "" {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
