package chrome

import (
	"errors"
	"strings"
	"time"

	"github.com/odvcencio/pagestream/pkg/render"
)

// Config controls how Chrome processes are launched.
type Config struct {
	// Bin is the Chrome binary. Empty lets rod locate or download one.
	Bin       string
	Headless  bool
	NoSandbox bool
	// Flags are extra command line switches such as "--disable-gpu" or
	// "--lang=en-US".
	Flags         []string
	LaunchTimeout time.Duration
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		Headless:      true,
		LaunchTimeout: 30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	defaults.Headless = c.Headless
	defaults.NoSandbox = c.NoSandbox
	if strings.TrimSpace(c.Bin) != "" {
		defaults.Bin = strings.TrimSpace(c.Bin)
	}
	if len(c.Flags) > 0 {
		defaults.Flags = append([]string(nil), c.Flags...)
	}
	if c.LaunchTimeout != 0 {
		defaults.LaunchTimeout = c.LaunchTimeout
	}
	return defaults
}

// Validate checks whether the config is usable.
func (c Config) Validate() error {
	if c.LaunchTimeout < 0 {
		return errors.New("launch_timeout must be zero or positive")
	}
	for _, flag := range c.Flags {
		if strings.TrimLeft(strings.TrimSpace(flag), "-") == "" {
			return errors.New("flags must not contain empty switches")
		}
	}
	return nil
}

func validViewport(vp render.Viewport) render.Viewport {
	if vp.Width <= 0 || vp.Height <= 0 {
		return render.DefaultViewport()
	}
	if vp.DeviceScaleFactor <= 0 {
		vp.DeviceScaleFactor = 1
	}
	return vp
}
