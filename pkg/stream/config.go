package stream

import (
	"errors"
	"time"

	"github.com/odvcencio/pagestream/pkg/render"
)

// Config holds the frame timing policy.
type Config struct {
	InteractionFrameDelay time.Duration
	SettleDelay           time.Duration
	NavigationFrameDelay  time.Duration
	CaptureFormat         render.FrameFormat
	CaptureQuality        int
	CaptureTimeout        time.Duration
	ScrollMinInterval     time.Duration
	ScrollMultiplier      float64
	TimeoutLogCooldown    time.Duration
}

// DefaultConfig returns the default frame timing policy.
func DefaultConfig() Config {
	return Config{
		InteractionFrameDelay: 50 * time.Millisecond,
		SettleDelay:           1500 * time.Millisecond,
		NavigationFrameDelay:  300 * time.Millisecond,
		CaptureFormat:         render.FrameFormatJPEG,
		CaptureQuality:        75,
		CaptureTimeout:        5000 * time.Millisecond,
		ScrollMinInterval:     120 * time.Millisecond,
		ScrollMultiplier:      1.5,
		TimeoutLogCooldown:    3 * time.Second,
	}
}

// WithDefaults fills zero fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	defaults := DefaultConfig()
	if c.InteractionFrameDelay > 0 {
		defaults.InteractionFrameDelay = c.InteractionFrameDelay
	}
	if c.SettleDelay > 0 {
		defaults.SettleDelay = c.SettleDelay
	}
	if c.NavigationFrameDelay > 0 {
		defaults.NavigationFrameDelay = c.NavigationFrameDelay
	}
	if c.CaptureFormat != "" {
		defaults.CaptureFormat = c.CaptureFormat
	}
	if c.CaptureQuality > 0 {
		defaults.CaptureQuality = c.CaptureQuality
	}
	if c.CaptureTimeout > 0 {
		defaults.CaptureTimeout = c.CaptureTimeout
	}
	if c.ScrollMinInterval > 0 {
		defaults.ScrollMinInterval = c.ScrollMinInterval
	}
	if c.ScrollMultiplier > 0 {
		defaults.ScrollMultiplier = c.ScrollMultiplier
	}
	if c.TimeoutLogCooldown > 0 {
		defaults.TimeoutLogCooldown = c.TimeoutLogCooldown
	}
	return defaults
}

// Validate checks whether the config is usable.
func (c Config) Validate() error {
	if c.CaptureQuality < 1 || c.CaptureQuality > 100 {
		return errors.New("capture_quality must be between 1 and 100")
	}
	if c.CaptureFormat != render.FrameFormatJPEG && c.CaptureFormat != render.FrameFormatPNG {
		return errors.New("capture_format must be jpeg or png")
	}
	if c.CaptureTimeout <= 0 {
		return errors.New("capture_timeout must be positive")
	}
	if c.ScrollMultiplier <= 0 {
		return errors.New("scroll_multiplier must be positive")
	}
	if c.SettleDelay < c.InteractionFrameDelay {
		return errors.New("settle_delay must not be shorter than interaction_frame_delay")
	}
	return nil
}
