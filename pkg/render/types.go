package render

import "context"

// MouseButton identifies the pointer button for a click.
type MouseButton string

const (
	MouseButtonLeft   MouseButton = "left"
	MouseButtonMiddle MouseButton = "middle"
	MouseButtonRight  MouseButton = "right"
)

// ParseMouseButton maps a client supplied button name to a MouseButton.
// Unknown or empty names fall back to the left button.
func ParseMouseButton(name string) MouseButton {
	switch MouseButton(name) {
	case MouseButtonMiddle:
		return MouseButtonMiddle
	case MouseButtonRight:
		return MouseButtonRight
	default:
		return MouseButtonLeft
	}
}

// FrameFormat identifies the image format for a captured frame.
type FrameFormat string

const (
	FrameFormatJPEG FrameFormat = "jpeg"
	FrameFormatPNG  FrameFormat = "png"
)

// Viewport defines the surface viewport size.
type Viewport struct {
	Width             int     `json:"width" yaml:"width"`
	Height            int     `json:"height" yaml:"height"`
	DeviceScaleFactor float64 `json:"device_scale_factor,omitempty" yaml:"device_scale_factor"`
}

// DefaultViewport returns the recommended viewport.
func DefaultViewport() Viewport {
	return Viewport{Width: 1280, Height: 720, DeviceScaleFactor: 1.0}
}

// SurfaceOptions configures a new surface.
type SurfaceOptions struct {
	Viewport Viewport
}

// CaptureOptions tunes a single capture.
type CaptureOptions struct {
	Format  FrameFormat
	Quality int
}

// BlankURL is the safe target used when initial navigation fails.
const BlankURL = "about:blank"

//go:generate mockgen -package=mocks -destination=mocks/mock_render.go github.com/odvcencio/pagestream/pkg/render Launcher,Engine

// Launcher creates engines. One engine is launched per user identity.
type Launcher interface {
	Launch(ctx context.Context, userID string) (Engine, error)
}

// Engine is a heavyweight render host shared by every surface of one user.
type Engine interface {
	ID() string
	NewSurface(ctx context.Context, opts SurfaceOptions) (Surface, error)
	IsClosed() bool
	Close() error
}

// Surface is one capturable, interactive unit of render state.
type Surface interface {
	Capture(ctx context.Context, opts CaptureOptions) ([]byte, error)
	Click(ctx context.Context, x, y float64, button MouseButton) error
	Wheel(ctx context.Context, dx, dy float64) error
	KeyPress(ctx context.Context, key string) error
	TypeText(ctx context.Context, text string) error
	Navigate(ctx context.Context, url string) error
	Reload(ctx context.Context) error
	GoBack(ctx context.Context) error
	GoForward(ctx context.Context) error
	IsClosed() bool
	Close() error
}
