package chrome

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/odvcencio/pagestream/pkg/render"
)

// Surface is one page in its own incognito context.
type Surface struct {
	engine    *Engine
	incognito *rod.Browser
	page      *rod.Page
	viewport  render.Viewport

	closed atomic.Bool
}

// IsClosed reports whether the page or its engine is gone.
func (s *Surface) IsClosed() bool {
	return s.closed.Load() || s.engine.IsClosed()
}

func (s *Surface) ensureOpen() error {
	if s.closed.Load() {
		return render.ErrSurfaceClosed
	}
	if s.engine.IsClosed() {
		return render.ErrEngineClosed
	}
	return nil
}

func (s *Surface) fail(op string, err error) error {
	if err == nil {
		return nil
	}
	classified := s.engine.fail(op, err)
	var renderErr *render.Error
	if errors.As(classified, &renderErr) && renderErr.Code == "target_closed" {
		s.closed.Store(true)
	}
	return classified
}

func (s *Surface) Capture(ctx context.Context, opts render.CaptureOptions) ([]byte, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	req := &proto.PageCaptureScreenshot{Format: proto.PageCaptureScreenshotFormatJpeg}
	if opts.Format == render.FrameFormatPNG {
		req.Format = proto.PageCaptureScreenshotFormatPng
	} else if opts.Quality > 0 {
		quality := opts.Quality
		req.Quality = &quality
	}
	data, err := s.page.Context(ctx).Screenshot(false, req)
	if err != nil {
		return nil, s.fail("capture", err)
	}
	return data, nil
}

func (s *Surface) Click(ctx context.Context, x, y float64, button render.MouseButton) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	page := s.page.Context(ctx)
	btn := mouseButton(button)
	events := []proto.InputDispatchMouseEvent{
		{Type: proto.InputDispatchMouseEventTypeMouseMoved, X: x, Y: y},
		{Type: proto.InputDispatchMouseEventTypeMousePressed, X: x, Y: y, Button: btn, ClickCount: 1},
		{Type: proto.InputDispatchMouseEventTypeMouseReleased, X: x, Y: y, Button: btn, ClickCount: 1},
	}
	for _, ev := range events {
		if err := ev.Call(page); err != nil {
			return s.fail("click", err)
		}
	}
	return nil
}

func (s *Surface) Wheel(ctx context.Context, dx, dy float64) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	err := proto.InputDispatchMouseEvent{
		Type:   proto.InputDispatchMouseEventTypeMouseWheel,
		X:      float64(s.viewport.Width) / 2,
		Y:      float64(s.viewport.Height) / 2,
		DeltaX: dx,
		DeltaY: dy,
	}.Call(s.page.Context(ctx))
	return s.fail("wheel", err)
}

// KeyPress sends a named key or a single printable character. Anything else
// is inserted as text.
func (s *Surface) KeyPress(ctx context.Context, key string) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	k, ok := lookupKey(key)
	if !ok {
		return s.fail("key", s.page.Context(ctx).InsertText(key))
	}
	return s.fail("key", s.page.Keyboard.Type(k))
}

func (s *Surface) TypeText(ctx context.Context, text string) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	return s.fail("type", s.page.Context(ctx).InsertText(text))
}

func (s *Surface) Navigate(ctx context.Context, url string) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	page := s.page.Context(ctx)
	if err := page.Navigate(url); err != nil {
		return s.fail("navigate", err)
	}
	return s.fail("navigate", page.WaitLoad())
}

func (s *Surface) Reload(ctx context.Context) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	return s.fail("reload", s.page.Context(ctx).Reload())
}

func (s *Surface) GoBack(ctx context.Context) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	return s.fail("back", s.page.Context(ctx).NavigateBack())
}

func (s *Surface) GoForward(ctx context.Context) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	return s.fail("forward", s.page.Context(ctx).NavigateForward())
}

// Close closes the page and disposes its incognito context.
func (s *Surface) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if s.engine.IsClosed() {
		return nil
	}
	return errors.Join(s.page.Close(), s.incognito.Close())
}

func mouseButton(b render.MouseButton) proto.InputMouseButton {
	switch b {
	case render.MouseButtonMiddle:
		return proto.InputMouseButtonMiddle
	case render.MouseButtonRight:
		return proto.InputMouseButtonRight
	default:
		return proto.InputMouseButtonLeft
	}
}
