package interact

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/odvcencio/pagestream/pkg/render"
	"github.com/odvcencio/pagestream/pkg/render/fake"
	"github.com/odvcencio/pagestream/pkg/stream"
)

func setupRouter(t *testing.T, surface *fake.Surface, onTerminal func()) (*Router, *MockFrames) {
	t.Helper()
	ctrl := gomock.NewController(t)
	frames := NewMockFrames(ctrl)
	frames.EXPECT().Config().Return(stream.DefaultConfig())
	return NewRouter(surface, frames, Options{OnTerminal: onTerminal}), frames
}

func TestDispatchClickSchedulesInteractionFrames(t *testing.T) {
	surface := fake.NewSurface()
	router, frames := setupRouter(t, surface, nil)

	gomock.InOrder(
		frames.EXPECT().Schedule(50*time.Millisecond, false),
		frames.EXPECT().Settle(1500*time.Millisecond, false),
	)
	require.NoError(t, router.Dispatch(context.Background(), []byte(`{"type":"click","x":10,"y":12}`)))

	calls := surface.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, fake.Call{Op: "click", X: 10, Y: 12, Button: render.MouseButtonLeft}, calls[0])
}

func TestDispatchClickHonorsButton(t *testing.T) {
	surface := fake.NewSurface()
	router, frames := setupRouter(t, surface, nil)
	frames.EXPECT().Schedule(gomock.Any(), false)
	frames.EXPECT().Settle(gomock.Any(), false)

	require.NoError(t, router.Dispatch(context.Background(), []byte(`{"type":"click","x":0,"y":0,"button":"right"}`)))
	assert.Equal(t, render.MouseButtonRight, surface.Calls()[0].Button)
}

func TestDispatchKeyPrefersText(t *testing.T) {
	surface := fake.NewSurface()
	router, frames := setupRouter(t, surface, nil)
	frames.EXPECT().Schedule(50*time.Millisecond, false).Times(2)
	frames.EXPECT().Settle(1500*time.Millisecond, false).Times(2)

	ctx := context.Background()
	require.NoError(t, router.Dispatch(ctx, []byte(`{"type":"key","key":"Enter","text":"hello"}`)))
	require.NoError(t, router.Dispatch(ctx, []byte(`{"type":"key","key":"Enter"}`)))

	calls := surface.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, fake.Call{Op: "type", Text: "hello"}, calls[0])
	assert.Equal(t, fake.Call{Op: "key", Text: "Enter"}, calls[1])
}

func TestDispatchScrollAppliesMultiplier(t *testing.T) {
	surface := fake.NewSurface()
	router, frames := setupRouter(t, surface, nil)
	frames.EXPECT().ScrollFrame()

	require.NoError(t, router.Dispatch(context.Background(), []byte(`{"type":"scroll","deltaX":10,"deltaY":-20}`)))
	assert.Equal(t, fake.Call{Op: "wheel", X: 15, Y: -30}, surface.Calls()[0])
}

func TestDispatchNavigationForcesFrame(t *testing.T) {
	tests := []struct {
		raw string
		op  string
	}{
		{raw: `{"type":"reload"}`, op: "reload"},
		{raw: `{"type":"back"}`, op: "back"},
		{raw: `{"type":"FORWARD"}`, op: "forward"},
		{raw: `{"type":"navigate","url":"https://next.test"}`, op: "navigate"},
	}
	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			surface := fake.NewSurface()
			router, frames := setupRouter(t, surface, nil)
			gomock.InOrder(
				frames.EXPECT().Schedule(300*time.Millisecond, true),
				frames.EXPECT().Settle(1500*time.Millisecond, false),
			)

			require.NoError(t, router.Dispatch(context.Background(), []byte(tt.raw)))
			calls := surface.Calls()
			require.Len(t, calls, 1)
			assert.Equal(t, tt.op, calls[0].Op)
		})
	}
}

func TestDispatchIgnoresMalformedCommands(t *testing.T) {
	inputs := []string{
		`{`,
		`[]`,
		`{}`,
		`{"type":"jump"}`,
		`{"type":"click","x":1}`,
		`{"type":"scroll"}`,
		`{"type":"key"}`,
		`{"type":"navigate","url":"  "}`,
	}
	surface := fake.NewSurface()
	router, _ := setupRouter(t, surface, nil)

	for _, raw := range inputs {
		err := router.Dispatch(context.Background(), []byte(raw))
		assert.ErrorIs(t, err, ErrMalformed, raw)
	}
	assert.Empty(t, surface.Calls())
}

func TestDispatchIgnoresClosedSurface(t *testing.T) {
	surface := fake.NewSurface()
	require.NoError(t, surface.Close())
	router, _ := setupRouter(t, surface, nil)

	err := router.Dispatch(context.Background(), []byte(`{"type":"click","x":1,"y":1}`))
	assert.ErrorIs(t, err, ErrIgnored)
	assert.Empty(t, surface.Calls())
}

func TestDispatchTerminalErrorTriggersRemoval(t *testing.T) {
	surface := fake.NewSurface()
	surface.ActionErr = func(string) error { return render.WrapError("click", "target_closed", errors.New("Target closed")) }
	var removed atomic.Int32
	router, _ := setupRouter(t, surface, func() { removed.Add(1) })

	err := router.Dispatch(context.Background(), []byte(`{"type":"click","x":1,"y":1}`))
	require.Error(t, err)
	assert.True(t, render.IsTerminal(err))
	assert.EqualValues(t, 1, removed.Load())
}

func TestDispatchGenericErrorStillSchedulesFrames(t *testing.T) {
	surface := fake.NewSurface()
	surface.ActionErr = func(op string) error {
		if op == "reload" {
			return errors.New("net::ERR_ABORTED")
		}
		return nil
	}
	var removed atomic.Int32
	router, frames := setupRouter(t, surface, func() { removed.Add(1) })
	frames.EXPECT().Schedule(300*time.Millisecond, true)
	frames.EXPECT().Settle(1500*time.Millisecond, false)

	err := router.Dispatch(context.Background(), []byte(`{"type":"reload"}`))
	require.Error(t, err)
	assert.Zero(t, removed.Load())
}

func TestPrimeSchedulesForcedFrames(t *testing.T) {
	router, frames := setupRouter(t, fake.NewSurface(), nil)
	gomock.InOrder(
		frames.EXPECT().Schedule(50*time.Millisecond, true),
		frames.EXPECT().Settle(1500*time.Millisecond, true),
	)
	router.Prime()
}

func TestRouterWithSchedulerDeliversFrames(t *testing.T) {
	surface := fake.NewSurface()
	cfg := stream.Config{InteractionFrameDelay: 5 * time.Millisecond, SettleDelay: 40 * time.Millisecond}
	scheduler := stream.NewScheduler(surface, cfg, nil, nil)
	defer scheduler.Close()

	sink := &countingSink{}
	scheduler.Attach(sink)
	router := NewRouter(surface, scheduler, Options{})

	router.Prime()
	require.Eventually(t, func() bool { return sink.delivered.Load() == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, router.Dispatch(context.Background(), []byte(`{"type":"click","x":3,"y":4}`)))
	require.Eventually(t, func() bool { return sink.delivered.Load() == 3 }, time.Second, 5*time.Millisecond)

	// The settle frame after the click matches the last delivered frame.
	time.Sleep(80 * time.Millisecond)
	assert.EqualValues(t, 3, sink.delivered.Load())
}

type countingSink struct {
	delivered atomic.Int32
}

func (c *countingSink) SendFrame(context.Context, stream.Frame) error {
	c.delivered.Add(1)
	return nil
}
