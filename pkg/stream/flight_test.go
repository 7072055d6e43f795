package stream

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlightTransitions(t *testing.T) {
	var f flight
	assert.Equal(t, "idle", f.state.String())

	require.True(t, f.begin(false))
	assert.Equal(t, stateCapturing, f.state)

	require.False(t, f.begin(false))
	assert.Equal(t, stateCapturingPending, f.state)
	require.False(t, f.begin(true))
	require.False(t, f.begin(false))

	replay, force := f.finish()
	assert.True(t, replay)
	assert.True(t, force)
	assert.Equal(t, stateIdle, f.state)

	require.True(t, f.begin(false))
	replay, force = f.finish()
	assert.False(t, replay)
	assert.False(t, force)
}

func TestTimerSlotResetReplacesPendingCallback(t *testing.T) {
	var slot TimerSlot
	var first, second atomic.Int32

	slot.Reset(20*time.Millisecond, func() { first.Add(1) })
	slot.Reset(20*time.Millisecond, func() { second.Add(1) })
	assert.True(t, slot.Pending())

	require.Eventually(t, func() bool { return second.Load() == 1 }, time.Second, time.Millisecond)
	assert.Zero(t, first.Load())
	assert.False(t, slot.Pending())
}

func TestTimerSlotStop(t *testing.T) {
	var slot TimerSlot
	var fired atomic.Int32

	assert.False(t, slot.Stop())
	slot.Reset(10*time.Millisecond, func() { fired.Add(1) })
	assert.True(t, slot.Stop())
	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, fired.Load())
}
