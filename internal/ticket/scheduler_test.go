package ticket_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/shadowdev/shadowbot/internal/ticket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const delay = 12 * time.Hour

func newScheduler(t *testing.T) (*ticket.Scheduler, *manualClock) {
	t.Helper()

	clock := newManualClock()
	scheduler := ticket.NewScheduler(clock, zap.NewNop())
	t.Cleanup(scheduler.Shutdown)

	return scheduler, clock
}

func TestSchedulerFiresAfterDelay(t *testing.T) {
	t.Parallel()

	scheduler, clock := newScheduler(t)

	var fired []ticket.Task
	task, ok := scheduler.Schedule(7, delay, func(task ticket.Task) {
		fired = append(fired, task)
	})
	require.True(t, ok)
	assert.Equal(t, epoch.Add(delay), task.FireAt)
	assert.Equal(t, ticket.StateScheduled, scheduler.State(7))

	clock.Advance(delay - time.Second)
	assert.Empty(t, fired)

	clock.Advance(time.Second)
	require.Len(t, fired, 1)
	assert.Equal(t, task.Generation, fired[0].Generation)
	assert.Equal(t, ticket.StateNone, scheduler.State(7))
	assert.Zero(t, scheduler.Pending())
}

func TestSchedulerScheduleReplacesPending(t *testing.T) {
	t.Parallel()

	scheduler, clock := newScheduler(t)

	var fired []uint64
	record := func(task ticket.Task) {
		fired = append(fired, task.Generation)
	}

	first, _ := scheduler.Schedule(7, delay, record)
	clock.Advance(time.Hour)
	second, _ := scheduler.Schedule(7, delay, record)

	assert.Equal(t, 1, scheduler.Pending())

	clock.Advance(11 * time.Hour)
	assert.Empty(t, fired, "replaced task must not fire")

	clock.Advance(time.Hour)
	assert.Equal(t, []uint64{second.Generation}, fired)
	assert.NotEqual(t, first.Generation, second.Generation)

	clock.Advance(48 * time.Hour)
	assert.Len(t, fired, 1)
}

func TestSchedulerIgnoresStaleTimer(t *testing.T) {
	t.Parallel()

	clock := newManualClock()
	clock.ignoreStop = true
	scheduler := ticket.NewScheduler(clock, zap.NewNop())

	var fired []uint64
	record := func(task ticket.Task) {
		fired = append(fired, task.Generation)
	}

	scheduler.Schedule(7, delay, record)
	clock.Advance(time.Minute)
	second, _ := scheduler.Schedule(7, delay, record)

	// The first timer still goes off but is no longer the live generation
	clock.Advance(delay - time.Minute)
	assert.Empty(t, fired)
	assert.Equal(t, ticket.StateScheduled, scheduler.State(7))

	clock.Advance(time.Minute)
	assert.Equal(t, []uint64{second.Generation}, fired)
}

func TestSchedulerScheduleIfAbsent(t *testing.T) {
	t.Parallel()

	scheduler, clock := newScheduler(t)

	var calls atomic.Int32
	fire := func(ticket.Task) { calls.Add(1) }

	first, ok := scheduler.ScheduleIfAbsent(7, delay, fire)
	require.True(t, ok)

	clock.Advance(time.Hour)

	existing, ok := scheduler.ScheduleIfAbsent(7, delay, fire)
	assert.False(t, ok)
	assert.Equal(t, first, existing)

	clock.Advance(11 * time.Hour)
	assert.Equal(t, int32(1), calls.Load())

	_, ok = scheduler.ScheduleIfAbsent(7, delay, fire)
	assert.True(t, ok, "a new task can start once the previous one fired")
}

func TestSchedulerCancel(t *testing.T) {
	t.Parallel()

	scheduler, clock := newScheduler(t)

	assert.False(t, scheduler.Cancel(7), "cancelling nothing is a no-op")

	var calls atomic.Int32
	scheduler.Schedule(7, delay, func(ticket.Task) { calls.Add(1) })
	scheduler.Schedule(8, delay, func(ticket.Task) { calls.Add(1) })

	assert.True(t, scheduler.Cancel(7))
	assert.False(t, scheduler.Cancel(7))

	_, ok := scheduler.Get(7)
	assert.False(t, ok)

	clock.Advance(delay)
	assert.Equal(t, int32(1), calls.Load(), "other channels are unaffected")
	assert.False(t, scheduler.Cancel(8), "cancelling a fired task is a no-op")
}

func TestSchedulerShutdown(t *testing.T) {
	t.Parallel()

	clock := newManualClock()
	scheduler := ticket.NewScheduler(clock, zap.NewNop())

	var calls atomic.Int32
	for _, ch := range []snowflake.ID{1, 2, 3} {
		scheduler.Schedule(ch, delay, func(ticket.Task) { calls.Add(1) })
	}

	scheduler.Shutdown()
	assert.Zero(t, scheduler.Pending())

	_, ok := scheduler.Schedule(4, delay, func(ticket.Task) { calls.Add(1) })
	assert.False(t, ok)

	clock.Advance(2 * delay)
	assert.Zero(t, calls.Load())
}

func TestSchedulerRecoversPanickingTask(t *testing.T) {
	t.Parallel()

	scheduler, clock := newScheduler(t)

	scheduler.Schedule(7, delay, func(ticket.Task) {
		panic("channel vanished")
	})

	assert.NotPanics(t, func() {
		clock.Advance(delay)
	})
	assert.Equal(t, ticket.StateNone, scheduler.State(7))
}

func TestStateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "none", ticket.StateNone.String())
	assert.Equal(t, "scheduled", ticket.StateScheduled.String())
	assert.Equal(t, "fired", ticket.StateFired.String())
	assert.Equal(t, "cancelled", ticket.StateCancelled.String())
}
