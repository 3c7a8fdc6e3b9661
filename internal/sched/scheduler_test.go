package sched

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strandworks/strand/internal/testutil"
)

func noop(bool) Callback { return nil }

func record(order *[]string, name string) Callback {
	return func(bool) Callback {
		*order = append(*order, name)
		return nil
	}
}

func TestScheduler_EqualPriorityRunsInScheduleOrder(t *testing.T) {
	host := testutil.NewManualHost()
	s := New(host)

	var order []string
	s.ScheduleTask(NormalPriority, record(&order, "A"), Options{})
	s.ScheduleTask(NormalPriority, record(&order, "B"), Options{})
	s.ScheduleTask(NormalPriority, record(&order, "C"), Options{})

	host.FlushTurns(10)
	assert.Equal(t, []string{"A", "B", "C"}, order)
}

func TestScheduler_EarlierExpirationRunsFirst(t *testing.T) {
	host := testutil.NewManualHost()
	s := New(host)

	var order []string
	// Scheduled later but expires sooner.
	s.ScheduleTask(NormalPriority, record(&order, "normal"), Options{})
	s.ScheduleTask(UserBlockingPriority, record(&order, "user-blocking"), Options{})
	s.ScheduleTask(ImmediatePriority, record(&order, "immediate"), Options{})

	host.FlushTurns(10)
	assert.Equal(t, []string{"immediate", "user-blocking", "normal"}, order)
}

func TestScheduler_ImmediateTaskRunsAsOverdue(t *testing.T) {
	host := testutil.NewManualHost()
	s := New(host)

	var gotTimeout bool
	s.ScheduleTask(ImmediatePriority, func(didTimeout bool) Callback {
		gotTimeout = didTimeout
		return nil
	}, Options{})

	host.FlushTurns(10)
	assert.True(t, gotTimeout, "immediate tasks are past due on arrival")
}

func TestScheduler_ContinuationReentersSameSlot(t *testing.T) {
	host := testutil.NewManualHost()
	s := New(host)

	var order []string
	s.ScheduleTask(NormalPriority, func(bool) Callback {
		order = append(order, "first-half")
		// Burn the turn budget so the loop yields before running more.
		host.Advance(10 * time.Millisecond)
		return func(bool) Callback {
			order = append(order, "second-half")
			return nil
		}
	}, Options{})
	s.ScheduleTask(NormalPriority, record(&order, "other"), Options{})

	host.FlushTurns(10)
	assert.Equal(t, []string{"first-half", "second-half", "other"}, order,
		"continuation keeps the task at the heap head")
}

func TestScheduler_CancelIsIdempotent(t *testing.T) {
	host := testutil.NewManualHost()
	s := New(host)

	ran := false
	task := s.ScheduleTask(NormalPriority, func(bool) Callback {
		ran = true
		return nil
	}, Options{})

	s.CancelTask(task)
	s.CancelTask(task)
	s.CancelTask(nil)

	host.FlushTurns(10)
	assert.False(t, ran, "cancelled task never runs")
	assert.False(t, s.HasPendingWork())
}

func TestScheduler_DelayedTaskPromotes(t *testing.T) {
	host := testutil.NewManualHost()
	s := New(host)

	var order []string
	s.ScheduleTask(NormalPriority, record(&order, "delayed"), Options{Delay: 100 * time.Millisecond})

	require.True(t, host.HasTimeout(), "only delayed work arms the host timeout")
	require.Equal(t, 100*time.Millisecond, host.TimeoutAt())

	host.FlushTurns(10)
	assert.Empty(t, order, "not due yet")

	host.Advance(100 * time.Millisecond)
	host.FlushTurns(10)
	assert.Equal(t, []string{"delayed"}, order)
	assert.False(t, host.HasTimeout())
}

func TestScheduler_TimeoutRearmsForEarliestTimer(t *testing.T) {
	host := testutil.NewManualHost()
	s := New(host)

	var order []string
	s.ScheduleTask(NormalPriority, record(&order, "late"), Options{Delay: 200 * time.Millisecond})
	s.ScheduleTask(NormalPriority, record(&order, "early"), Options{Delay: 50 * time.Millisecond})

	require.True(t, host.HasTimeout())
	require.Equal(t, 50*time.Millisecond, host.TimeoutAt(), "timeout re-armed for the earlier timer")

	host.Advance(50 * time.Millisecond)
	host.FlushTurns(10)
	assert.Equal(t, []string{"early"}, order)
	require.True(t, host.HasTimeout(), "remaining timer re-arms")

	host.Advance(150 * time.Millisecond)
	host.FlushTurns(10)
	assert.Equal(t, []string{"early", "late"}, order)
}

func TestScheduler_CancelledDelayedTaskDiscardedOnPromotion(t *testing.T) {
	host := testutil.NewManualHost()
	s := New(host)

	task := s.ScheduleTask(NormalPriority, noop, Options{Delay: 10 * time.Millisecond})
	s.CancelTask(task)

	host.Advance(10 * time.Millisecond)
	host.FlushTurns(10)
	assert.False(t, s.HasPendingWork())
}

func TestScheduler_YieldsBetweenTurnsWhenBudgetSpent(t *testing.T) {
	host := testutil.NewManualHost()
	s := New(host)

	var order []string
	s.ScheduleTask(NormalPriority, func(bool) Callback {
		order = append(order, "A")
		host.Advance(10 * time.Millisecond) // past the 5ms frame budget
		return nil
	}, Options{})
	s.ScheduleTask(NormalPriority, record(&order, "B"), Options{})

	require.True(t, host.RunTurn())
	assert.Equal(t, []string{"A"}, order, "budget spent, B deferred to next turn")

	host.FlushTurns(10)
	assert.Equal(t, []string{"A", "B"}, order)
}

func TestScheduler_OverdueTaskRunsDespiteSpentBudget(t *testing.T) {
	host := testutil.NewManualHost()
	s := New(host)

	var order []string
	s.ScheduleTask(NormalPriority, func(bool) Callback {
		order = append(order, "A")
		host.Advance(10 * time.Millisecond)
		return nil
	}, Options{})
	s.ScheduleTask(ImmediatePriority, record(&order, "urgent"), Options{})

	require.True(t, host.RunTurn())
	assert.Equal(t, []string{"urgent", "A"}, order[:2],
		"past-due tasks are uninterruptible and sort first")
}

func TestScheduler_ShouldYield_FrameIntervalUnconditional(t *testing.T) {
	host := testutil.NewInputHost()
	host.DiscretePending = true
	s := New(host)

	var inside []bool
	s.ScheduleTask(NormalPriority, func(bool) Callback {
		inside = append(inside, s.ShouldYield()) // elapsed 0
		host.Advance(4 * time.Millisecond)
		inside = append(inside, s.ShouldYield()) // still under 5ms
		host.Advance(2 * time.Millisecond)
		inside = append(inside, s.ShouldYield()) // past 5ms, discrete input pending
		return nil
	}, Options{})

	host.FlushTurns(10)
	assert.Equal(t, []bool{false, false, true}, inside,
		"never yields inside the frame interval, then follows input state")
}

func TestScheduler_ShouldYield_EscalationThresholds(t *testing.T) {
	tests := []struct {
		name       string
		elapsed    time.Duration
		discrete   bool
		continuous bool
		paint      bool
		want       bool
	}{
		{"under frame interval", 2 * time.Millisecond, true, true, true, false},
		{"paint pending", 6 * time.Millisecond, false, false, true, true},
		{"below continuous threshold, no discrete", 6 * time.Millisecond, false, true, false, false},
		{"below continuous threshold, discrete", 6 * time.Millisecond, true, false, false, true},
		{"past continuous threshold, continuous input", 60 * time.Millisecond, false, true, false, true},
		{"past continuous threshold, no input", 60 * time.Millisecond, false, false, false, false},
		{"past hard ceiling", 400 * time.Millisecond, false, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host := testutil.NewInputHost()
			host.DiscretePending = tt.discrete
			host.ContinuousPending = tt.continuous
			s := New(host)

			var got bool
			s.ScheduleTask(NormalPriority, func(bool) Callback {
				if tt.paint {
					s.RequestPaint()
				}
				host.Advance(tt.elapsed)
				got = s.ShouldYield()
				return nil
			}, Options{})

			host.FlushTurns(10)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScheduler_ShouldYield_NoProbeAlwaysYieldsPastInterval(t *testing.T) {
	host := testutil.NewManualHost()
	s := New(host)

	var got []bool
	s.ScheduleTask(NormalPriority, func(bool) Callback {
		got = append(got, s.ShouldYield())
		host.Advance(6 * time.Millisecond)
		got = append(got, s.ShouldYield())
		return nil
	}, Options{})

	host.FlushTurns(10)
	assert.Equal(t, []bool{false, true}, got)
}

func TestScheduler_RunAtPriority_SaveRestore(t *testing.T) {
	host := testutil.NewManualHost()
	s := New(host)

	require.Equal(t, NormalPriority, s.CurrentPriority())

	s.RunAtPriority(UserBlockingPriority, func() {
		assert.Equal(t, UserBlockingPriority, s.CurrentPriority())
		s.RunAtPriority(IdlePriority, func() {
			assert.Equal(t, IdlePriority, s.CurrentPriority())
		})
		assert.Equal(t, UserBlockingPriority, s.CurrentPriority(), "nested restore")
	})
	assert.Equal(t, NormalPriority, s.CurrentPriority())
}

func TestScheduler_RunAtPriority_RestoresOnPanic(t *testing.T) {
	host := testutil.NewManualHost()
	s := New(host)

	require.Panics(t, func() {
		s.RunAtPriority(ImmediatePriority, func() {
			panic("boom")
		})
	})
	assert.Equal(t, NormalPriority, s.CurrentPriority())
}

func TestScheduler_RunAtPriority_InvalidFallsBackToNormal(t *testing.T) {
	host := testutil.NewManualHost()
	s := New(host)

	s.RunAtPriority(Priority(42), func() {
		assert.Equal(t, NormalPriority, s.CurrentPriority())
	})
}

func TestScheduler_ShiftToNormal(t *testing.T) {
	host := testutil.NewManualHost()
	s := New(host)

	s.RunAtPriority(ImmediatePriority, func() {
		s.ShiftToNormal(func() {
			assert.Equal(t, NormalPriority, s.CurrentPriority())
		})
		assert.Equal(t, ImmediatePriority, s.CurrentPriority())
	})

	s.RunAtPriority(IdlePriority, func() {
		s.ShiftToNormal(func() {
			assert.Equal(t, IdlePriority, s.CurrentPriority(), "below-normal left untouched")
		})
	})
}

func TestScheduler_TaskPriorityIsCurrentDuringRun(t *testing.T) {
	host := testutil.NewManualHost()
	s := New(host)

	var seen Priority
	s.ScheduleTask(UserBlockingPriority, func(bool) Callback {
		seen = s.CurrentPriority()
		return nil
	}, Options{})

	host.FlushTurns(10)
	assert.Equal(t, UserBlockingPriority, seen)
}

func TestScheduler_PanickingTaskDoesNotWedgeLaterTurns(t *testing.T) {
	host := testutil.NewManualHost()
	s := New(host)

	var order []string
	s.ScheduleTask(NormalPriority, func(bool) Callback {
		panic("task fault")
	}, Options{})
	s.ScheduleTask(NormalPriority, record(&order, "survivor"), Options{})

	// The panic propagates to the host turn boundary.
	require.Panics(t, func() { host.RunTurn() })

	// Cleanup ran: a follow-up turn was requested and later tasks run.
	host.FlushTurns(10)
	assert.Equal(t, []string{"survivor"}, order)
	assert.Equal(t, NormalPriority, s.CurrentPriority())
}

func TestScheduler_ScheduleDuringWorkDoesNotRequestExtraTurn(t *testing.T) {
	host := testutil.NewManualHost()
	s := New(host)

	var order []string
	s.ScheduleTask(NormalPriority, func(bool) Callback {
		order = append(order, "outer")
		s.ScheduleTask(NormalPriority, record(&order, "inner"), Options{})
		return nil
	}, Options{})

	host.FlushTurns(10)
	assert.Equal(t, []string{"outer", "inner"}, order)
	assert.False(t, s.HasPendingWork())
}

func TestScheduler_SetFrameRate(t *testing.T) {
	host := testutil.NewManualHost()
	s := New(host)

	s.SetFrameRate(50) // 20ms budget

	var got []bool
	s.ScheduleTask(NormalPriority, func(bool) Callback {
		host.Advance(10 * time.Millisecond)
		got = append(got, s.ShouldYield()) // under 20ms budget
		host.Advance(15 * time.Millisecond)
		got = append(got, s.ShouldYield()) // over
		return nil
	}, Options{})

	host.FlushTurns(10)
	assert.Equal(t, []bool{false, true}, got)

	s.SetFrameRate(0) // invalid, falls back to default
}
