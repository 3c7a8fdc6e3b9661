// Package engine implements the strand root coordinator.
//
// The engine ties the three core pieces together: the cooperative task
// scheduler decides when a render unit re-runs and at what priority, a
// unit's update logs decide which pending mutations are visible during
// that run, and the cells runtime is what the unit's body uses to read
// and write its state while honoring that priority.
//
// ARCHITECTURE:
//
// Single-Writer Work Loop:
// All engine mutations happen on the host's work-loop goroutine. Setters
// created by render bodies may be captured and called from that same
// goroutine only; the engine carries no locks. This ensures:
// - Predictable pass ordering
// - Reproducible trace on replay of the same inputs
// - Simple reasoning about causality
//
// Render Pass Flow:
// 1. A setter (or Mount) merges a lane into the unit's pending set and
//    schedules a task at that lane's priority.
// 2. The task picks the render lanes for the pass: the most urgent
//    pending lane, expanded through the entanglement table.
// 3. The cells runtime evaluates the body, draining each cell's log at
//    those lanes and looping on render-phase updates.
// 4. The pass commits: work-in-progress cells become current, effects
//    flush (teardown then setup), applied-update callbacks run, and the
//    commit hook observes the new value.
// 5. Lanes skipped during the drain are carried over and rescheduled.
//
// CRITICAL PATTERNS:
//
// Logical Clock:
// Trace events are stamped with a monotonic seq counter from
// Clock.Next(), never with wall-clock timestamps. Replay of the same
// inputs produces an identical event order.
//
// Supersession, Not Preemption:
// A unit cannot be interrupted mid-evaluation. A more urgent update
// cancels the unit's queued task and schedules a fresher one; the pass
// that eventually runs reads the latest pending set.
package engine
