// Package common holds small helpers shared by the commands.
package common

import (
	"fmt"
	"log/slog"
	"time"
)

// Timer measures one named step. It is logged as a group holding the step
// name and its duration in milliseconds.
type Timer struct {
	name     string
	start    time.Time
	duration time.Duration
	stopped  bool
}

// NewNamedTimer starts a timer for the step called name.
func NewNamedTimer(name string) *Timer {
	return &Timer{name: name, start: time.Now()}
}

// Stop records the elapsed time. Later calls return the first measurement.
func (t *Timer) Stop() time.Duration {
	if !t.stopped {
		t.duration = time.Since(t.start)
		t.stopped = true
	}
	return t.duration
}

// Duration is the recorded duration, or the running time when the timer
// has not been stopped.
func (t *Timer) Duration() time.Duration {
	if !t.stopped {
		return time.Since(t.start)
	}
	return t.duration
}

// Name returns the step name.
func (t *Timer) Name() string { return t.name }

func (t *Timer) String() string {
	return fmt.Sprintf("%s: %v", t.name, t.Duration().Round(time.Microsecond))
}

// LogValue implements slog.LogValuer.
func (t *Timer) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("step", t.name),
		slog.Float64("ms", float64(t.Duration().Microseconds())/1000),
	)
}
