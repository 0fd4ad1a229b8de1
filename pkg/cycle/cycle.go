// Package cycle derives the weekly registration/matching calendar from wall
// clock time. Every function is pure; nothing here schedules work.
package cycle

import (
	"fmt"
	"time"
	_ "time/tzdata" // the civil timezone must resolve on minimal images
)

type Phase string

const (
	PhaseRegistration Phase = "REGISTRATION"
	PhaseMatching     Phase = "MATCHING"
)

// KeyLayout formats a cycle start as a store/cache key, e.g. "2026-10-11".
const KeyLayout = "2006-01-02"

// Window is an inclusive [Open, Close] interval.
type Window struct {
	Open  time.Time `json:"open"`
	Close time.Time `json:"close"`
}

// Contains reports whether t falls inside the window, both ends included.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Open) && !t.After(w.Close)
}

// Clock evaluates cycle boundaries in one fixed civil timezone.
type Clock struct {
	loc *time.Location
	now func() time.Time
}

func New(loc *time.Location) *Clock {
	if loc == nil {
		loc = time.UTC
	}
	return &Clock{loc: loc, now: time.Now}
}

// NewFromName loads the IANA zone by name, e.g. "Asia/Seoul".
func NewFromName(name string) (*Clock, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("cycle: load timezone %q: %w", name, err)
	}
	return New(loc), nil
}

// WithNow returns a copy of the clock reading time from fn. Used by tests and
// by callers replaying a past instant.
func (c *Clock) WithNow(fn func() time.Time) *Clock {
	return &Clock{loc: c.loc, now: fn}
}

func (c *Clock) Location() *time.Location { return c.loc }

// Now returns the current instant expressed in the clock's timezone.
func (c *Clock) Now() time.Time { return c.now().In(c.loc) }

// Phase is MATCHING on Friday and Saturday and REGISTRATION otherwise.
func (c *Clock) Phase(t time.Time) Phase {
	switch t.In(c.loc).Weekday() {
	case time.Friday, time.Saturday:
		return PhaseMatching
	default:
		return PhaseRegistration
	}
}

// CurrentCycleStart is the most recent Sunday 00:00 on or before t.
func (c *Clock) CurrentCycleStart(t time.Time) time.Time {
	lt := t.In(c.loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day()-int(lt.Weekday()), 0, 0, 0, 0, c.loc)
}

// TargetCycleStart is the cycle an application submitted at t counts toward.
// During MATCHING that is next Sunday's cycle.
func (c *Clock) TargetCycleStart(t time.Time) time.Time {
	start := c.CurrentCycleStart(t)
	if c.Phase(t) == PhaseMatching {
		return addDays(start, 7)
	}
	return start
}

// NextPhaseChange is the instant the phase flips after t: Friday 00:00 during
// REGISTRATION, the following Sunday 00:00 during MATCHING.
func (c *Clock) NextPhaseChange(t time.Time) time.Time {
	start := c.CurrentCycleStart(t)
	if c.Phase(t) == PhaseMatching {
		return addDays(start, 7)
	}
	return addDays(start, 5)
}

// ApplicationWindow spans the Friday before cycleStart through the Thursday
// after it, so a registration week still feeds the weekend right after it.
func ApplicationWindow(cycleStart time.Time) Window {
	y, m, d := cycleStart.Date()
	loc := cycleStart.Location()
	return Window{
		Open:  time.Date(y, m, d-2, 0, 0, 0, 0, loc),
		Close: time.Date(y, m, d+4, 23, 59, 59, int(999*time.Millisecond), loc),
	}
}

// Key returns the store key of the cycle starting at cycleStart.
func Key(cycleStart time.Time) string {
	return cycleStart.Format(KeyLayout)
}

// Status is a snapshot of the calendar at one instant.
type Status struct {
	Now              time.Time `json:"now"`
	Phase            Phase     `json:"phase"`
	CycleStart       time.Time `json:"cycle_start"`
	TargetCycleStart time.Time `json:"target_cycle_start"`
	Window           Window    `json:"application_window"`
	NextPhaseChange  time.Time `json:"next_phase_change"`
}

func (c *Clock) Status(t time.Time) Status {
	t = t.In(c.loc)
	target := c.TargetCycleStart(t)
	return Status{
		Now:              t,
		Phase:            c.Phase(t),
		CycleStart:       c.CurrentCycleStart(t),
		TargetCycleStart: target,
		Window:           ApplicationWindow(target),
		NextPhaseChange:  c.NextPhaseChange(t),
	}
}

// addDays moves by calendar days so DST or offset changes never shift midnight.
func addDays(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+n, 0, 0, 0, 0, t.Location())
}
