package health

import (
	"fmt"
	"time"
)

// Window is a local-time-of-day range. Inverter errors outside it are the
// device's way of saying "idle", not a fault: microinverters report error
// rather than disconnected after dark or under brief occlusion.
type Window struct {
	startMin int
	endMin   int
}

// ParseWindow builds a Window from two HH:MM clock strings.
func ParseWindow(start, end string) (Window, error) {
	s, err := parseClock(start)
	if err != nil {
		return Window{}, fmt.Errorf("daylight start: %w", err)
	}
	e, err := parseClock(end)
	if err != nil {
		return Window{}, fmt.Errorf("daylight end: %w", err)
	}
	if e <= s {
		return Window{}, fmt.Errorf("daylight window %s-%s is empty", start, end)
	}
	return Window{startMin: s, endMin: e}, nil
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("want HH:MM, got %q", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Contains reports whether t's time of day falls inside the window. The start
// is inclusive and the end exclusive, so 07:00-19:00 covers 07:00 through
// 18:59.
func (w Window) Contains(t time.Time) bool {
	min := t.Hour()*60 + t.Minute()
	return min >= w.startMin && min < w.endMin
}
