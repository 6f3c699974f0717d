// Package clock implements the accelerated world clock. One real second is
// Ratio world seconds (default 3), so one world day passes in eight real
// hours. Every scheduler in the server derives its notion of "now" from this
// single source; the fixed integer ratio keeps independent subsystems from
// drifting apart.
package clock

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/saltmere/server/internal/errs"
)

// DefaultRatio is the real→world acceleration factor.
const DefaultRatio = 3

const secondsPerDay = 86400

// DayPart buckets the world hour into a narrative slice of the day.
type DayPart string

const (
	Dawn      DayPart = "Dawn"      // 05:00–07:59
	Morning   DayPart = "Morning"   // 08:00–11:59
	Afternoon DayPart = "Afternoon" // 12:00–16:59
	Dusk      DayPart = "Dusk"      // 17:00–19:59
	Night     DayPart = "Night"     // 20:00–04:59
)

// Clock tracks world time. Safe for concurrent use; reads are cheap.
type Clock struct {
	mu         sync.Mutex
	startReal  time.Time
	startWorld int64
	ratio      int64
	now        func() time.Time
}

// New creates a clock starting at world second 0 with the given ratio.
// A ratio below 1 falls back to DefaultRatio.
func New(ratio int) *Clock {
	if ratio < 1 {
		ratio = DefaultRatio
	}
	return &Clock{
		startReal: time.Now(),
		ratio:     int64(ratio),
		now:       time.Now,
	}
}

// NewAt creates a clock with an injected time source, for tests.
func NewAt(ratio int, now func() time.Time) *Clock {
	c := New(ratio)
	c.now = now
	c.startReal = now()
	return c
}

// WorldSeconds returns the current world time in seconds since epoch.
// Monotonically non-decreasing except across SetWorldSeconds.
func (c *Clock) WorldSeconds() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	elapsed := c.now().Sub(c.startReal)
	return c.startWorld + elapsed.Milliseconds()*c.ratio/1000
}

// SetWorldSeconds rebases the clock to the given world time (admin only).
func (c *Clock) SetWorldSeconds(v int64) error {
	if v < 0 {
		return errs.Invalidf("world time cannot be negative")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startWorld = v
	c.startReal = c.now()
	return nil
}

// DayNumber returns the number of whole world days since epoch.
func (c *Clock) DayNumber() int64 { return c.WorldSeconds() / secondsPerDay }

// Hour returns the world hour, 0–23.
func (c *Clock) Hour() int { return int(c.WorldSeconds() % secondsPerDay / 3600) }

// Minute returns the world minute, 0–59.
func (c *Clock) Minute() int { return int(c.WorldSeconds() % 3600 / 60) }

// Second returns the world second, 0–59.
func (c *Clock) Second() int { return int(c.WorldSeconds() % 60) }

// DayPart returns the current narrative slice of the day.
func (c *Clock) DayPart() DayPart {
	return dayPartForHour(c.Hour())
}

func dayPartForHour(hour int) DayPart {
	switch {
	case hour >= 5 && hour < 8:
		return Dawn
	case hour >= 8 && hour < 12:
		return Morning
	case hour >= 12 && hour < 17:
		return Afternoon
	case hour >= 17 && hour < 20:
		return Dusk
	default:
		return Night
	}
}

// ParseClockTime parses "HH:MM" into minutes since midnight.
func ParseClockTime(s string) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, errs.Invalidf("bad time %q, want HH:MM", s)
	}
	hour, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || hour < 0 || hour > 23 {
		return 0, errs.Invalidf("bad hour in %q", s)
	}
	minute, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || minute < 0 || minute > 59 {
		return 0, errs.Invalidf("bad minute in %q", s)
	}
	return hour*60 + minute, nil
}

// IsTimeInRange reports whether the current world time falls inside the
// [start, end) range. A start later than end wraps past midnight, e.g.
// "22:00".."06:00" covers late night and early morning.
func (c *Clock) IsTimeInRange(start, end string) (bool, error) {
	startMin, err := ParseClockTime(start)
	if err != nil {
		return false, err
	}
	endMin, err := ParseClockTime(end)
	if err != nil {
		return false, err
	}
	cur := c.Hour()*60 + c.Minute()
	if startMin > endMin {
		return cur >= startMin || cur < endMin, nil
	}
	return cur >= startMin && cur < endMin, nil
}

// TimeString renders the narrative clock line shown by the time command.
func (c *Clock) TimeString(exact bool) string {
	part := c.DayPart()
	hour := c.Hour()

	var bells int
	var zero string
	switch part {
	case Dawn:
		bells, zero = hour-5, "sunrise"
	case Morning:
		bells, zero = hour-8, "early morning"
	case Afternoon:
		bells, zero = hour-12, "midday"
	case Dusk:
		bells, zero = hour-17, "sunset"
	default: // Night wraps midnight: 20:00 → 0 bells, 04:00 → 8 bells
		if hour >= 20 {
			bells = hour - 20
		} else {
			bells = hour + 4
		}
		zero = "deep night"
	}

	desc := zero
	if bells > 0 {
		plural := ""
		if bells > 1 {
			plural = "s"
		}
		switch part {
		case Dawn:
			desc = fmt.Sprintf("%d bell%s past sunrise", bells, plural)
		case Morning:
			desc = fmt.Sprintf("%d bell%s past dawn", bells, plural)
		case Afternoon:
			desc = fmt.Sprintf("%d bell%s past noon", bells, plural)
		case Dusk:
			desc = fmt.Sprintf("%d bell%s past sunset", bells, plural)
		default:
			desc = fmt.Sprintf("%d bell%s into the night", bells, plural)
		}
	}

	line := fmt.Sprintf("It is %s, %s. (Day %d)", part, desc, c.DayNumber())
	if exact {
		line = fmt.Sprintf("It is %s, %s. (Day %d) (%02d:%02d)", part, desc, c.DayNumber(), hour, c.Minute())
	}

	flavor := map[DayPart]string{
		Dawn:      "The sky lightens in the east.",
		Morning:   "The town stirs to life.",
		Afternoon: "The day is in full swing.",
		Dusk:      "Shadows lengthen as daylight fades.",
		Night:     "The docks are lit by lanterns.",
	}
	return line + "\n" + flavor[part]
}
