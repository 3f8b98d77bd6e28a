package market

import (
	"fmt"
	"time"

	"quantcoord/config"
)

// SessionClock anchors bucket boundaries to the venue's market-open instant.
// The open hour/minute come from configuration because they encode a
// venue-specific session, not a universal rule.
type SessionClock struct {
	loc        *time.Location
	openHour   int
	openMinute int
}

func NewSessionClock(cfg config.VenueConfig) (*SessionClock, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid venue timezone %q: %w", cfg.Timezone, err)
	}
	if cfg.SessionOpenHour < 0 || cfg.SessionOpenHour > 23 || cfg.SessionOpenMinute < 0 || cfg.SessionOpenMinute > 59 {
		return nil, fmt.Errorf("invalid session open %02d:%02d", cfg.SessionOpenHour, cfg.SessionOpenMinute)
	}
	return &SessionClock{loc: loc, openHour: cfg.SessionOpenHour, openMinute: cfg.SessionOpenMinute}, nil
}

// SessionOpen returns the session-open instant on t's date.
func (s *SessionClock) SessionOpen(t time.Time) time.Time {
	t = t.In(s.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), s.openHour, s.openMinute, 0, 0, s.loc)
}

// BucketStart computes the bucket boundary a tick at time t falls into.
// Day intervals bucket on the session open itself; sub-day intervals on
// session open plus floor(minutesSinceOpen/width)*width. Ticks arriving
// before the session open are clamped into the opening bucket.
func (s *SessionClock) BucketStart(iv Interval, t time.Time) time.Time {
	open := s.SessionOpen(t)
	if iv.Day {
		return open
	}
	mins := int(t.In(s.loc).Sub(open).Minutes())
	if mins < 0 {
		mins = 0
	}
	return open.Add(time.Duration(mins/iv.Minutes*iv.Minutes) * time.Minute)
}
