// Package market_hours tracks MOEX bond section trading sessions. All
// session math happens in Moscow time regardless of where the server
// runs.
package market_hours

import "time"

// session is a trading window in minutes from Moscow midnight,
// boundaries inclusive
type session struct {
	name      string
	openMins  int
	closeMins int
}

// MOEX bond section schedule: main session 10:00-18:40, evening
// session 19:00-23:50, weekdays only
var sessions = []session{
	{name: "main", openMins: 10 * 60, closeMins: 18*60 + 40},
	{name: "evening", openMins: 19 * 60, closeMins: 23*60 + 50},
}

// Status is a point-in-time view of the exchange calendar
type Status struct {
	IsTradingNow bool      `json:"is_trading_now"`
	Session      string    `json:"session,omitempty"`
	MoscowTime   time.Time `json:"moscow_time"`
	NextOpen     time.Time `json:"next_open"`
}

// Service answers trading calendar queries
type Service struct {
	loc *time.Location
	now func() time.Time
}

// NewService creates a market hours service using the wall clock
func NewService() *Service {
	return NewServiceWithClock(time.Now)
}

// NewServiceWithClock creates a market hours service with an injected
// clock for tests
func NewServiceWithClock(now func() time.Time) *Service {
	loc, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		// Moscow has not observed DST since 2014, a fixed offset is exact
		loc = time.FixedZone("MSK", 3*60*60)
	}
	return &Service{loc: loc, now: now}
}

// MoscowNow returns the current time in Moscow
func (s *Service) MoscowNow() time.Time {
	return s.now().In(s.loc)
}

// CurrentSession returns the active session name, or ("", false) when
// the market is closed
func (s *Service) CurrentSession() (string, bool) {
	now := s.MoscowNow()
	if isWeekend(now) {
		return "", false
	}
	mins := now.Hour()*60 + now.Minute()
	for _, sess := range sessions {
		if sess.openMins <= mins && mins <= sess.closeMins {
			return sess.name, true
		}
	}
	return "", false
}

// IsTradingNow reports whether any session is open
func (s *Service) IsTradingNow() bool {
	_, open := s.CurrentSession()
	return open
}

// NextOpen returns the next session start at or after now
func (s *Service) NextOpen() time.Time {
	now := s.MoscowNow()
	for day := 0; day < 8; day++ {
		d := now.AddDate(0, 0, day)
		if isWeekend(d) {
			continue
		}
		for _, sess := range sessions {
			open := time.Date(d.Year(), d.Month(), d.Day(),
				sess.openMins/60, sess.openMins%60, 0, 0, s.loc)
			if !open.Before(now) {
				return open
			}
		}
	}
	return time.Time{}
}

// Status returns the full calendar view
func (s *Service) Status() Status {
	name, open := s.CurrentSession()
	return Status{
		IsTradingNow: open,
		Session:      name,
		MoscowTime:   s.MoscowNow(),
		NextOpen:     s.NextOpen(),
	}
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
