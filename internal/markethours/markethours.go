// Package markethours knows the NSE trading calendar: IST, weekends,
// exchange holidays, and which trading day a daily ingest run should fetch.
package markethours

import (
	"fmt"
	"time"
)

// IST is the Indian Standard Time location (UTC+5:30).
var IST = time.FixedZone("IST", 5*3600+30*60)

// Market hours in IST.
const (
	OpenHour    = 9
	OpenMinute  = 15
	CloseHour   = 15
	CloseMinute = 30
)

// IsMarketOpen returns true if t falls within NSE trading hours
// (9:15 AM – 3:30 PM IST, Mon–Fri, excluding holidays).
func IsMarketOpen(t time.Time) bool {
	ist := t.In(IST)
	if !IsTradingDay(ist) {
		return false
	}
	hm := ist.Hour()*60 + ist.Minute()
	return hm >= OpenHour*60+OpenMinute && hm < CloseHour*60+CloseMinute
}

// IsWeekday returns true if t is Mon–Fri in IST.
func IsWeekday(t time.Time) bool {
	wd := t.In(IST).Weekday()
	return wd >= time.Monday && wd <= time.Friday
}

// IsTradingDay returns true if t is a weekday and not an NSE holiday.
func IsTradingDay(t time.Time) bool {
	ist := t.In(IST)
	return IsWeekday(ist) && !IsHoliday(ist)
}

// PrevTradingDay returns the most recent trading day strictly before t.
func PrevTradingDay(t time.Time) time.Time {
	d := t.In(IST).AddDate(0, 0, -1)
	for i := 0; i < 10; i++ {
		if IsTradingDay(d) {
			return midnight(d)
		}
		d = d.AddDate(0, 0, -1)
	}
	return midnight(d)
}

// NextTradingDay returns the first trading day strictly after t.
func NextTradingDay(t time.Time) time.Time {
	d := t.In(IST).AddDate(0, 0, 1)
	for i := 0; i < 10; i++ {
		if IsTradingDay(d) {
			return midnight(d)
		}
		d = d.AddDate(0, 0, 1)
	}
	return midnight(d)
}

// LastCompletedTradingDay returns the most recent trading day whose session
// has already closed as of t. On a trading day before 3:30 PM IST that is
// the previous trading day; after the close it is today.
func LastCompletedTradingDay(t time.Time) time.Time {
	ist := t.In(IST)
	if IsTradingDay(ist) {
		closeHM := CloseHour*60 + CloseMinute
		if ist.Hour()*60+ist.Minute() >= closeHM {
			return midnight(ist)
		}
	}
	return PrevTradingDay(ist)
}

// TodayClose returns today's market close time (3:30 PM IST).
func TodayClose(t time.Time) time.Time {
	ist := t.In(IST)
	return time.Date(ist.Year(), ist.Month(), ist.Day(), CloseHour, CloseMinute, 0, 0, IST)
}

// StatusString returns a human-readable market status for the stats API.
func StatusString(t time.Time) string {
	if IsMarketOpen(t) {
		d := TodayClose(t).Sub(t.In(IST))
		return fmt.Sprintf("Market Open — closes in %s", fmtDur(d))
	}
	next := NextTradingDay(t)
	if IsTradingDay(t) && t.In(IST).Hour()*60+t.In(IST).Minute() < OpenHour*60+OpenMinute {
		next = midnight(t.In(IST))
	}
	open := time.Date(next.Year(), next.Month(), next.Day(), OpenHour, OpenMinute, 0, 0, IST)
	return fmt.Sprintf("Market Closed — opens %s %s",
		open.Weekday().String()[:3], open.Format("15:04"))
}

func midnight(t time.Time) time.Time {
	ist := t.In(IST)
	return time.Date(ist.Year(), ist.Month(), ist.Day(), 0, 0, 0, 0, IST)
}

func fmtDur(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
