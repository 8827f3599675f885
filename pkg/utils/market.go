package utils

import "time"

// IndiaLocation is the timezone for Indian markets.
var IndiaLocation *time.Location

func init() {
	var err error
	IndiaLocation, err = time.LoadLocation("Asia/Kolkata")
	if err != nil {
		// Fallback to UTC+5:30
		IndiaLocation = time.FixedZone("IST", 5*60*60+30*60)
	}
}

// MarketPhase classifies the NSE trading day for display. The engine is the
// authority on whether it trades; the panel only shows the phase so a
// STOPPED state outside market hours reads as normal rather than alarming.
type MarketPhase string

const (
	MarketPreOpen MarketPhase = "PRE-OPEN"
	MarketOpen    MarketPhase = "OPEN"
	MarketClosed  MarketPhase = "CLOSED"
)

// MarketPhaseAt returns the market phase at t.
func MarketPhaseAt(t time.Time) MarketPhase {
	now := t.In(IndiaLocation)

	if now.Weekday() == time.Saturday || now.Weekday() == time.Sunday {
		return MarketClosed
	}

	minutes := now.Hour()*60 + now.Minute()

	// Pre-open: 9:00 - 9:15
	if minutes >= 540 && minutes < 555 {
		return MarketPreOpen
	}
	// Regular session: 9:15 - 15:30
	if minutes >= 555 && minutes < 930 {
		return MarketOpen
	}
	return MarketClosed
}

// MarketPhaseNow returns the current market phase.
func MarketPhaseNow() MarketPhase {
	return MarketPhaseAt(time.Now())
}

// NextMarketOpen returns the next regular-session opening time after t.
func NextMarketOpen(t time.Time) time.Time {
	now := t.In(IndiaLocation)

	next := time.Date(now.Year(), now.Month(), now.Day(), 9, 15, 0, 0, IndiaLocation)
	if !now.Before(next) {
		next = next.AddDate(0, 0, 1)
	}
	for next.Weekday() == time.Saturday || next.Weekday() == time.Sunday {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
