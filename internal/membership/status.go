package membership

import "time"

// ExpiringWindow is the number of remaining days, inclusive, that still
// counts as expiring.
const ExpiringWindow = 5

const day = 24 * time.Hour

// DaysRemaining is ceil((expiry - asOf) / 1 day).
func DaysRemaining(expiry, asOf time.Time) int {
	d := expiry.Sub(asOf)
	n := d / day
	if d%day > 0 {
		n++
	}
	return int(n)
}

// StatusOf classifies a number of remaining days.
func StatusOf(daysRemaining int) Status {
	switch {
	case daysRemaining < 0:
		return Inactive
	case daysRemaining <= ExpiringWindow:
		return Expiring
	default:
		return Active
	}
}

// StatusAt is the status of m as of asOf. Every view that shows a status
// goes through here.
func StatusAt(m Member, asOf time.Time) Status {
	return StatusOf(DaysRemaining(m.ExpiryDate, asOf))
}

// ViewOf pairs m with its status as of asOf.
func ViewOf(m Member, asOf time.Time) View {
	days := DaysRemaining(m.ExpiryDate, asOf)
	return View{Member: m, Status: StatusOf(days), DaysRemaining: days}
}
