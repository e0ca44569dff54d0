// Package ledger is the cash-flow log: single income and expense lines with
// no double entry and no balance checks.
package ledger

import (
	"math"
	"strings"
	"time"

	"atlasgym/internal/auth"
)

// Entry types posted by the system. Operators may post any other string
// through expenses; only the expense words below count as outflow.
const (
	TypeInscripcion = "INSCRIPCION"
	TypeRenovacion  = "RENOVACION"
	TypeTienda      = "TIENDA"
	TypeGasto       = "gasto"
)

// Entry is one ledger line.
type Entry struct {
	ID     string    `json:"id,omitempty"`
	Type   string    `json:"type"`
	Amount float64   `json:"amount"`
	Desc   string    `json:"desc"`
	User   string    `json:"user"`
	Date   time.Time `json:"date"`
}

// IsExpense reports whether typ is case-insensitively gasto, salida or egreso.
func IsExpense(typ string) bool {
	switch strings.ToLower(strings.TrimSpace(typ)) {
	case "gasto", "salida", "egreso":
		return true
	}
	return false
}

// ValidAmount reports whether amount can be posted.
func ValidAmount(amount float64) bool {
	return amount > 0 && !math.IsInf(amount, 0) && !math.IsNaN(amount)
}

// TypeFilter selects entries by direction.
type TypeFilter string

const (
	FilterAll     TypeFilter = "all"
	FilterIncome  TypeFilter = "income"
	FilterExpense TypeFilter = "expense"
)

func (f TypeFilter) match(typ string) bool {
	switch f {
	case FilterIncome:
		return !IsExpense(typ)
	case FilterExpense:
		return IsExpense(typ)
	default:
		return true
	}
}

// Query selects ledger lines. From and To are inclusive calendar days.
type Query struct {
	From time.Time
	To   time.Time
	Type TypeFilter
	User string
}

// Summary aggregates a filtered range.
type Summary struct {
	Income  float64 `json:"income"`
	Expense float64 `json:"expense"`
	Balance float64 `json:"balance"`
}

// Result of a Filter call.
type Result struct {
	Entries []Entry  `json:"entries"`
	Summary Summary  `json:"summary"`
	Users   []string `json:"users"`
}

// Range is a date range offered to an operator.
type Range struct {
	From   time.Time `json:"from"`
	To     time.Time `json:"to"`
	Locked bool      `json:"locked"`
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// ClampRange restricts what non-elevated roles may see to
// [max(first of month, today-2d), today] and locks it. Elevated roles get
// the requested range, defaulting to the current month so far.
func ClampRange(role auth.Role, now, from, to time.Time) Range {
	today := startOfDay(now)
	firstOfMonth := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())

	if !auth.Elevated(role) {
		min := today.AddDate(0, 0, -2)
		if firstOfMonth.After(min) {
			min = firstOfMonth
		}
		return Range{From: min, To: today, Locked: true}
	}

	r := Range{From: startOfDay(from), To: startOfDay(to)}
	if from.IsZero() {
		r.From = firstOfMonth
	}
	if to.IsZero() {
		r.To = today
	}
	return r
}
