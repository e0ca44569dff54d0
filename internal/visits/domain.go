// Package visits records door check-ins and surfaces denied ones as alerts.
package visits

import "time"

// Outcome of a check-in.
type Outcome string

const (
	Success Outcome = "success"
	Denied  Outcome = "denied"
)

// Reasons a check-in is denied.
const (
	ReasonUnknownCode = "código no registrado"
	ReasonExpired     = "membresía vencida"
)

// Visit is one check-in attempt. Visits are append-only.
type Visit struct {
	ID     string    `json:"id,omitempty"`
	Code   string    `json:"code"`
	Name   string    `json:"name"`
	Date   time.Time `json:"date"`
	Status Outcome   `json:"status"`
	Reason string    `json:"reason,omitempty"`
}

// Cursor marks the last visit a client has seen. The zero Cursor is before
// every visit.
type Cursor struct {
	At time.Time `json:"at"`
	ID string    `json:"id"`
}

// Before reports whether v comes after the cursor.
func (c Cursor) Before(v Visit) bool {
	if v.Date.After(c.At) {
		return true
	}
	return v.Date.Equal(c.At) && v.ID > c.ID
}

// Of returns the cursor positioned at v.
func Of(v Visit) Cursor { return Cursor{At: v.Date, ID: v.ID} }

// chronological orders visits oldest first, ties broken by id.
func chronological(a, b Visit) bool {
	if !a.Date.Equal(b.Date) {
		return a.Date.Before(b.Date)
	}
	return a.ID < b.ID
}
