// Package reports assembles printable receipts and reports plus the
// dashboard counters. Rendering is left to the client.
package reports

import (
	"time"

	"atlasgym/internal/ledger"
)

// Report is a titled table handed to a renderer.
type Report struct {
	Title   string          `json:"title"`
	Headers []string        `json:"headers"`
	Rows    [][]string      `json:"rows"`
	Summary *ledger.Summary `json:"summary,omitempty"`
}

// Receipt is the official ticket for one ledger line.
type Receipt struct {
	Title    string    `json:"title"`
	Subtitle string    `json:"subtitle"`
	Issued   time.Time `json:"issued"`
	Customer string    `json:"customer"`
	Concept  string    `json:"concept"`
	Amount   float64   `json:"amount"`
	Cashier  string    `json:"cashier"`
	Footer   string    `json:"footer"`
}

// Card is the printable membership card.
type Card struct {
	Title    string    `json:"title"`
	Badge    string    `json:"badge"`
	Name     string    `json:"name"`
	Code     string    `json:"code"`
	Expires  time.Time `json:"expires"`
	FileName string    `json:"fileName"`
}

type Birthday struct {
	Day  int    `json:"day"`
	Name string `json:"name"`
}

// Dashboard counts are exclusive: a member is counted in exactly one of
// Active, Expiring and Inactive.
type Dashboard struct {
	VisitsToday int        `json:"visitsToday"`
	Active      int        `json:"active"`
	Expiring    int        `json:"expiring"`
	Inactive    int        `json:"inactive"`
	Birthdays   []Birthday `json:"birthdays"`
}

// Kind names a report.
type Kind string

const (
	KindMembers  Kind = "members"
	KindFinances Kind = "finances"
	KindStore    Kind = "store"
	KindActivity Kind = "activity"
	KindHistory  Kind = "history"
)

// Params selects what a report covers. Type is the member status
// (all, active, expiring, inactive) or the store listing (inventory,
// lowstock).
type Params struct {
	Type string
	From time.Time
	To   time.Time
}
