// internal/membership/domain.go
package membership

import (
	"strings"
	"time"
)

// Member is a gym member. Members registered together share GroupID and
// TransactionID.
type Member struct {
	ID            string    `json:"id,omitempty"`
	Code          string    `json:"code"`
	Name          string    `json:"name"`
	Phone         string    `json:"phone"`
	Dob           string    `json:"dob,omitempty"`
	Email         string    `json:"email,omitempty"`
	Plan          string    `json:"plan"`
	ExpiryDate    time.Time `json:"expiryDate"`
	RegisteredAt  time.Time `json:"registeredAt"`
	RegisteredBy  string    `json:"registeredBy"`
	TransactionID string    `json:"transactionId,omitempty"`
	GroupID       string    `json:"groupId,omitempty"`
}

// FirstName is the first word of the member's name.
func (m Member) FirstName() string {
	if f := strings.Fields(m.Name); len(f) > 0 {
		return f[0]
	}
	return m.Name
}

// Participant is one person of a registration request.
type Participant struct {
	Name  string `json:"name" validate:"required"`
	Phone string `json:"phone" validate:"required"`
	Dob   string `json:"dob,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Email string `json:"email,omitempty" validate:"omitempty,email"`
}

func (p Participant) normalized() Participant {
	return Participant{
		Name:  strings.TrimSpace(p.Name),
		Phone: strings.TrimSpace(p.Phone),
		Dob:   strings.TrimSpace(p.Dob),
		Email: strings.TrimSpace(p.Email),
	}
}

// WelcomeMessage is handed to an external messaging deep link.
type WelcomeMessage struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// Registration is the outcome of Register.
type Registration struct {
	Members  []Member         `json:"members"`
	GroupID  string           `json:"groupId"`
	Plan     string           `json:"plan"`
	Price    float64          `json:"price"`
	LedgerID string           `json:"ledgerId,omitempty"`
	Messages []WelcomeMessage `json:"messages"`
}

// Renewal is the outcome of Renew.
type Renewal struct {
	Members    []Member  `json:"members"`
	Plan       string    `json:"plan"`
	ExpiryDate time.Time `json:"expiryDate"`
	Price      float64   `json:"price"`
	LedgerID   string    `json:"ledgerId,omitempty"`
}

// Status is the derived state of a membership.
type Status string

const (
	Active   Status = "ACTIVE"
	Expiring Status = "EXPIRING"
	Inactive Status = "INACTIVE"
)

// View is a member with its status as of a given instant.
type View struct {
	Member
	Status        Status `json:"status"`
	DaysRemaining int    `json:"daysRemaining"`
}

// Filter selects members for listings.
type Filter string

const (
	FilterAll         Filter = "all"
	FilterActive      Filter = "active_only"
	FilterExpiring    Filter = "expiring"
	FilterInactive    Filter = "inactive"
	FilterVisitsToday Filter = "visits_today"
)

// Valid reports whether f is a known filter. The empty filter means all.
func (f Filter) Valid() bool {
	switch f {
	case "", FilterAll, FilterActive, FilterExpiring, FilterInactive, FilterVisitsToday:
		return true
	}
	return false
}
