// Package plans is the catalog of membership plans: price, duration rule and
// how many people one registration covers.
package plans

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"atlasgym/internal/errs"
	"atlasgym/internal/store"
)

// Unit of a duration rule.
type Unit int

const (
	Days Unit = iota
	Months
)

// Rule is how far a plan moves an expiry date.
type Rule struct {
	N    int
	Unit Unit
}

// After applies the rule to t. Month arithmetic follows time.AddDate, so
// day-of-month overflow normalises into the following month.
func (r Rule) After(t time.Time) time.Time {
	if r.Unit == Months {
		return t.AddDate(0, r.N, 0)
	}
	return t.AddDate(0, 0, r.N)
}

func (r Rule) String() string {
	if r.Unit == Months {
		return fmt.Sprintf("+%d month(s)", r.N)
	}
	return fmt.Sprintf("+%d day(s)", r.N)
}

// OneMonth is the fallback rule for unknown plans.
var OneMonth = Rule{N: 1, Unit: Months}

// Definition describes one plan key.
type Definition struct {
	Key          string  `json:"key"`
	Label        string  `json:"label"`
	Price        float64 `json:"price"`
	Rule         Rule    `json:"-"`
	Participants int     `json:"participants"`
}

// Plan keys.
const (
	Day        = "day"
	Week       = "week"
	Fortnight  = "fortnight"
	Monthly    = "monthly"
	Quarterly  = "quarterly"
	Semiannual = "semiannual"
	Annual     = "annual"
	Couple     = "couple"
	Family3    = "family3"
	Family4    = "family4"
)

var defaults = []Definition{
	{Key: Day, Label: "Visita 1 día", Price: 50, Rule: Rule{1, Days}, Participants: 1},
	{Key: Week, Label: "Semana", Price: 200, Rule: Rule{7, Days}, Participants: 1},
	{Key: Fortnight, Label: "Quincena", Price: 300, Rule: Rule{15, Days}, Participants: 1},
	{Key: Monthly, Label: "1 Mes", Price: 500, Rule: Rule{1, Months}, Participants: 1},
	{Key: Quarterly, Label: "3 Meses", Price: 1200, Rule: Rule{3, Months}, Participants: 1},
	{Key: Semiannual, Label: "6 Meses", Price: 2200, Rule: Rule{6, Months}, Participants: 1},
	{Key: Annual, Label: "12 Meses", Price: 4000, Rule: Rule{12, Months}, Participants: 1},
	{Key: Couple, Label: "Pareja", Price: 900, Rule: Rule{1, Months}, Participants: 2},
	{Key: Family3, Label: "Familiar 3", Price: 1300, Rule: Rule{1, Months}, Participants: 3},
	{Key: Family4, Label: "Familiar 4", Price: 1700, Rule: Rule{1, Months}, Participants: 4},
}

// Stored price tables may still use the month-count keys.
var aliases = map[string]string{"1": Monthly, "3": Quarterly, "12": Annual}

// Catalog is safe for concurrent use. Prices follow config/prices.
type Catalog struct {
	mu   sync.RWMutex
	defs map[string]Definition
}

// NewCatalog returns the catalog with its default prices.
func NewCatalog() *Catalog {
	c := &Catalog{defs: make(map[string]Definition, len(defaults))}
	for _, d := range defaults {
		c.defs[d.Key] = d
	}
	return c
}

// Canonical resolves legacy aliases.
func Canonical(key string) string {
	if k, ok := aliases[key]; ok {
		return k
	}
	return key
}

func (c *Catalog) lookup(key string) (Definition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.defs[Canonical(key)]
	return d, ok
}

// PriceOf returns the configured price of key.
func (c *Catalog) PriceOf(key string) (float64, error) {
	d, ok := c.lookup(key)
	if !ok {
		return 0, fmt.Errorf("plan %q: %w", key, errs.ErrUnknownPlan)
	}
	return d.Price, nil
}

// DurationOf returns the rule of key, or OneMonth with ErrUnknownPlan.
func (c *Catalog) DurationOf(key string) (Rule, error) {
	d, ok := c.lookup(key)
	if !ok {
		return OneMonth, fmt.Errorf("plan %q: %w", key, errs.ErrUnknownPlan)
	}
	return d.Rule, nil
}

// ParticipantCountOf is 1 for individual and unknown plans.
func (c *Catalog) ParticipantCountOf(key string) int {
	d, ok := c.lookup(key)
	if !ok || d.Participants < 1 {
		return 1
	}
	return d.Participants
}

// Known reports whether key names a plan.
func (c *Catalog) Known(key string) bool {
	_, ok := c.lookup(key)
	return ok
}

// Definitions lists every plan in catalog order.
func (c *Catalog) Definitions() []Definition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Definition, 0, len(defaults))
	for _, d := range defaults {
		out = append(out, c.defs[d.Key])
	}
	return out
}

// Prices returns the price table as persisted at config/prices.
func (c *Catalog) Prices() map[string]float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]float64, len(c.defs))
	for k, d := range c.defs {
		out[k] = d.Price
	}
	return out
}

// Validate checks a price table before it is persisted: known keys and
// non-negative finite amounts.
func Validate(prices map[string]float64) error {
	keys := make([]string, 0, len(prices))
	for k := range prices {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	ref := NewCatalog()
	for _, k := range keys {
		if !ref.Known(k) {
			return errs.Invalid("plan "+k, "is not a known plan")
		}
		if p := prices[k]; p < 0 || math.IsNaN(p) || math.IsInf(p, 0) {
			return errs.Invalid("price of "+k, "must be a non-negative number")
		}
	}
	return nil
}

// apply merges a stored price table. Unknown keys are ignored so the key
// set stays fixed.
func (c *Catalog) apply(prices map[string]float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, p := range prices {
		key := Canonical(k)
		d, ok := c.defs[key]
		if !ok || p < 0 || math.IsNaN(p) {
			continue
		}
		d.Price = p
		c.defs[key] = d
	}
}

// Follow keeps prices in sync with config/prices until ctx ends.
func (c *Catalog) Follow(ctx context.Context, s store.Store) (func(), error) {
	return s.Subscribe(ctx, store.Prices, func(raw json.RawMessage) {
		var prices map[string]float64
		ok, err := store.Decode(raw, &prices)
		if err != nil {
			slog.Warn("ignoring malformed price table", "error", err)
			return
		}
		if ok {
			c.apply(prices)
		}
	})
}

// Save persists prices after validation. Callers check the role.
func (c *Catalog) Save(ctx context.Context, s store.Store, prices map[string]float64) error {
	if err := Validate(prices); err != nil {
		return err
	}
	merged := c.Prices()
	for k, p := range prices {
		merged[Canonical(k)] = p
	}
	if err := s.Set(ctx, store.Prices, merged); err != nil {
		return fmt.Errorf("save prices: %w", err)
	}
	c.apply(merged)
	return nil
}
