// Package audit records completed operator actions. Entries are never
// edited or removed one at a time; the whole log may be cleared by a
// privileged operator.
package audit

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"
)

// Action tags.
const (
	MemberRegistered = "Registro Socio"
	MemberRenewed    = "Renovación"
	MemberUpdated    = "Actualización Socio"
	MemberDeleted    = "Eliminación Socio"
	MemberRestored   = "Restauración Socio"
	MemberPurged     = "Purga Socio"
	FinanceDeleted   = "Eliminación Finanza"
	FinanceRestored  = "Restauración Finanza"
	FinancePurged    = "Purga Finanza"
	ExpenseRecorded  = "Registro Gasto"
	ShopSale         = "Venta Tienda"
	ProductCreated   = "Alta Producto"
	ProductDeleted   = "Baja Producto"
	StockAdded       = "Reabastecimiento"
	PricesUpdated    = "Actualización Precios"
	StaffRegistered  = "Alta Empleado"
	StaffDeleted     = "Baja Empleado"
	StaffAccess      = "Permisos Empleado"
	StaffLoggedOut   = "Cierre Sesión Forzado"
	HistoryCleared   = "Limpieza Historial"
)

// Entry is one line of the action history.
type Entry struct {
	ID          string    `json:"id,omitempty"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	User        string    `json:"user"`
	Date        time.Time `json:"date"`
}

// Log is an audit sink.
type Log interface {
	Record(ctx context.Context, e Entry) error
	// List returns entries newest first.
	List(ctx context.Context) ([]Entry, error)
	Clear(ctx context.Context) error
}

func sortNewestFirst(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Date.After(entries[j].Date) })
}

// Multi fans entries out to several sinks. The first sink is authoritative:
// its errors are returned and it serves List. Failures of the others are
// logged.
type Multi []Log

func (m Multi) Record(ctx context.Context, e Entry) error {
	if len(m) == 0 {
		return nil
	}
	if err := m[0].Record(ctx, e); err != nil {
		return err
	}
	for _, l := range m[1:] {
		if err := l.Record(ctx, e); err != nil {
			slog.Warn("secondary audit sink failed", "type", e.Type, "error", err)
		}
	}
	return nil
}

func (m Multi) List(ctx context.Context) ([]Entry, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return m[0].List(ctx)
}

func (m Multi) Clear(ctx context.Context) error {
	var errList []error
	for _, l := range m {
		if err := l.Clear(ctx); err != nil {
			errList = append(errList, err)
		}
	}
	return errors.Join(errList...)
}

// Recorder stamps entries with the clock and logs sink failures instead of
// returning them, for use after a write already committed.
type Recorder struct {
	Log Log
	Now func() time.Time
}

func (r Recorder) Record(ctx context.Context, typ, user, description string) {
	if r.Log == nil {
		return
	}
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	e := Entry{Type: typ, Description: description, User: user, Date: now()}
	if err := r.Log.Record(ctx, e); err != nil {
		slog.Error("audit record failed", "type", typ, "user", user, "error", err)
	}
}
