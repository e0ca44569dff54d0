package reports

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"atlasgym/internal/audit"
	"atlasgym/internal/ledger"
	"atlasgym/internal/membership"
	"atlasgym/internal/shop"
	"atlasgym/internal/visits"
)

const (
	dayLayout  = "02/01/2006"
	timeLayout = "02/01/2006 15:04"
	isoDay     = "2006-01-02"
)

func money(v float64) string { return "$" + strconv.FormatFloat(v, 'f', 2, 64) }

// Members lists members of the given status as of asOf: all, active,
// expiring or inactive.
func Members(members []membership.Member, status string, asOf time.Time, loc *time.Location) (Report, error) {
	var want membership.Status
	switch status {
	case "", "all":
		status = "all"
	case "active":
		want = membership.Active
	case "expiring":
		want = membership.Expiring
	case "inactive":
		want = membership.Inactive
	default:
		return Report{}, fmt.Errorf("member report type %q: %w", status, errInvalidType)
	}

	r := Report{
		Title:   "Reporte de Socios: " + strings.ToUpper(status),
		Headers: []string{"Código", "Nombre", "Teléfono", "Registro", "Vencimiento"},
		Rows:    [][]string{},
	}
	sorted := append([]membership.Member(nil), members...)
	sort.SliceStable(sorted, func(i, j int) bool { return strings.ToLower(sorted[i].Name) < strings.ToLower(sorted[j].Name) })
	for _, m := range sorted {
		if want != "" && membership.StatusAt(m, asOf) != want {
			continue
		}
		phone := m.Phone
		if phone == "" {
			phone = "N/A"
		}
		r.Rows = append(r.Rows, []string{m.Code, m.Name, phone, m.RegisteredAt.In(loc).Format(dayLayout), m.ExpiryDate.In(loc).Format(dayLayout)})
	}
	return r, nil
}

// Finances lists a filtered ledger result with its totals.
func Finances(res ledger.Result, from, to time.Time, loc *time.Location) Report {
	r := Report{
		Title:   fmt.Sprintf("Reporte Financiero de %s a %s", from.In(loc).Format(isoDay), to.In(loc).Format(isoDay)),
		Headers: []string{"Fecha/Hora", "Tipo", "Concepto", "Usuario", "Monto"},
		Rows:    make([][]string, 0, len(res.Entries)),
	}
	for _, e := range res.Entries {
		sign := "+"
		if ledger.IsExpense(e.Type) {
			sign = "-"
		}
		r.Rows = append(r.Rows, []string{e.Date.In(loc).Format(timeLayout), e.Type, e.Desc, e.User, sign + money(e.Amount)})
	}
	sum := res.Summary
	r.Summary = &sum
	return r
}

// Store lists the inventory, or only low-stock products.
func Store(products []shop.Product, lowOnly bool) Report {
	r := Report{
		Title:   "Reporte de Tienda: Inventario",
		Headers: []string{"Producto", "Categoría", "Precio", "Stock Actual"},
		Rows:    [][]string{},
	}
	if lowOnly {
		r.Title = "Reporte de Tienda: Bajo Stock"
	}
	for _, p := range products {
		if lowOnly && !p.Low() {
			continue
		}
		category := p.Category
		if category == "" {
			category = "General"
		}
		r.Rows = append(r.Rows, []string{p.Name, category, money(p.Price), strconv.Itoa(p.Stock)})
	}
	return r
}

// Activity lists visits, which the caller has already limited to the range.
func Activity(vs []visits.Visit, from, to time.Time, loc *time.Location) Report {
	r := Report{
		Title:   fmt.Sprintf("Historial de Visitas de %s a %s", from.In(loc).Format(isoDay), to.In(loc).Format(isoDay)),
		Headers: []string{"Socio", "Código", "Fecha / Hora", "Estado"},
		Rows:    make([][]string, 0, len(vs)),
	}
	for _, v := range vs {
		state := string(v.Status)
		if v.Reason != "" {
			state += ": " + v.Reason
		}
		r.Rows = append(r.Rows, []string{v.Name, v.Code, v.Date.In(loc).Format(timeLayout), state})
	}
	return r
}

func History(entries []audit.Entry, loc *time.Location) Report {
	r := Report{
		Title:   "Historial de Acciones",
		Headers: []string{"Fecha", "Acción", "Descripción", "Usuario"},
		Rows:    make([][]string, 0, len(entries)),
	}
	for _, e := range entries {
		r.Rows = append(r.Rows, []string{e.Date.In(loc).Format(timeLayout), e.Type, e.Description, e.User})
	}
	return r
}

// ReceiptFor builds the ticket for a ledger line.
func ReceiptFor(e ledger.Entry) Receipt {
	r := Receipt{
		Title:    "ATLAS GYM",
		Subtitle: "Recibo Oficial",
		Issued:   e.Date,
		Customer: e.Desc,
		Concept:  e.Type,
		Amount:   e.Amount,
		Cashier:  e.User,
		Footer:   "¡Entrena con fuerza!",
	}
	switch e.Type {
	case ledger.TypeInscripcion:
		r.Concept = "Membresía"
	case ledger.TypeRenovacion:
		r.Concept = "Renovación"
	case ledger.TypeTienda:
		r.Customer, r.Concept = shop.WalkInCustomer, "Productos"
	}
	r.Customer = strings.TrimPrefix(r.Customer, "Socio: ")
	return r
}

// CardFor builds the membership card of m. FileName is the suggested name
// of the downloaded image.
func CardFor(m membership.Member) Card {
	return Card{
		Title:    "ATLAS GYM TITAN",
		Badge:    "MIEMBRO OFICIAL",
		Name:     m.Name,
		Code:     m.Code,
		Expires:  m.ExpiryDate,
		FileName: "tarjeta_" + strings.Join(strings.Fields(m.Name), "_") + ".png",
	}
}

// DashboardOf counts members by status as of asOf and lists this month's
// birthdays by day.
func DashboardOf(members []membership.Member, visitsToday int, asOf time.Time, loc *time.Location) Dashboard {
	d := Dashboard{VisitsToday: visitsToday, Birthdays: []Birthday{}}
	month := asOf.In(loc).Month()
	for _, m := range members {
		switch membership.StatusAt(m, asOf) {
		case membership.Active:
			d.Active++
		case membership.Expiring:
			d.Expiring++
		default:
			d.Inactive++
		}
		if dob, err := time.Parse(isoDay, m.Dob); err == nil && dob.Month() == month {
			d.Birthdays = append(d.Birthdays, Birthday{Day: dob.Day(), Name: m.Name})
		}
	}
	sort.SliceStable(d.Birthdays, func(i, j int) bool {
		if d.Birthdays[i].Day != d.Birthdays[j].Day {
			return d.Birthdays[i].Day < d.Birthdays[j].Day
		}
		return d.Birthdays[i].Name < d.Birthdays[j].Name
	})
	return d
}
