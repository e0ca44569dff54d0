package reports

import (
	"encoding/csv"
	"log/slog"
	"net/http"
	"time"

	"atlasgym/internal/auth"
	"atlasgym/internal/errs"
	"atlasgym/internal/httpx"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/receipts/{id}", h.handleReceipt)
	r.Get("/cards/{id}", h.handleCard)
	r.Get("/{kind}", h.handleReport)
}

// HandleDashboard serves GET /dashboard.
func (h *Handler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.service.Dashboard())
}

func (h *Handler) handleCard(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.Card(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) handleReceipt(w http.ResponseWriter, r *http.Request) {
	rc, err := h.service.Receipt(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rc)
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.FromContext(r.Context())
	q := r.URL.Query()
	loc := h.service.src.Location
	p := Params{Type: q.Get("type")}
	for _, f := range []struct {
		key string
		dst *time.Time
	}{{"from", &p.From}, {"to", &p.To}} {
		v := q.Get(f.key)
		if v == "" {
			continue
		}
		t, err := time.ParseInLocation(isoDay, v, loc)
		if err != nil {
			httpx.Error(w, errs.Invalid(f.key, "must be YYYY-MM-DD"))
			return
		}
		*f.dst = t
	}

	rep, err := h.service.Build(r.Context(), sess, Kind(chi.URLParam(r, "kind")), p)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	if q.Get("format") == "csv" {
		writeCSV(w, rep)
		return
	}
	httpx.JSON(w, http.StatusOK, rep)
}

func writeCSV(w http.ResponseWriter, rep Report) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	cw := csv.NewWriter(w)
	records := append([][]string{rep.Headers}, rep.Rows...)
	if rep.Summary != nil {
		records = append(records,
			[]string{"Ingresos", money(rep.Summary.Income)},
			[]string{"Gastos", money(rep.Summary.Expense)},
			[]string{"Balance", money(rep.Summary.Balance)},
		)
	}
	if err := cw.WriteAll(records); err != nil {
		slog.Error("write csv report", "title", rep.Title, "error", err)
	}
}
