package ledger

import (
	"net/http"
	"time"

	"atlasgym/internal/auth"
	"atlasgym/internal/errs"
	"atlasgym/internal/httpx"

	"github.com/go-chi/chi/v5"
)

const dayLayout = "2006-01-02"

type Handler struct {
	service Service
	loc     *time.Location
}

func NewHandler(service Service, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.Local
	}
	return &Handler{service: service, loc: loc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.handleFilter)
	r.Post("/expenses", h.handleExpense)
	r.Delete("/{id}", h.handleDelete)
	r.Post("/{id}/restore", h.handleRestore)
	r.Delete("/{id}/purge", h.handlePurge)
}

func (h *Handler) day(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(dayLayout, v, h.loc)
	if err != nil {
		return time.Time{}, errs.Invalid("date", "must be YYYY-MM-DD")
	}
	return t, nil
}

func (h *Handler) handleFilter(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.FromContext(r.Context())
	q := r.URL.Query()
	from, err := h.day(q.Get("from"))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	to, err := h.day(q.Get("to"))
	if err != nil {
		httpx.Error(w, err)
		return
	}

	rng := h.service.Range(sess, from, to)
	typ := TypeFilter(q.Get("type"))
	switch typ {
	case "", FilterAll, FilterIncome, FilterExpense:
	default:
		httpx.Error(w, errs.Invalid("type", "must be one of all income expense"))
		return
	}
	res := h.service.Filter(Query{From: rng.From, To: rng.To, Type: typ, User: q.Get("user")})
	httpx.JSON(w, http.StatusOK, map[string]any{
		"range":   rng,
		"entries": res.Entries,
		"summary": res.Summary,
		"users":   res.Users,
	})
}

type expenseRequest struct {
	Desc   string `json:"desc"`
	Amount string `json:"amount"`
}

func (h *Handler) handleExpense(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.FromContext(r.Context())
	var req expenseRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	e, err := h.service.RecordExpense(r.Context(), sess, req.Desc, req.Amount)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, e)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.FromContext(r.Context())
	if err := h.service.SoftDelete(r.Context(), sess, chi.URLParam(r, "id")); err != nil {
		httpx.Error(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRestore(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.FromContext(r.Context())
	e, err := h.service.Restore(r.Context(), sess, chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, e)
}

func (h *Handler) handlePurge(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.FromContext(r.Context())
	if err := h.service.Purge(r.Context(), sess, chi.URLParam(r, "id")); err != nil {
		httpx.Error(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
