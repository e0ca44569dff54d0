package visits

import (
	"net/http"
	"time"

	"atlasgym/internal/errs"
	"atlasgym/internal/httpx"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	service Service
	loc     *time.Location
	now     func() time.Time
}

func NewHandler(service Service, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.Local
	}
	return &Handler{service: service, loc: loc, now: time.Now}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.handleRange)
	r.Post("/checkin", h.handleCheckIn)
	r.Get("/today", h.handleToday)
	r.Get("/alerts", h.handleAlerts)
	r.Get("/code/{code}", h.handleForCode)
	r.Get("/member/{id}", h.handleForMember)
}

type checkInRequest struct {
	Code string `json:"code" validate:"required"`
}

func (h *Handler) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	var req checkInRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	v, err := h.service.CheckIn(r.Context(), req.Code)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, v)
}

func (h *Handler) handleRange(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	today := h.now().In(h.loc)
	from, to := today, today
	var err error
	if v := q.Get("from"); v != "" {
		if from, err = time.ParseInLocation("2006-01-02", v, h.loc); err != nil {
			httpx.Error(w, errs.Invalid("from", "must be YYYY-MM-DD"))
			return
		}
	}
	if v := q.Get("to"); v != "" {
		if to, err = time.ParseInLocation("2006-01-02", v, h.loc); err != nil {
			httpx.Error(w, errs.Invalid("to", "must be YYYY-MM-DD"))
			return
		}
	}
	httpx.JSON(w, http.StatusOK, h.service.InRange(from, to))
}

func (h *Handler) handleToday(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]int{"count": h.service.TodayCount()})
}

// handleAlerts takes the cursor as ?at=<RFC3339>&id=<visit id>.
func (h *Handler) handleAlerts(w http.ResponseWriter, r *http.Request) {
	var after Cursor
	if v := r.URL.Query().Get("at"); v != "" {
		at, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			httpx.Error(w, errs.Invalid("at", "must be an RFC 3339 time"))
			return
		}
		after = Cursor{At: at, ID: r.URL.Query().Get("id")}
	}
	alerts, next := h.service.Alerts(after)
	httpx.JSON(w, http.StatusOK, map[string]any{"alerts": alerts, "cursor": next})
}

func (h *Handler) handleForCode(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.service.ForCode(chi.URLParam(r, "code")))
}

func (h *Handler) handleForMember(w http.ResponseWriter, r *http.Request) {
	vs, err := h.service.ForMember(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"count": len(vs), "visits": vs})
}
