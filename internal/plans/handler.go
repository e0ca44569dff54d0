package plans

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"atlasgym/internal/audit"
	"atlasgym/internal/auth"
	"atlasgym/internal/httpx"
	"atlasgym/internal/store"

	"github.com/go-chi/chi/v5"
)

// Handler serves the plan catalog and its editable price table.
type Handler struct {
	catalog *Catalog
	store   store.Store
	rec     audit.Recorder
}

func NewHandler(c *Catalog, s store.Store, rec audit.Recorder) *Handler {
	return &Handler{catalog: c, store: s, rec: rec}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Get("/prices", h.handlePrices)
	r.Put("/prices", h.handleSavePrices)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.catalog.Definitions())
}

func (h *Handler) handlePrices(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.catalog.Prices())
}

type pricesRequest struct {
	Prices map[string]float64 `json:"prices" validate:"required"`
}

func (h *Handler) handleSavePrices(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.FromContext(r.Context())
	if err := auth.RequireElevated(sess, "edit prices"); err != nil {
		httpx.Error(w, err)
		return
	}
	var req pricesRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	if err := h.catalog.Save(r.Context(), h.store, req.Prices); err != nil {
		httpx.Error(w, err)
		return
	}
	h.rec.Record(r.Context(), audit.PricesUpdated, sess.Username, describe(req.Prices))
	httpx.JSON(w, http.StatusOK, h.catalog.Prices())
}

func describe(prices map[string]float64) string {
	keys := make([]string, 0, len(prices))
	for k := range prices {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=$%.2f", Canonical(k), prices[k])
	}
	return "Precios: " + strings.Join(parts, ", ")
}
